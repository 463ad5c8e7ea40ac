package chains

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FromSmallestUnits converts a non-negative smallest-unit integer, given as a
// digit string of arbitrary magnitude, into a decimal amount scaled by the
// chain's exponent. The arithmetic is exact: the digit string is parsed into
// a big integer and only the decimal exponent is shifted. Balances larger
// than a float64 mantissa therefore convert without precision loss.
func FromSmallestUnits(raw string, exponent int32) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("empty smallest-unit value")
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return decimal.Decimal{}, fmt.Errorf("smallest-unit value %q is not a non-negative integer", raw)
		}
	}

	units, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("parse smallest-unit value %q", raw)
	}

	return decimal.NewFromBigInt(units, -exponent), nil
}

// FromSmallestUnitsBig converts a big-integer smallest-unit amount.
func FromSmallestUnitsBig(units *big.Int, exponent int32) decimal.Decimal {
	return decimal.NewFromBigInt(units, -exponent)
}
