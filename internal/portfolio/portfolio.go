// Package portfolio values tracked addresses across chains in USD.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"chainradar/internal/chains"
)

// Asset is one valued position. Fiat is nil when the asset's USD price is
// unknown; it is never NaN.
type Asset struct {
	Symbol string           `json:"symbol"`
	Amount decimal.Decimal  `json:"amount"`
	Fiat   *decimal.Decimal `json:"fiat"`
}

// Portfolio is the per-chain snapshot returned to callers. TotalFiat is nil
// only when no asset could be valued.
type Portfolio struct {
	Chain         chains.Chain     `json:"chain"`
	AddressMasked string           `json:"addressMasked"`
	TotalFiat     *decimal.Decimal `json:"totalFiat"`
	Assets        []Asset          `json:"assets"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Request names one (chain, address) pair to value.
type Request struct {
	Chain   chains.Chain
	Address string
}

// Result pairs a request with its portfolio or its error. A failed pair
// reports its own error; it never degrades to a zero balance and it never
// aborts sibling pairs.
type Result struct {
	Request   Request
	Portfolio Portfolio
	Err       error
}

// Overview aggregates results across chains. TotalFiat sums the per-chain
// totals that are present; pairs with unknown prices or errors contribute 0.
// That undercount is deliberate and documented, not a missing-data error.
type Overview struct {
	Results   []Result
	TotalFiat decimal.Decimal
	UpdatedAt time.Time
}

// MaskAddress shortens an address for display, keeping both ends.
func MaskAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}
