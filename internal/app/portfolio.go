package app

import (
	"context"
	"encoding/json"
	"fmt"

	"chainradar/internal/chains"
	"chainradar/internal/portfolio"
)

// ShowPortfolio 拉取单个地址的余额估值并输出 JSON。
func (a *App) ShowPortfolio(ctx context.Context, chain, address string) error {
	prices, closePrices, err := a.newPriceService(ctx)
	if err != nil {
		return err
	}
	defer closePrices()

	aggregator := portfolio.NewAggregator(a.newRegistry(), prices, a.Logger)
	result, err := aggregator.Build(ctx, portfolio.Request{
		Chain:   chains.Chain(chain),
		Address: address,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
