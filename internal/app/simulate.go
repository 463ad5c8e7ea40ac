package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"chainradar/internal/catalog"
	"chainradar/internal/pricing"
	"chainradar/internal/service"
	"chainradar/internal/storage"
)

// SimulateAlert 以给定的现价模拟一次价格告警流程, 验证 Telegram 投递链路。
func (a *App) SimulateAlert(ctx context.Context, chatID, asset, condition string, threshold, current decimal.Decimal) error {
	if a.Config.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token 必须配置")
	}
	if chatID == "" {
		return errors.New("chat id 不能为空")
	}

	alerts := &staticAlertSource{alert: storage.EnabledAlert{
		Alert: storage.Alert{
			ID:        0,
			Type:      storage.AlertTypePrice,
			Asset:     asset,
			Condition: storage.Condition(condition),
			Threshold: threshold.String(),
		},
		ChatID: chatID,
	}}
	prices := &staticPriceSource{symbol: asset, price: current}

	svc := service.New(nil, alerts, prices, staticCatalog{}, a.newNotifier(), nil, 0, a.Logger)
	return svc.ProcessTick(ctx, time.Now().UTC())
}

type staticAlertSource struct {
	alert storage.EnabledAlert
}

func (s *staticAlertSource) ListEnabledWithTarget(context.Context) ([]storage.EnabledAlert, error) {
	return []storage.EnabledAlert{s.alert}, nil
}

func (s *staticAlertSource) MarkAlertTriggered(context.Context, int64, time.Time) error {
	return nil
}

type staticPriceSource struct {
	symbol string
	price  decimal.Decimal
}

func (s *staticPriceSource) PricesUSD(context.Context) (pricing.Snapshot, error) {
	price := s.price
	return pricing.Snapshot{
		Prices:    map[string]*decimal.Decimal{s.symbol: &price},
		FetchedAt: time.Now(),
	}, nil
}

type staticCatalog struct{}

func (staticCatalog) List() ([]catalog.Opportunity, error) { return nil, nil }

var _ service.AlertSource = (*staticAlertSource)(nil)
var _ service.PriceSource = (*staticPriceSource)(nil)
var _ service.OpportunitySource = (staticCatalog{})
