package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chainradar/internal/alerting"
	"chainradar/internal/catalog"
	"chainradar/internal/metrics"
	"chainradar/internal/pricing"
	"chainradar/internal/scheduler"
	"chainradar/internal/storage"
)

// AlertSource is the slice of the alert store the evaluation loop consumes.
type AlertSource interface {
	ListEnabledWithTarget(ctx context.Context) ([]storage.EnabledAlert, error)
	MarkAlertTriggered(ctx context.Context, alertID int64, at time.Time) error
}

// PriceSource supplies the shared price snapshot, refreshed at most once per
// tick.
type PriceSource interface {
	PricesUSD(ctx context.Context) (pricing.Snapshot, error)
}

// OpportunitySource lists the yield catalog; read fresh every tick.
type OpportunitySource interface {
	List() ([]catalog.Opportunity, error)
}

// Service orchestrates periodic alert evaluation and dispatch.
type Service struct {
	scheduler *scheduler.Scheduler
	alerts    AlertSource
	prices    PriceSource
	catalog   OpportunitySource
	notifier  alerting.Notifier
	logger    zerolog.Logger

	locker  storage.AdvisoryLocker
	lockKey int64
	now     func() time.Time
}

// New constructs the alert evaluation service. The locker is optional; when
// present it keeps concurrent replicas from evaluating the same tick twice.
func New(sched *scheduler.Scheduler, alerts AlertSource, prices PriceSource, cat OpportunitySource, notifier alerting.Notifier, locker storage.AdvisoryLocker, lockKey int64, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		alerts:    alerts,
		prices:    prices,
		catalog:   cat,
		notifier:  notifier,
		logger:    logger.With().Str("component", "alert_engine").Logger(),
		locker:    locker,
		lockKey:   lockKey,
		now:       time.Now,
	}
}

// Run begins the periodic evaluation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick 执行单个评估周期。
func (s *Service) ProcessTick(ctx context.Context, now time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		metrics.TicksTotal.WithLabelValues("error").Inc()
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", now).Msg("skip tick because advisory lock held elsewhere")
		metrics.TicksTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	if err := s.executeTick(ctx, now); err != nil {
		metrics.TicksTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.TicksTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *Service) executeTick(ctx context.Context, now time.Time) error {
	alerts, err := s.alerts.ListEnabledWithTarget(ctx)
	if err != nil {
		return fmt.Errorf("load enabled alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	// One snapshot bounds upstream call volume for the whole tick. A failed
	// refresh degrades price alerts to "no current value" for this tick; APY
	// alerts are unaffected.
	snap, err := s.prices.PricesUSD(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("price refresh failed; price alerts skip this tick")
		snap = pricing.Snapshot{}
	}

	yields := s.loadYields()

	for _, alert := range alerts {
		s.evaluateAlert(ctx, alert, snap, yields, now)
	}
	return nil
}

// loadYields reads the catalog fresh and indexes APY by (asset, chain).
func (s *Service) loadYields() map[string]decimal.Decimal {
	yields := make(map[string]decimal.Decimal)
	if s.catalog == nil {
		return yields
	}

	items, err := s.catalog.List()
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("catalog").Inc()
		s.logger.Warn().Err(err).Msg("catalog read failed; apy alerts skip this tick")
		return yields
	}
	for _, item := range items {
		yields[yieldKey(item.Asset, item.Chain)] = item.APY
	}
	return yields
}

func (s *Service) evaluateAlert(ctx context.Context, alert storage.EnabledAlert, snap pricing.Snapshot, yields map[string]decimal.Decimal, now time.Time) {
	logger := s.logger.With().Int64("alert_id", alert.ID).Str("type", string(alert.Type)).Logger()

	if !cooldownElapsed(now, alert.LastTriggeredAt, alert.Cooldown()) {
		metrics.AlertsEvaluated.WithLabelValues("cooldown").Inc()
		return
	}

	threshold, err := decimal.NewFromString(alert.Threshold)
	if err != nil {
		// Configuration error, not a transient one: skip until the row is
		// fixed, never crash the tick.
		metrics.AlertsEvaluated.WithLabelValues("bad_threshold").Inc()
		logger.Warn().Str("threshold", alert.Threshold).Msg("unparseable threshold; alert skipped")
		return
	}

	current := resolveCurrent(alert, snap, yields)
	if !shouldTrigger(alert.Condition, current, threshold) {
		metrics.AlertsEvaluated.WithLabelValues("no_fire").Inc()
		return
	}

	var text string
	switch alert.Type {
	case storage.AlertTypePrice:
		text = alerting.RenderPriceAlert(alert.Asset, string(alert.Condition), threshold, *current)
	case storage.AlertTypeAPY:
		text = alerting.RenderAPYAlert(alert.Asset, alert.Chain, string(alert.Condition), threshold, *current)
	default:
		metrics.AlertsEvaluated.WithLabelValues("unknown_type").Inc()
		logger.Warn().Msg("unknown alert type; alert skipped")
		return
	}

	// Dispatch first, persist second. A delivery failure keeps the alert
	// eligible for the next tick (at-least-once); a crash between the two
	// steps can duplicate one notification, which is accepted.
	if err := s.notifier.Send(ctx, alert.ChatID, text); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("failed to dispatch alert")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	metrics.AlertsEvaluated.WithLabelValues("fired").Inc()

	if err := s.alerts.MarkAlertTriggered(ctx, alert.ID, now); err != nil {
		logger.Error().Err(err).Msg("failed to persist trigger timestamp; duplicate possible next tick")
		return
	}

	logger.Info().Str("asset", alert.Asset).Str("current", current.String()).Msg("alert fired")
}

// resolveCurrent resolves the metric an alert is compared against, or nil
// when it is unknown this tick.
func resolveCurrent(alert storage.EnabledAlert, snap pricing.Snapshot, yields map[string]decimal.Decimal) *decimal.Decimal {
	switch alert.Type {
	case storage.AlertTypePrice:
		return snap.Price(alert.Asset)
	case storage.AlertTypeAPY:
		if apy, ok := yields[yieldKey(alert.Asset, alert.Chain)]; ok {
			return &apy
		}
		return nil
	default:
		return nil
	}
}

func yieldKey(asset, chain string) string {
	return asset + ":" + chain
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
