// Package server exposes the mini-app HTTP API: portfolio valuation, alert
// management, the opportunity catalog and the Telegram webhook.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"chainradar/internal/catalog"
	"chainradar/internal/config"
	"chainradar/internal/metrics"
	"chainradar/internal/portfolio"
	"chainradar/internal/storage"
	"chainradar/internal/telegram"
)

// PortfolioBuilder values one (chain, address) pair.
type PortfolioBuilder interface {
	Build(ctx context.Context, req portfolio.Request) (portfolio.Portfolio, error)
}

// OpportunitySource reads the yield catalog.
type OpportunitySource interface {
	List() ([]catalog.Opportunity, error)
	Get(id string) (catalog.Opportunity, bool, error)
}

// AuthValidator verifies Telegram Mini App init data.
type AuthValidator interface {
	Validate(raw string) (telegram.InitData, error)
}

// Options carries the dependencies of the HTTP API.
type Options struct {
	Users     storage.UserStore
	Wallets   storage.WalletStore
	Alerts    storage.AlertStore
	Builder   PortfolioBuilder
	Catalog   OpportunitySource
	Auth      AuthValidator
	Alerting  config.AlertingConfig
	Telegram  config.TelegramConfig
	Logger    zerolog.Logger
}

// Server is the HTTP front of the service.
type Server struct {
	cfg    config.ServerConfig
	opts   Options
	logger zerolog.Logger
	http   *http.Server
}

// New builds the server and its route table.
func New(cfg config.ServerConfig, opts Options) *Server {
	s := &Server{
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "http").Logger(),
	}
	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler 返回完整路由, 测试直接挂到 httptest 上使用。
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", initDataHeader},
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/telegram/webhook", s.handleWebhook)

		// Mini App 侧的接口都要求有效的 initData。
		r.Group(func(r chi.Router) {
			r.Use(s.requireInitData)
			r.Get("/opportunities", s.handleListOpportunities)
			r.Get("/opportunities/{id}", s.handleGetOpportunity)
			r.Get("/portfolio", s.handlePortfolio)
			r.Post("/wallet", s.handleSaveWallet)
			r.Get("/alerts", s.handleListAlerts)
			r.Post("/alerts", s.handleCreateAlert)
			r.Patch("/alerts/{id}", s.handleUpdateAlert)
			r.Delete("/alerts/{id}", s.handleDeleteAlert)
		})
	})

	return r
}

// Run serves until the context is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("http server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
