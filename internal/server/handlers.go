package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"chainradar/internal/chains"
	"chainradar/internal/portfolio"
	"chainradar/internal/storage"
)

// handlePortfolio values the requested (chain, address) pair, falling back to
// the caller's bound wallet when the query is empty.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	tgUserID, ok := callerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	chain := strings.TrimSpace(r.URL.Query().Get("chain"))
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if chain == "" && address == "" {
		wallet, found, err := s.opts.Wallets.GetActiveWallet(r.Context(), tgUserID)
		if err != nil {
			s.logger.Error().Err(err).Msg("load active wallet")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !found {
			writeError(w, http.StatusBadRequest, "no wallet bound; pass chain and address or POST /api/wallet first")
			return
		}
		chain, address = wallet.Chain, wallet.Address
	}
	if chain == "" || address == "" {
		writeError(w, http.StatusBadRequest, "chain and address are both required")
		return
	}

	p, err := s.opts.Builder.Build(r.Context(), portfolio.Request{Chain: chains.Chain(chain), Address: address})
	if err != nil {
		s.writePortfolioError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) writePortfolioError(w http.ResponseWriter, err error) {
	var provErr *chains.ProviderError
	switch {
	case errors.Is(err, chains.ErrUnsupportedChain):
		writeError(w, http.StatusBadRequest, "unsupported chain")
	case errors.Is(err, chains.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid address")
	case errors.As(err, &provErr):
		s.logger.Warn().Err(err).Msg("upstream provider failed")
		writeError(w, http.StatusBadGateway, "upstream provider unavailable")
	default:
		s.logger.Error().Err(err).Msg("portfolio build failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type saveWalletRequest struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
}

func (s *Server) handleSaveWallet(w http.ResponseWriter, r *http.Request) {
	tgUserID, ok := callerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req saveWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Chain = strings.TrimSpace(req.Chain)
	req.Address = strings.TrimSpace(req.Address)
	if req.Chain == "" || req.Address == "" {
		writeError(w, http.StatusBadRequest, "chain and address are both required")
		return
	}

	if err := s.opts.Wallets.SaveActiveWallet(r.Context(), tgUserID, req.Chain, req.Address); err != nil {
		s.logger.Error().Err(err).Msg("save wallet")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// alertJSON is the wire form of an alert row.
type alertJSON struct {
	ID              int64      `json:"id"`
	Type            string     `json:"type"`
	Chain           string     `json:"chain,omitempty"`
	Asset           string     `json:"asset"`
	Condition       string     `json:"condition"`
	Threshold       string     `json:"threshold"`
	Frequency       string     `json:"frequency"`
	Enabled         bool       `json:"enabled"`
	CooldownMinutes int        `json:"cooldownMinutes"`
	LastTriggeredAt *time.Time `json:"lastTriggeredAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toAlertJSON(a storage.Alert) alertJSON {
	return alertJSON{
		ID:              a.ID,
		Type:            string(a.Type),
		Chain:           a.Chain,
		Asset:           a.Asset,
		Condition:       string(a.Condition),
		Threshold:       a.Threshold,
		Frequency:       a.Frequency,
		Enabled:         a.Enabled,
		CooldownMinutes: a.CooldownMinutes,
		LastTriggeredAt: a.LastTriggeredAt,
		CreatedAt:       a.CreatedAt,
	}
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	tgUserID, ok := callerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	alerts, err := s.opts.Alerts.ListAlerts(r.Context(), tgUserID)
	if err != nil {
		s.logger.Error().Err(err).Msg("list alerts")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]alertJSON, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type createAlertRequest struct {
	Type            string `json:"type"`
	Chain           string `json:"chain"`
	Asset           string `json:"asset"`
	Condition       string `json:"condition"`
	Threshold       string `json:"threshold"`
	Frequency       string `json:"frequency"`
	CooldownMinutes int    `json:"cooldownMinutes"`
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	tgUserID, ok := callerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	params, errMsg := s.buildAlertParams(tgUserID, req)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	id, err := s.opts.Alerts.CreateAlert(r.Context(), params)
	if err != nil {
		s.logger.Error().Err(err).Msg("create alert")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// buildAlertParams 校验创建请求, 返回空串表示通过。
func (s *Server) buildAlertParams(tgUserID string, req createAlertRequest) (storage.CreateAlertParams, string) {
	alertType := storage.AlertType(strings.ToLower(strings.TrimSpace(req.Type)))
	if alertType != storage.AlertTypePrice && alertType != storage.AlertTypeAPY {
		return storage.CreateAlertParams{}, "type must be price or apy"
	}

	condition := storage.Condition(strings.ToLower(strings.TrimSpace(req.Condition)))
	if condition != storage.ConditionAbove && condition != storage.ConditionBelow {
		return storage.CreateAlertParams{}, "condition must be above or below"
	}

	asset := strings.ToUpper(strings.TrimSpace(req.Asset))
	if asset == "" {
		return storage.CreateAlertParams{}, "asset is required"
	}

	chain := strings.ToLower(strings.TrimSpace(req.Chain))
	if alertType == storage.AlertTypeAPY && chain == "" {
		return storage.CreateAlertParams{}, "chain is required for apy alerts"
	}

	threshold, err := decimal.NewFromString(strings.TrimSpace(req.Threshold))
	if err != nil || !threshold.IsPositive() {
		return storage.CreateAlertParams{}, "threshold must be a positive decimal"
	}

	cooldown := req.CooldownMinutes
	if cooldown <= 0 {
		cooldown = int(s.opts.Alerting.DefaultCooldown / time.Minute)
	}

	// Frequency is advisory metadata; the evaluation loop only honours the
	// cooldown.
	frequency := strings.ToLower(strings.TrimSpace(req.Frequency))
	switch frequency {
	case "":
		frequency = "instant"
	case "instant", "daily", "weekly":
	default:
		return storage.CreateAlertParams{}, "frequency must be instant, daily or weekly"
	}

	return storage.CreateAlertParams{
		TGUserID:        tgUserID,
		Type:            alertType,
		Chain:           chain,
		Asset:           asset,
		Condition:       condition,
		Threshold:       threshold.String(),
		Frequency:       frequency,
		CooldownMinutes: cooldown,
	}, ""
}

type updateAlertRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	tgUserID, ok := callerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	alertID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	var req updateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "body must set enabled")
		return
	}

	if err := s.opts.Alerts.SetAlertEnabled(r.Context(), tgUserID, alertID, *req.Enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		s.logger.Error().Err(err).Msg("update alert")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	tgUserID, ok := callerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	alertID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	if err := s.opts.Alerts.DeleteAlert(r.Context(), tgUserID, alertID); err != nil {
		s.logger.Error().Err(err).Msg("delete alert")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	items, err := s.opts.Catalog.List()
	if err != nil {
		s.logger.Error().Err(err).Msg("read catalog")
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	item, found, err := s.opts.Catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error().Err(err).Msg("read catalog")
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
