package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// update mirrors the subset of the Telegram Bot API update we consume.
type update struct {
	Message *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From *struct {
			ID           int64  `json:"id"`
			LanguageCode string `json:"language_code"`
		} `json:"from"`
	} `json:"message"`
}

// handleWebhook records the chat id of users who /start the bot. Everything
// else is acknowledged and dropped; the bot has no other commands.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if secret := s.opts.Telegram.WebhookSecret; secret != "" {
		got := r.Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "bad webhook secret")
			return
		}
	}

	var upd update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	if upd.Message == nil || upd.Message.From == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if strings.HasPrefix(strings.TrimSpace(upd.Message.Text), "/start") {
		tgUserID := strconv.FormatInt(upd.Message.From.ID, 10)
		chatID := strconv.FormatInt(upd.Message.Chat.ID, 10)
		locale := upd.Message.From.LanguageCode

		if err := s.opts.Users.UpsertUser(r.Context(), tgUserID, locale); err != nil {
			s.logger.Error().Err(err).Msg("upsert user from webhook")
		} else if err := s.opts.Users.SetChatID(r.Context(), tgUserID, chatID); err != nil {
			s.logger.Error().Err(err).Msg("record chat id")
		} else {
			s.logger.Info().Str("tg_user_id", tgUserID).Msg("user started bot")
		}
	}

	// Telegram 只关心 2xx, 处理失败也不让它无限重试。
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
