package server

import (
	"context"
	"net/http"
	"strconv"

	"chainradar/internal/telegram"
)

// initDataHeader carries the raw Mini App init data on every authenticated
// request.
const initDataHeader = "X-Telegram-Init-Data"

type contextKey string

const identityKey contextKey = "tg_identity"

// requireInitData rejects requests without a valid Telegram signature and
// stores the caller identity on the request context.
func (s *Server) requireInitData(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(initDataHeader)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing init data")
			return
		}
		data, err := s.opts.Auth.Validate(raw)
		if err != nil {
			s.logger.Debug().Err(err).Msg("init data rejected")
			writeError(w, http.StatusUnauthorized, "invalid init data")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, data)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the validated caller, or false when the middleware did
// not run.
func identityFrom(ctx context.Context) (telegram.InitData, bool) {
	data, ok := ctx.Value(identityKey).(telegram.InitData)
	return data, ok
}

// callerID 返回字符串形式的 Telegram 用户 ID, 与存储层主键一致。
func callerID(ctx context.Context) (string, bool) {
	data, ok := identityFrom(ctx)
	if !ok || data.User.ID == 0 {
		return "", false
	}
	return strconv.FormatInt(data.User.ID, 10), true
}
