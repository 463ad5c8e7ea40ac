package storage

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    tg_user_id TEXT PRIMARY KEY,
    chat_id    TEXT,
    locale     TEXT NOT NULL DEFAULT 'en',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wallets (
    id         BIGSERIAL PRIMARY KEY,
    tg_user_id TEXT NOT NULL REFERENCES users(tg_user_id),
    chain      TEXT NOT NULL,
    address    TEXT NOT NULL,
    is_active  BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_wallets_user ON wallets(tg_user_id);

CREATE TABLE IF NOT EXISTS alerts (
    id                BIGSERIAL PRIMARY KEY,
    tg_user_id        TEXT NOT NULL REFERENCES users(tg_user_id),
    type              TEXT NOT NULL,
    chain             TEXT NOT NULL,
    asset             TEXT NOT NULL,
    condition         TEXT NOT NULL,
    threshold         NUMERIC NOT NULL,
    frequency         TEXT NOT NULL DEFAULT 'instant',
    enabled           BOOLEAN NOT NULL DEFAULT TRUE,
    last_triggered_at TIMESTAMPTZ,
    cooldown_minutes  INTEGER NOT NULL DEFAULT 60,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(tg_user_id);
CREATE INDEX IF NOT EXISTS idx_alerts_enabled ON alerts(enabled);
`

// InitSchema creates the tables and indexes if they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
