package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertUserSQL = `INSERT INTO users (tg_user_id, locale)
    VALUES ($1, $2)
    ON CONFLICT (tg_user_id) DO UPDATE
    SET locale = EXCLUDED.locale,
        updated_at = now();`

	setChatIDSQL = `UPDATE users SET chat_id = $2, updated_at = now() WHERE tg_user_id = $1;`

	getUserSQL = `SELECT tg_user_id, chat_id, locale, created_at, updated_at
    FROM users WHERE tg_user_id = $1;`

	deactivateWalletsSQL = `UPDATE wallets SET is_active = FALSE WHERE tg_user_id = $1;`

	insertWalletSQL = `INSERT INTO wallets (tg_user_id, chain, address, is_active)
    VALUES ($1, $2, $3, TRUE);`

	getActiveWalletSQL = `SELECT id, tg_user_id, chain, address, is_active, created_at
    FROM wallets
    WHERE tg_user_id = $1 AND is_active
    ORDER BY id DESC
    LIMIT 1;`

	insertAlertSQL = `INSERT INTO alerts (
        tg_user_id, type, chain, asset, condition, threshold, frequency, cooldown_minutes
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id;`

	listAlertsSQL = `SELECT
        id, tg_user_id, type, chain, asset, condition, threshold::text,
        frequency, enabled, last_triggered_at, cooldown_minutes, created_at
    FROM alerts
    WHERE tg_user_id = $1
    ORDER BY id DESC;`

	setAlertEnabledSQL = `UPDATE alerts SET enabled = $3 WHERE id = $2 AND tg_user_id = $1;`

	deleteAlertSQL = `DELETE FROM alerts WHERE id = $2 AND tg_user_id = $1;`

	listEnabledWithTargetSQL = `SELECT
        a.id, a.tg_user_id, a.type, a.chain, a.asset, a.condition, a.threshold::text,
        a.frequency, a.enabled, a.last_triggered_at, a.cooldown_minutes, a.created_at,
        u.chat_id
    FROM alerts a
    JOIN users u ON u.tg_user_id = a.tg_user_id
    WHERE a.enabled AND u.chat_id IS NOT NULL
    ORDER BY a.id;`

	markAlertTriggeredSQL = `UPDATE alerts SET last_triggered_at = $2 WHERE id = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// UserStore defines user persistence consumed by the API and webhook.
type UserStore interface {
	UpsertUser(ctx context.Context, tgUserID, locale string) error
	SetChatID(ctx context.Context, tgUserID, chatID string) error
	GetUser(ctx context.Context, tgUserID string) (User, bool, error)
}

// WalletStore defines wallet persistence.
type WalletStore interface {
	SaveActiveWallet(ctx context.Context, tgUserID, chain, address string) error
	GetActiveWallet(ctx context.Context, tgUserID string) (Wallet, bool, error)
}

// AlertStore defines alert persistence. MarkAlertTriggered must be durable
// before the caller may treat the cooldown as consumed.
type AlertStore interface {
	CreateAlert(ctx context.Context, params CreateAlertParams) (int64, error)
	ListAlerts(ctx context.Context, tgUserID string) ([]Alert, error)
	SetAlertEnabled(ctx context.Context, tgUserID string, alertID int64, enabled bool) error
	DeleteAlert(ctx context.Context, tgUserID string, alertID int64) error
	ListEnabledWithTarget(ctx context.Context) ([]EnabledAlert, error)
	MarkAlertTriggered(ctx context.Context, alertID int64, at time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to users, wallets, and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertUser creates or refreshes a user row.
func (s *Store) UpsertUser(ctx context.Context, tgUserID, locale string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if locale == "" {
		locale = "en"
	}
	if _, execErr := pool.Exec(ctx, upsertUserSQL, tgUserID, locale); execErr != nil {
		return fmt.Errorf("upsert user: %w", execErr)
	}
	return nil
}

// SetChatID records the chat the user started the bot from.
func (s *Store) SetChatID(ctx context.Context, tgUserID, chatID string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, setChatIDSQL, tgUserID, chatID)
	if execErr != nil {
		return fmt.Errorf("set chat id: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetUser fetches a user row.
func (s *Store) GetUser(ctx context.Context, tgUserID string) (User, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return User{}, false, err
	}

	var user User
	scanErr := pool.QueryRow(ctx, getUserSQL, tgUserID).Scan(
		&user.TGUserID,
		&user.ChatID,
		&user.Locale,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return User{}, false, nil
	}
	if scanErr != nil {
		return User{}, false, fmt.Errorf("get user: %w", scanErr)
	}
	return user, true, nil
}

// SaveActiveWallet deactivates previous wallets and records the new active one.
func (s *Store) SaveActiveWallet(ctx context.Context, tgUserID, chain, address string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save wallet: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deactivateWalletsSQL, tgUserID); err != nil {
		return fmt.Errorf("deactivate wallets: %w", err)
	}
	if _, err := tx.Exec(ctx, insertWalletSQL, tgUserID, chain, address); err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save wallet: %w", err)
	}
	return nil
}

// GetActiveWallet returns the user's most recent active wallet.
func (s *Store) GetActiveWallet(ctx context.Context, tgUserID string) (Wallet, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return Wallet{}, false, err
	}

	var wallet Wallet
	scanErr := pool.QueryRow(ctx, getActiveWalletSQL, tgUserID).Scan(
		&wallet.ID,
		&wallet.TGUserID,
		&wallet.Chain,
		&wallet.Address,
		&wallet.IsActive,
		&wallet.CreatedAt,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return Wallet{}, false, nil
	}
	if scanErr != nil {
		return Wallet{}, false, fmt.Errorf("get active wallet: %w", scanErr)
	}
	return wallet, true, nil
}

// CreateAlert persists a new alert and returns its id.
func (s *Store) CreateAlert(ctx context.Context, params CreateAlertParams) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertAlertSQL,
		params.TGUserID,
		string(params.Type),
		params.Chain,
		params.Asset,
		string(params.Condition),
		params.Threshold,
		params.Frequency,
		params.CooldownMinutes,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("create alert: %w", scanErr)
	}
	return id, nil
}

// ListAlerts returns the user's alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, tgUserID string) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsSQL, tgUserID)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]Alert, 0)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// SetAlertEnabled toggles an alert owned by the user.
func (s *Store) SetAlertEnabled(ctx context.Context, tgUserID string, alertID int64, enabled bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, setAlertEnabledSQL, tgUserID, alertID, enabled)
	if execErr != nil {
		return fmt.Errorf("set alert enabled: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteAlert removes an alert owned by the user.
func (s *Store) DeleteAlert(ctx context.Context, tgUserID string, alertID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertSQL, tgUserID, alertID); execErr != nil {
		return fmt.Errorf("delete alert: %w", execErr)
	}
	return nil
}

// ListEnabledWithTarget returns enabled alerts joined with the owner's chat
// id, omitting alerts whose owner never started the bot.
func (s *Store) ListEnabledWithTarget(ctx context.Context) ([]EnabledAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEnabledWithTargetSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list enabled alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]EnabledAlert, 0)
	for rows.Next() {
		var rec EnabledAlert
		if err := rows.Scan(
			&rec.ID,
			&rec.TGUserID,
			&rec.Type,
			&rec.Chain,
			&rec.Asset,
			&rec.Condition,
			&rec.Threshold,
			&rec.Frequency,
			&rec.Enabled,
			&rec.LastTriggeredAt,
			&rec.CooldownMinutes,
			&rec.CreatedAt,
			&rec.ChatID,
		); err != nil {
			return nil, fmt.Errorf("scan enabled alert: %w", err)
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// MarkAlertTriggered durably records the trigger timestamp. The update is a
// single-row write, so overlapping ticks cannot interleave a partial state.
func (s *Store) MarkAlertTriggered(ctx context.Context, alertID int64, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, markAlertTriggeredSQL, alertID, at)
	if execErr != nil {
		return fmt.Errorf("mark alert triggered: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAlert(rows pgx.Rows) (Alert, error) {
	var alert Alert
	if err := rows.Scan(
		&alert.ID,
		&alert.TGUserID,
		&alert.Type,
		&alert.Chain,
		&alert.Asset,
		&alert.Condition,
		&alert.Threshold,
		&alert.Frequency,
		&alert.Enabled,
		&alert.LastTriggeredAt,
		&alert.CooldownMinutes,
		&alert.CreatedAt,
	); err != nil {
		return Alert{}, fmt.Errorf("scan alert: %w", err)
	}
	return alert, nil
}
