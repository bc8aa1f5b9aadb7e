package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"budgetwise/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db      *sql.DB
	now     func() time.Time
	version uint
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateSQLite(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db, now: time.Now, version: version}, nil
}

// SchemaVersion is the migration version the database was left at on open.
func (r *SQLiteRepository) SchemaVersion() uint { return r.version }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

const txColumns = `id, user_id, type, category, occurred_at, amount_cents, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                          core.Transaction
		typ                        string
		occurred, created, updated string
	)
	if err := row.Scan(&t.ID, &t.UserID, &typ, &t.Category, &occurred, &t.Amount.Cents, &t.Notes, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TxType(typ)
	var err error
	if t.Date, err = parseTime(occurred); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := r.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY occurred_at DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	now := r.now().UTC()
	t := core.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}.Apply(in)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Type), t.Category, formatTime(t.Date), t.Amount.Cents, t.Notes,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", t.ID, "user_id", userID)
	t.Date = t.Date.UTC()
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, userID, id string, in core.TransactionInput) (core.Transaction, error) {
	existing, err := r.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	t := existing.Apply(in)
	t.UpdatedAt = r.now().UTC()
	t.Date = t.Date.UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		    SET type = ?, category = ?, occurred_at = ?, amount_cents = ?, notes = ?, updated_at = ?, synced_at = NULL
		  WHERE user_id = ? AND id = ?`,
		string(t.Type), t.Category, formatTime(t.Date), t.Amount.Cents, t.Notes, formatTime(t.UpdatedAt),
		userID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, ErrNotFound
	}
	return t, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnsynced returns transactions created or changed since their last export,
// oldest change first.
func (r *SQLiteRepository) ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	txs, err := r.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE synced_at IS NULL ORDER BY updated_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, exported ...core.Transaction) error {
	if len(exported) == 0 {
		return nil
	}
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark transactions synced: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	syncedAt := formatTime(r.now())
	var marked int64
	for _, t := range exported {
		res, err := dbtx.ExecContext(ctx,
			`UPDATE transactions SET synced_at = ? WHERE id = ? AND updated_at = ?`,
			syncedAt, t.ID, formatTime(t.UpdatedAt))
		if err != nil {
			return fmt.Errorf("mark transactions synced: %w", err)
		}
		n, _ := res.RowsAffected()
		marked += n
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("mark transactions synced: %w", err)
	}
	slog.DebugContext(ctx, "Transactions marked as synced", "count", marked, "stale", int64(len(exported))-marked)
	return nil
}

func (r *SQLiteRepository) GetPreferences(ctx context.Context, userID string) (core.UserPreferences, error) {
	var (
		p          core.UserPreferences
		budgets    string
		avatarType sql.NullString
		avatarData []byte
		updated    string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, currency, budgets_json, display_name, avatar_type, avatar_data, updated_at
		   FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.Currency, &budgets, &p.DisplayName, &avatarType, &avatarData, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserPreferences{}, ErrNotFound
	}
	if err != nil {
		return core.UserPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(budgets), &p.Budgets); err != nil {
		return core.UserPreferences{}, fmt.Errorf("decode budgets: %w", err)
	}
	if p.Budgets == nil {
		p.Budgets = map[string]core.Money{}
	}
	if avatarType.Valid && len(avatarData) > 0 {
		p.Avatar = &core.Avatar{ContentType: avatarType.String, Data: avatarData}
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return core.UserPreferences{}, err
	}
	return p, nil
}

// SavePreferences replaces the stored preferences of prefs.UserID.
func (r *SQLiteRepository) SavePreferences(ctx context.Context, prefs core.UserPreferences) (core.UserPreferences, error) {
	prefs = prefs.Clone()
	prefs.UpdatedAt = r.now().UTC()

	budgets, err := json.Marshal(prefs.Budgets)
	if err != nil {
		return core.UserPreferences{}, fmt.Errorf("encode budgets: %w", err)
	}
	var avatarType sql.NullString
	var avatarData []byte
	if prefs.Avatar != nil {
		avatarType = sql.NullString{String: prefs.Avatar.ContentType, Valid: true}
		avatarData = prefs.Avatar.Data
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, currency, budgets_json, display_name, avatar_type, avatar_data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     currency = excluded.currency,
		     budgets_json = excluded.budgets_json,
		     display_name = excluded.display_name,
		     avatar_type = excluded.avatar_type,
		     avatar_data = excluded.avatar_data,
		     updated_at = excluded.updated_at`,
		prefs.UserID, prefs.Currency, string(budgets), prefs.DisplayName, avatarType, avatarData, formatTime(prefs.UpdatedAt))
	if err != nil {
		return core.UserPreferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return prefs, nil
}
