// Package postgres implements storage.Store on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"budgetwise/internal/core"
	"budgetwise/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	pool    *pgxpool.Pool
	now     func() time.Time
	version uint
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	version, err := RunMigrations(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, now: time.Now, version: version}, nil
}

// SchemaVersion is the migration version the database was left at on open.
func (s *Store) SchemaVersion() uint { return s.version }

// RunMigrations applies the embedded migrations through the pgx v5 driver.
func RunMigrations(dsn string) (uint, error) {
	return storage.MigrateUp(migrationsFS, "migrations", func(d source.Driver) (*migrate.Migrate, error) {
		return migrate.NewWithSourceInstance("iofs", d, migrateURL(dsn))
	})
}

// migrateURL rewrites a postgres:// DSN to the pgx5:// scheme the migrate driver registers.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const txColumns = `id::text, user_id, type, category, occurred_at, amount_cents, notes, created_at, updated_at`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t   core.Transaction
		typ string
	)
	err := row.Scan(&t.ID, &t.UserID, &typ, &t.Category, &t.Date, &t.Amount.Cents, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TxType(typ)
	t.Date = t.Date.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = $1 ORDER BY occurred_at DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.Transaction{}, storage.ErrNotFound
	}
	t, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = $1 AND id = $2`, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *Store) CreateTransaction(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	now := pgNow(s.now)
	t := core.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}.Apply(in)
	t.Date = t.Date.UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, category, occurred_at, amount_cents, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserID, string(t.Type), t.Category, t.Date, t.Amount.Cents, t.Notes, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, userID, id string, in core.TransactionInput) (core.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.Transaction{}, storage.ErrNotFound
	}
	t, err := scanTransaction(s.pool.QueryRow(ctx,
		`UPDATE transactions
		    SET type = $3, category = $4, occurred_at = $5, amount_cents = $6, notes = $7, updated_at = $8, synced_at = NULL
		  WHERE user_id = $1 AND id = $2
		 RETURNING `+txColumns,
		userID, id, string(in.Type), in.Category, in.Date.UTC(), in.Amount.Cents, in.Notes, pgNow(s.now)))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return t, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return storage.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	txs, err := s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE synced_at IS NULL ORDER BY updated_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced transactions: %w", err)
	}
	return txs, nil
}

func (s *Store) MarkSynced(ctx context.Context, exported ...core.Transaction) error {
	if len(exported) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	syncedAt := s.now().UTC()
	for _, t := range exported {
		if _, err := uuid.Parse(t.ID); err != nil {
			continue
		}
		batch.Queue(`UPDATE transactions SET synced_at = $1 WHERE id = $2 AND updated_at = $3`,
			syncedAt, t.ID, t.UpdatedAt.UTC())
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("mark transactions synced: %w", err)
	}
	return nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (core.UserPreferences, error) {
	var (
		p          core.UserPreferences
		avatarType *string
		avatarData []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, currency, budgets, display_name, avatar_type, avatar_data, updated_at
		   FROM user_preferences WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Currency, &p.Budgets, &p.DisplayName, &avatarType, &avatarData, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.UserPreferences{}, storage.ErrNotFound
	}
	if err != nil {
		return core.UserPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	if p.Budgets == nil {
		p.Budgets = map[string]core.Money{}
	}
	if avatarType != nil && len(avatarData) > 0 {
		p.Avatar = &core.Avatar{ContentType: *avatarType, Data: avatarData}
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) SavePreferences(ctx context.Context, prefs core.UserPreferences) (core.UserPreferences, error) {
	prefs = prefs.Clone()
	prefs.UpdatedAt = s.now().UTC()

	var avatarType *string
	var avatarData []byte
	if prefs.Avatar != nil {
		avatarType = &prefs.Avatar.ContentType
		avatarData = prefs.Avatar.Data
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_preferences (user_id, currency, budgets, display_name, avatar_type, avatar_data, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		     currency = EXCLUDED.currency,
		     budgets = EXCLUDED.budgets,
		     display_name = EXCLUDED.display_name,
		     avatar_type = EXCLUDED.avatar_type,
		     avatar_data = EXCLUDED.avatar_data,
		     updated_at = EXCLUDED.updated_at`,
		prefs.UserID, prefs.Currency, prefs.Budgets, prefs.DisplayName, avatarType, avatarData, prefs.UpdatedAt)
	if err != nil {
		return core.UserPreferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return prefs, nil
}

// pgNow truncates to the microsecond precision timestamptz keeps, so a
// returned updated_at compares equal to the stored one.
func pgNow(now func() time.Time) time.Time {
	return now().UTC().Truncate(time.Microsecond)
}
