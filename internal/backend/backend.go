// Package backend opens the transaction store selected by DATA_BACKEND.
package backend

import (
	"context"
	"errors"
	"fmt"

	"budgetwise/internal/config"
	"budgetwise/internal/log"
	"budgetwise/internal/storage"
	"budgetwise/internal/storage/memory"
	"budgetwise/internal/storage/postgres"
)

type Type string

const (
	Memory   Type = "memory"
	SQLite   Type = "sqlite"
	Postgres Type = "postgres"
)

func (t Type) String() string { return string(t) }

// Options select and locate a store.
type Options struct {
	Type        Type
	SQLitePath  string
	PostgresDSN string
}

// OptionsFrom picks the store settings out of the application config.
func OptionsFrom(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, errors.New("nil config")
	}
	o := Options{
		Type:        Type(cfg.DataBackend),
		SQLitePath:  cfg.SQLiteDBPath,
		PostgresDSN: cfg.PostgresDSN,
	}
	return o, o.check()
}

func (o Options) check() error {
	switch o.Type {
	case Memory:
	case SQLite:
		if o.SQLitePath == "" {
			return errors.New("sqlite backend needs a database path")
		}
	case Postgres:
		if o.PostgresDSN == "" {
			return errors.New("postgres backend needs a DSN")
		}
	default:
		return fmt.Errorf("unknown backend %q", o.Type)
	}
	return nil
}

// Opened is an open store and the function that releases it.
type Opened struct {
	Store   storage.Store
	Cleanup func() error
}

// versioned stores report the migration level they were opened at.
type versioned interface {
	SchemaVersion() uint
}

type opener func(ctx context.Context, o Options) (storage.Store, func() error, error)

var openers = map[Type]opener{
	Memory: func(context.Context, Options) (storage.Store, func() error, error) {
		s := memory.New()
		return s, s.Close, nil
	},
	SQLite: func(_ context.Context, o Options) (storage.Store, func() error, error) {
		s, err := storage.NewSQLiteRepository(o.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	},
	Postgres: func(ctx context.Context, o Options) (storage.Store, func() error, error) {
		s, err := postgres.Open(ctx, o.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	},
}

// Open creates the store described by o.
func Open(ctx context.Context, o Options, logger *log.Logger) (*Opened, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := o.check(); err != nil {
		return nil, err
	}
	store, cleanup, err := openers[o.Type](ctx, o)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", o.Type, err)
	}

	attrs := []any{"backend", o.Type.String()}
	if v, ok := store.(versioned); ok {
		attrs = append(attrs, "schema_version", v.SchemaVersion())
	}
	if o.Type == SQLite {
		attrs = append(attrs, "db_path", o.SQLitePath)
	}
	logger.WithComponent(log.ComponentBackend).Info("Store opened", attrs...)
	return &Opened{Store: store, Cleanup: cleanup}, nil
}
