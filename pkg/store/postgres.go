package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/storekit/config-hub/pkg/core"
)

// PostgresConfig holds the connection string for the postgres backend.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// PostgresStore persists documents as jsonb rows keyed by shop.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS shop_configs (
    shop       TEXT PRIMARY KEY,
    document   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, shop string) (*core.Document, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM shop_configs WHERE shop = $1`, shop,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: shop=%s", core.ErrConfigNotFound, shop)
		}
		return nil, fmt.Errorf("select config: %w", err)
	}

	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, shop string, doc *core.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO shop_configs (shop, document, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (shop) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
		shop, data)
	if err != nil {
		return fmt.Errorf("upsert config: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
