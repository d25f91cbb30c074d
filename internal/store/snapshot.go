package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSnapshots stores collection snapshots as jsonb rows keyed by
// collection name.
type PostgresSnapshots struct {
	pool *pgxpool.Pool
}

func NewPostgresSnapshots(databaseURL string) (*PostgresSnapshots, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSnapshots{pool: pool}, nil
}

func (p *PostgresSnapshots) Save(ctx context.Context, collection string, data []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO snapshots (collection, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (collection) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", collection, err)
	}
	return nil
}

func (p *PostgresSnapshots) Load(ctx context.Context, collection string) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		"SELECT data FROM snapshots WHERE collection = $1",
		collection,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", collection, err)
	}
	return data, nil
}

func (p *PostgresSnapshots) Close() {
	p.pool.Close()
}
