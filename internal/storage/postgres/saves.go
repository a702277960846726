// Package postgres stores save records in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/kater/internal/config"
	"github.com/cory-johannsen/kater/internal/storage"
)

// ErrSchemaMissing means the saves table has not been migrated.
var ErrSchemaMissing = errors.New("saves table missing; run cmd/migrate")

// applicationName tags kater's sessions in pg_stat_activity.
const applicationName = "kater"

// SaveRepository stores save records in the saves table. It implements
// storage.Store.
type SaveRepository struct {
	db *pgxpool.Pool
}

// Open connects to the database described by cfg.
//
// Postcondition: The saves table exists. On error no pool is left open;
// ErrSchemaMissing is returned when the database is reachable but unmigrated.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SaveRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	return open(ctx, poolCfg)
}

// OpenDSN is Open for a connection string with pgx's default pool limits.
func OpenDSN(ctx context.Context, dsn string) (*SaveRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn: %w", err)
	}
	return open(ctx, poolCfg)
}

func open(ctx context.Context, poolCfg *pgxpool.Config) (*SaveRepository, error) {
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	r := &SaveRepository{db: pool}
	if err := r.checkSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *SaveRepository) checkSchema(ctx context.Context) error {
	var present bool
	err := r.db.QueryRow(ctx, `SELECT to_regclass('saves') IS NOT NULL`).Scan(&present)
	if err != nil {
		cc := r.db.Config().ConnConfig
		return fmt.Errorf("checking saves schema on %s:%d: %w", cc.Host, cc.Port, err)
	}
	if !present {
		return ErrSchemaMissing
	}
	return nil
}

// Ready reports whether the saves table answers within timeout.
//
// Precondition: The repository must not be closed.
func (r *SaveRepository) Ready(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.checkSchema(ctx)
}

// Close releases the connection pool.
func (r *SaveRepository) Close() {
	r.db.Close()
}

// SaveInfo describes the stored row without its record.
type SaveInfo struct {
	PlayerID  uuid.UUID
	Revision  int64
	UpdatedAt time.Time
}

// Load returns the record of playerID.
//
// Postcondition: Returns the record, storage.ErrSaveNotFound, or a wrapped
// query error.
func (r *SaveRepository) Load(ctx context.Context, playerID uuid.UUID) ([]byte, error) {
	var record string
	err := r.db.QueryRow(ctx,
		`SELECT record FROM saves WHERE player_id = $1`,
		playerID,
	).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrSaveNotFound
		}
		return nil, fmt.Errorf("querying save %s: %w", playerID, err)
	}
	return []byte(record), nil
}

// Save upserts the record of playerID, bumping its revision.
//
// Postcondition: Exactly one row exists for playerID holding record.
func (r *SaveRepository) Save(ctx context.Context, playerID uuid.UUID, record []byte) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO saves (player_id, record)
		 VALUES ($1, $2)
		 ON CONFLICT (player_id) DO UPDATE
		 SET record = EXCLUDED.record,
		     revision = saves.revision + 1,
		     updated_at = NOW()`,
		playerID, string(record),
	)
	if err != nil {
		return fmt.Errorf("upserting save %s: %w", playerID, err)
	}
	return nil
}

// Info returns row metadata for playerID.
func (r *SaveRepository) Info(ctx context.Context, playerID uuid.UUID) (SaveInfo, error) {
	info := SaveInfo{PlayerID: playerID}
	err := r.db.QueryRow(ctx,
		`SELECT revision, updated_at FROM saves WHERE player_id = $1`,
		playerID,
	).Scan(&info.Revision, &info.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SaveInfo{}, storage.ErrSaveNotFound
		}
		return SaveInfo{}, fmt.Errorf("querying save info %s: %w", playerID, err)
	}
	return info, nil
}

// Delete removes the record of playerID.
//
// Postcondition: Returns storage.ErrSaveNotFound if no row existed.
func (r *SaveRepository) Delete(ctx context.Context, playerID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM saves WHERE player_id = $1`, playerID)
	if err != nil {
		return fmt.Errorf("deleting save %s: %w", playerID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrSaveNotFound
	}
	return nil
}
