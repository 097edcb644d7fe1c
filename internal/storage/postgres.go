package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"clipflow/internal/models"
)

// PostgresConfig tunes the connection pool behind the Postgres-backed
// repository.
type PostgresConfig struct {
	DSN             string
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
	ApplicationName string
}

const videoReferencesSchema = `
CREATE TABLE IF NOT EXISTS video_references (
	id TEXT PRIMARY KEY,
	video_url TEXT NOT NULL,
	public_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a Postgres-backed VideoRepository and ensures its
// schema exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (VideoRepository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if _, err := pool.Exec(ctx, videoReferencesSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure video_references schema: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *postgresStore) CreateVideoReference(ctx context.Context, url, publicID string) (models.VideoReference, error) {
	if url == "" || publicID == "" {
		return models.VideoReference{}, fmt.Errorf("videoUrl and publicId are required")
	}
	ref := models.VideoReference{
		ID:        newID(),
		URL:       url,
		PublicID:  publicID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO video_references (id, video_url, public_id, created_at) VALUES ($1, $2, $3, $4)`,
		ref.ID, ref.URL, ref.PublicID, ref.CreatedAt,
	)
	if err != nil {
		return models.VideoReference{}, fmt.Errorf("insert video reference: %w", err)
	}
	return ref, nil
}

func (s *postgresStore) DeleteVideoReference(ctx context.Context, id, publicID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM video_references WHERE id = $1 AND public_id = $2`,
		id, publicID,
	)
	if err != nil {
		return fmt.Errorf("delete video reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) ListVideoReferences(ctx context.Context) ([]models.VideoReference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, video_url, public_id, created_at FROM video_references ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list video references: %w", err)
	}
	defer rows.Close()

	var refs []models.VideoReference
	for rows.Next() {
		var ref models.VideoReference
		if err := rows.Scan(&ref.ID, &ref.URL, &ref.PublicID, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video reference: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video references: %w", err)
	}
	return refs, nil
}

func (s *postgresStore) Close() {
	s.pool.Close()
}
