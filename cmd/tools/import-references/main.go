// Command import-references loads video references from a JSON export into
// Postgres and verifies the row count afterwards.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"clipflow/internal/models"
	"clipflow/internal/storage"
)

func main() {
	jsonPath := flag.String("json", "data/references.json", "path to the JSON export to import")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	dsn := strings.TrimSpace(*postgresDSN)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("CLIPFLOW_POSTGRES_DSN"))
	}
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		logger.Error("postgres DSN required", "hint", "set --postgres-dsn, CLIPFLOW_POSTGRES_DSN, or DATABASE_URL")
		os.Exit(1)
	}

	references, err := loadReferences(*jsonPath)
	if err != nil {
		logger.Error("failed to load JSON export", "error", err)
		os.Exit(1)
	}
	logger.Info("loaded JSON export", "path", *jsonPath, "references", len(references))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := storage.NewPostgresStore(ctx, storage.PostgresConfig{
		DSN:             dsn,
		ApplicationName: "clipflow-import-references",
	})
	if err != nil {
		logger.Error("failed to open postgres store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	imported := 0
	for _, ref := range references {
		if strings.TrimSpace(ref.URL) == "" || strings.TrimSpace(ref.PublicID) == "" {
			logger.Warn("skipping incomplete reference", "id", ref.ID)
			continue
		}
		if _, err := store.CreateVideoReference(ctx, ref.URL, ref.PublicID); err != nil {
			logger.Error("failed to import reference", "publicId", ref.PublicID, "error", err)
			os.Exit(1)
		}
		imported++
	}

	if err := verifyCount(ctx, dsn, imported); err != nil {
		logger.Error("verification failed", "error", err)
		os.Exit(1)
	}

	logger.Info("import completed", "references", imported)
}

func loadReferences(path string) ([]models.VideoReference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var references []models.VideoReference
	if err := json.Unmarshal(data, &references); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return references, nil
}

func verifyCount(ctx context.Context, dsn string, expected int) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse verification config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open verification connection: %w", err)
	}
	defer pool.Close()

	var actual int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM video_references").Scan(&actual); err != nil {
		return fmt.Errorf("count video_references: %w", err)
	}
	if actual < expected {
		return fmt.Errorf("expected at least %d rows, found %d", expected, actual)
	}
	return nil
}
