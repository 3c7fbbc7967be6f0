package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uniplaces/carbon"
	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/config"
	"github.com/Hanishchow/Biocore-agent/internal/analysis"
)

// ErrNotFound is returned when no analysis has the requested slug.
var ErrNotFound = errors.New("analysis not found")

const schema = "CREATE TABLE IF NOT EXISTS analyses (" +
	"id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY, " +
	"slug VARCHAR(32) NOT NULL UNIQUE, " +
	"compound_queried TEXT NOT NULL, " +
	"pdb_id CHAR(4) NOT NULL, " +
	"model VARCHAR(255) NOT NULL, " +
	"payload JSON NOT NULL, " +
	"report MEDIUMTEXT NOT NULL, " +
	"created_at DATETIME NOT NULL, " +
	"updated_at DATETIME NOT NULL, " +
	"INDEX analyses_pdb_id_index (pdb_id))"

const selectColumns = "SELECT id, slug, compound_queried, pdb_id, model, payload, report, created_at, updated_at FROM analyses"

// Store keeps finished analyses in MySQL.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New creates a new Store instance
func New(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log.Named("store")}
}

// Open connects to MySQL and checks the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db, log), nil
}

// GetDB returns the underlying sql.DB instance
func (store *Store) GetDB() *sql.DB {
	return store.db
}

func (store *Store) EnsureSchema(ctx context.Context) error {
	if _, err := store.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create analyses table: %w", err)
	}
	return nil
}

func (store *Store) Name() string {
	return "mysql"
}

// Archive stores a finished report.
func (store *Store) Archive(ctx context.Context, report analysis.Report) error {
	id, err := store.CreateAnalysis(ctx, report)
	if err != nil {
		return err
	}
	store.log.Info("analysis stored", zap.Int64("id", id), zap.String("slug", report.Slug))
	return nil
}

func (store *Store) CreateAnalysis(ctx context.Context, report analysis.Report) (int64, error) {
	if report.Slug == "" || report.PDBID == "" || report.Text == "" {
		return 0, errors.New("missing required fields")
	}

	stamp := carbon.Now()
	if !report.CreatedAt.IsZero() {
		stamp = carbon.NewCarbon(report.CreatedAt)
	}
	createdAt := stamp.DateTimeString()
	result, err := store.db.ExecContext(ctx,
		"INSERT INTO analyses (slug, compound_queried, pdb_id, model, payload, report, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		report.Slug, report.CompoundQueried, report.PDBID, report.Model, report.Payload, report.Text, createdAt, createdAt)
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}
	return id, nil
}

func (store *Store) FindAnalysisBySlug(ctx context.Context, slug string) (Analysis, error) {
	var a Analysis
	var payload string
	err := store.db.QueryRowContext(ctx, selectColumns+" WHERE slug = ?", slug).Scan(
		&a.ID,
		&a.Slug,
		&a.CompoundQueried,
		&a.PDBID,
		&a.Model,
		&payload,
		&a.Report,
		&a.CreatedAt,
		&a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}

	a.Payload = json.RawMessage(payload)
	return a, nil
}

// ListAnalysesByPDBID returns the most recent analyses of one structure, newest first.
func (store *Store) ListAnalysesByPDBID(ctx context.Context, pdbID string, limit int) ([]Analysis, error) {
	rows, err := store.db.QueryContext(ctx, selectColumns+" WHERE pdb_id = ? ORDER BY id DESC LIMIT ?", pdbID, limit)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			store.log.Debug("error closing rows", zap.Error(err))
		}
	}(rows)

	analyses := []Analysis{}
	for rows.Next() {
		var a Analysis
		var payload string
		if err := rows.Scan(&a.ID, &a.Slug, &a.CompoundQueried, &a.PDBID, &a.Model, &payload, &a.Report, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Payload = json.RawMessage(payload)
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
