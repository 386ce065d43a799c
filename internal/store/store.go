package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/scrubmark/scrubmark/internal/config"
)

// Store persists annotation audit records in PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS annotation_audit (
	id           BIGSERIAL PRIMARY KEY,
	request_id   TEXT NOT NULL,
	client_ip    TEXT NOT NULL DEFAULT '',
	remark_count INTEGER NOT NULL DEFAULT 0,
	chunk_count  INTEGER NOT NULL DEFAULT 0,
	rule_ids     TEXT[] NOT NULL DEFAULT '{}',
	body_bytes   BIGINT NOT NULL DEFAULT 0,
	cache_hit    BOOLEAN NOT NULL DEFAULT FALSE,
	duration_ms  DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// New creates a new audit store instance
func New(cfg *config.StoreConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Audit store initialized successfully",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return store, nil
}

// initialize checks the database connection and ensures the audit table exists
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}

	return nil
}

// Insert adds a new audit record
func (s *Store) Insert(ctx context.Context, record *AuditRecord) error {
	query := `
		INSERT INTO annotation_audit (request_id, client_ip, remark_count, chunk_count, rule_ids, body_bytes, cache_hit, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		record.RequestID,
		record.ClientIP,
		record.RemarkCount,
		record.ChunkCount,
		record.RuleIDs,
		record.BodyBytes,
		record.CacheHit,
		record.DurationMS,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		s.logger.Error("Failed to insert audit record",
			zap.Error(err),
			zap.String("request_id", record.RequestID))
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	s.logger.Debug("Audit record inserted",
		zap.Int64("id", record.ID),
		zap.String("request_id", record.RequestID))

	return nil
}

// Recent returns the most recent audit records, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []AuditRecord
	query := `
		SELECT id, request_id, client_ip, remark_count, chunk_count, rule_ids, body_bytes, cache_hit, duration_ms, created_at
		FROM annotation_audit
		ORDER BY created_at DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}

	return records, nil
}

// GetStats returns aggregate audit statistics
func (s *Store) GetStats(ctx context.Context) (*AuditStats, error) {
	var stats AuditStats
	query := `
		SELECT
			COUNT(*) AS total_requests,
			COALESCE(SUM(remark_count), 0) AS total_remarks,
			COALESCE(SUM(chunk_count), 0) AS total_chunks,
			COUNT(*) FILTER (WHERE cache_hit) AS cache_hits,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms,
			COUNT(DISTINCT client_ip) AS distinct_clients
		FROM annotation_audit`

	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to query audit stats: %w", err)
	}

	return &stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks credentials in a database URL for logging
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if idx := strings.LastIndex(userPart, ":"); idx > strings.Index(userPart, "//")+1 {
				parts[0] = userPart[:idx] + ":***"
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
