package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mail-triage/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordOutcome appends one finished run to the audit trail.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, o *model.Outcome) error {
	const query = `
		INSERT INTO outcomes (
			message_id, run_id, sender, subject,
			category, topic, send_status, cleanup_status,
			stage, attempt, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		o.MessageID, o.RunID, o.Sender, o.Subject,
		o.Category, o.Topic, o.SendStatus, o.CleanupStatus,
		o.Stage, o.Attempt, o.Error,
		o.StartedAt.UTC(), o.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting outcome for message %s: %w", o.MessageID, err)
	}

	return nil
}

// GetOutcomes retrieves outcomes matching the provided filter options,
// most recent first.
func (s *SQLiteStore) GetOutcomes(
	ctx context.Context,
	filter OutcomeFilter,
) ([]model.Outcome, error) {
	var conditions []string
	var args []interface{}

	if filter.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, *filter.Category)
	}
	if filter.RunID != nil {
		conditions = append(conditions, "run_id = ?")
		args = append(args, *filter.RunID)
	}

	query := "SELECT * FROM outcomes"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY finished_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var outcomes []model.Outcome
	if err := s.db.SelectContext(ctx, &outcomes, query, args...); err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}

	return outcomes, nil
}

// GetStats aggregates the audit trail into operator-facing counters.
func (s *SQLiteStore) GetStats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		ByCategory: make(map[string]int64),
	}

	if err := s.db.GetContext(
		ctx, &stats.Total, "SELECT COUNT(*) FROM outcomes",
	); err != nil {
		return nil, fmt.Errorf("counting outcomes: %w", err)
	}

	rows, err := s.db.QueryxContext(
		ctx, "SELECT category, COUNT(*) AS n FROM outcomes GROUP BY category",
	)
	if err != nil {
		return nil, fmt.Errorf("counting outcomes by category: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		stats.ByCategory[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading category counts: %w", err)
	}

	if err := s.db.GetContext(
		ctx, &stats.RepliesSent,
		"SELECT COUNT(*) FROM outcomes WHERE send_status = ?", model.SendSent.String(),
	); err != nil {
		return nil, fmt.Errorf("counting sent replies: %w", err)
	}

	if err := s.db.GetContext(
		ctx, &stats.RepliesFailed,
		"SELECT COUNT(*) FROM outcomes WHERE send_status = ?", model.SendFailed.String(),
	); err != nil {
		return nil, fmt.Errorf("counting failed replies: %w", err)
	}

	if err := s.db.GetContext(
		ctx, &stats.CleanupFailed,
		"SELECT COUNT(*) FROM outcomes WHERE cleanup_status = ?", model.CleanupFailed.String(),
	); err != nil {
		return nil, fmt.Errorf("counting failed cleanups: %w", err)
	}

	return stats, nil
}
