// Package sqlite persists target snapshots in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/daniacca/affectdb/internal/affect"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when no snapshot exists for a target.
var ErrNotFound = errors.New("snapshot not found")

// Store persists snapshots keyed by target ID. Saving a target again replaces
// its previous snapshot.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures its schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save validates and stores a snapshot.
func (s *Store) Save(ctx context.Context, snapshot affect.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := affect.ValidateSnapshot(snapshot); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	payload, err := affect.EncodeSnapshotJSON(snapshot)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO target_snapshots (target_id, sim_time, snapshot, saved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(target_id) DO UPDATE SET
		   sim_time = excluded.sim_time,
		   snapshot = excluded.snapshot,
		   saved_at = excluded.saved_at`,
		string(snapshot.TargetID),
		snapshot.Time,
		string(payload),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snapshot.TargetID, err)
	}
	return nil
}

// Load returns the stored snapshot of a target. A stored row that no longer
// decodes to a valid snapshot of id is reported as an error.
func (s *Store) Load(ctx context.Context, id affect.TargetID) (affect.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return affect.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return affect.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	var raw string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT snapshot FROM target_snapshots WHERE target_id = ?`,
		string(id),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return affect.Snapshot{}, fmt.Errorf("target %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return affect.Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}

	snapshot, err := affect.DecodeSnapshotJSON([]byte(raw))
	if err != nil {
		return affect.Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	if snapshot.TargetID != id {
		return affect.Snapshot{}, fmt.Errorf("load snapshot %s: stored row belongs to %s", id, snapshot.TargetID)
	}
	if err := affect.ValidateSnapshot(snapshot); err != nil {
		return affect.Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return snapshot, nil
}

// List returns the IDs of all stored targets, sorted.
func (s *Store) List(ctx context.Context) ([]affect.TargetID, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT target_id FROM target_snapshots ORDER BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	ids := make([]affect.TargetID, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan snapshot id: %w", err)
		}
		ids = append(ids, affect.TargetID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return ids, nil
}

// Delete removes a target's snapshot.
func (s *Store) Delete(ctx context.Context, id affect.TargetID) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM target_snapshots WHERE target_id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("target %s: %w", id, ErrNotFound)
	}
	return nil
}
