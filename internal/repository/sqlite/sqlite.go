package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wormmap/internal/domain"
	"wormmap/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Repository using SQLite.
type Repository struct {
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

// New opens (creating if necessary) the database at dbPath and migrates
// the schema.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		taken_at DATETIME NOT NULL,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		graph JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		machine_id INTEGER PRIMARY KEY,
		x REAL NOT NULL,
		y REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveSnapshot stores one emitted graph.
func (r *Repository) SaveSnapshot(ctx context.Context, record repository.SnapshotRecord) error {
	graph, err := json.Marshal(record.Graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, taken_at, node_count, edge_count, graph)
		VALUES (?, ?, ?, ?, ?)
	`, record.ID, record.TakenAt.UTC(), record.NodeCount, record.EdgeCount, graph)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot with its graph body, or
// nil when none exists.
func (r *Repository) LatestSnapshot(ctx context.Context) (*repository.SnapshotRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, taken_at, node_count, edge_count, graph
		FROM snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`)

	var (
		record repository.SnapshotRecord
		graph  []byte
	)
	if err := row.Scan(&record.ID, &record.TakenAt, &record.NodeCount, &record.EdgeCount, &graph); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	record.Graph = &domain.Graph{}
	if err := json.Unmarshal(graph, record.Graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	return &record, nil
}

// ListSnapshots returns snapshot metadata (no graph bodies), newest
// first.
func (r *Repository) ListSnapshots(ctx context.Context, limit int) ([]repository.SnapshotRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, taken_at, node_count, edge_count
		FROM snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	records := make([]repository.SnapshotRecord, 0, limit)
	for rows.Next() {
		var record repository.SnapshotRecord
		if err := rows.Scan(&record.ID, &record.TakenAt, &record.NodeCount, &record.EdgeCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// PruneSnapshots deletes all but the newest keep snapshots.
func (r *Repository) PruneSnapshots(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

// SavePositions upserts a batch of node positions in one transaction.
func (r *Repository) SavePositions(ctx context.Context, positions []domain.NodePosition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, pos := range positions {
		if err := upsertPosition(ctx, tx, pos); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SavePosition upserts a single node position.
func (r *Repository) SavePosition(ctx context.Context, position domain.NodePosition) error {
	return upsertPosition(ctx, r.db, position)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertPosition(ctx context.Context, db execer, pos domain.NodePosition) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO positions (machine_id, x, y, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(machine_id) DO UPDATE SET
			x = excluded.x,
			y = excluded.y,
			updated_at = excluded.updated_at
	`, int(pos.MachineID), pos.X, pos.Y, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert position for machine %d: %w", pos.MachineID, err)
	}
	return nil
}

// GetPositions returns all stored node positions.
func (r *Repository) GetPositions(ctx context.Context) ([]domain.NodePosition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT machine_id, x, y, updated_at FROM positions ORDER BY machine_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.NodePosition
	for rows.Next() {
		var (
			pos domain.NodePosition
			id  int
		)
		if err := rows.Scan(&id, &pos.X, &pos.Y, &pos.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		pos.MachineID = domain.MachineID(id)
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}
