package repository

import (
	"context"
	"time"

	"wormmap/internal/domain"
)

// SnapshotRecord is one persisted emission of the map graph, kept for
// history views and for seeding the differ across restarts.
type SnapshotRecord struct {
	ID        string        `json:"id"`
	TakenAt   time.Time     `json:"taken_at"`
	NodeCount int           `json:"node_count"`
	EdgeCount int           `json:"edge_count"`
	Graph     *domain.Graph `json:"graph,omitempty"`
}

// Repository defines the data access surface for the map server.
type Repository interface {
	// Snapshot history
	SaveSnapshot(ctx context.Context, record SnapshotRecord) error
	LatestSnapshot(ctx context.Context) (*SnapshotRecord, error)
	ListSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error)
	PruneSnapshots(ctx context.Context, keep int) error

	// Layout persistence (positions are owned by the rendering layer)
	SavePositions(ctx context.Context, positions []domain.NodePosition) error
	SavePosition(ctx context.Context, position domain.NodePosition) error
	GetPositions(ctx context.Context) ([]domain.NodePosition, error)

	// Close releases resources
	Close() error
}
