// Package service orchestrates the poll pipeline: fetch the island's
// collections, reconcile them into map nodes, project the graph, and
// emit it only when it actually changed.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wormmap/internal/domain"
	"wormmap/internal/repository"
	"wormmap/internal/topology"
)

// Fetcher reads the four island collections. Implemented by
// island.Client.
type Fetcher interface {
	FetchMachines(ctx context.Context) (map[domain.MachineID]domain.Machine, error)
	FetchNetNodes(ctx context.Context) (map[domain.MachineID]domain.NetNode, error)
	FetchAgents(ctx context.Context) (map[domain.MachineID]domain.Agent, error)
	FetchPropagationEvents(ctx context.Context) (map[string]domain.PropagationEvent, error)
}

// Status describes the poll pipeline for the status endpoint.
type Status struct {
	Cycles        uint64     `json:"cycles"`
	Emissions     uint64     `json:"emissions"`
	LastSuccess   *time.Time `json:"last_success,omitempty"`
	LastEmit      *time.Time `json:"last_emit,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	MachineCount  int        `json:"machine_count"`
	EdgeCount     int        `json:"edge_count"`
	SnapshotsKept int        `json:"snapshots_kept"`
}

// MapService runs poll cycles and owns the served map state.
type MapService struct {
	fetcher  Fetcher
	repo     repository.Repository // nil disables persistence
	eventBus *EventBus

	snapshot      topology.Snapshot
	snapshotsKept int

	mu          sync.RWMutex
	mapNodes    []domain.MapNode
	graph       *domain.Graph
	cycles      uint64
	emissions   uint64
	lastSuccess *time.Time
	lastEmit    *time.Time
	lastErr     error
}

// NewMapService creates a map service. repo may be nil to run without
// persistence; snapshotsKept bounds the stored history.
func NewMapService(fetcher Fetcher, repo repository.Repository, eventBus *EventBus, snapshotsKept int) *MapService {
	if snapshotsKept <= 0 {
		snapshotsKept = 100
	}
	return &MapService{
		fetcher:       fetcher,
		repo:          repo,
		eventBus:      eventBus,
		snapshotsKept: snapshotsKept,
	}
}

// SeedFromRepository loads the most recent persisted snapshot and commits
// it to the differ, so a restart with an unchanged network does not
// re-emit to connected clients.
func (s *MapService) SeedFromRepository(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	record, err := s.repo.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	if record == nil || record.Graph.Empty() {
		return nil
	}

	s.snapshot.Commit(record.Graph)
	s.mu.Lock()
	s.graph = record.Graph
	s.mu.Unlock()

	log.Printf("Seeded map from snapshot %s (%d nodes, %d edges)",
		record.ID, record.NodeCount, record.EdgeCount)
	return nil
}

// Refresh runs one fetch/build/diff cycle. A failure fetching any
// collection aborts the whole cycle: partial collections are never mixed
// with stale ones, the previously served state stays untouched, and the
// next tick simply retries.
func (s *MapService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.cycles++
	s.mu.Unlock()

	var (
		machines map[domain.MachineID]domain.Machine
		netNodes map[domain.MachineID]domain.NetNode
		agents   map[domain.MachineID]domain.Agent
		events   map[string]domain.PropagationEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		machines, err = s.fetcher.FetchMachines(gctx)
		return err
	})
	g.Go(func() (err error) {
		netNodes, err = s.fetcher.FetchNetNodes(gctx)
		return err
	})
	g.Go(func() (err error) {
		agents, err = s.fetcher.FetchAgents(gctx)
		return err
	})
	g.Go(func() (err error) {
		events, err = s.fetcher.FetchPropagationEvents(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.recordFailure(err)
		return err
	}

	mapNodes := topology.Build(machines, netNodes, agents, events)
	graph := domain.DeriveGraph(mapNodes)

	now := time.Now().UTC()

	s.mu.Lock()
	recovered := s.lastErr != nil
	s.lastErr = nil
	s.lastSuccess = &now
	s.mapNodes = mapNodes
	s.mu.Unlock()

	if recovered {
		s.eventBus.Publish(Event{Type: EventPollRecovered})
	}

	if !s.snapshot.ShouldEmit(graph) {
		return nil
	}
	s.emit(ctx, graph, now)
	return nil
}

func (s *MapService) emit(ctx context.Context, graph *domain.Graph, at time.Time) {
	s.snapshot.Commit(graph)

	s.mu.Lock()
	s.graph = graph
	s.emissions++
	s.lastEmit = &at
	s.mu.Unlock()

	s.eventBus.Publish(Event{Type: EventMapUpdated, Payload: graph})

	if s.repo == nil {
		return
	}
	record := repository.SnapshotRecord{
		ID:        uuid.NewString(),
		TakenAt:   at,
		NodeCount: len(graph.Nodes),
		EdgeCount: len(graph.Edges),
		Graph:     graph,
	}
	if err := s.repo.SaveSnapshot(ctx, record); err != nil {
		log.Printf("Failed to persist snapshot: %v", err)
		return
	}
	if err := s.repo.PruneSnapshots(ctx, s.snapshotsKept); err != nil {
		log.Printf("Failed to prune snapshots: %v", err)
	}
}

func (s *MapService) recordFailure(err error) {
	s.mu.Lock()
	first := s.lastErr == nil
	s.lastErr = err
	s.mu.Unlock()

	log.Printf("Poll cycle failed: %v", err)
	if first {
		s.eventBus.Publish(Event{Type: EventPollFailed, Payload: err.Error()})
	}
}

// Graph returns the last emitted graph, or nil before the first
// successful cycle.
func (s *MapService) Graph() *domain.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// MapNodes returns the reconciled per-machine view from the last
// successful cycle, for tabular (non-graph) presentation.
func (s *MapService) MapNodes() []domain.MapNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapNodes
}

// Status reports pipeline counters for the status endpoint.
func (s *MapService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Cycles:        s.cycles,
		Emissions:     s.emissions,
		LastSuccess:   s.lastSuccess,
		LastEmit:      s.lastEmit,
		MachineCount:  len(s.mapNodes),
		SnapshotsKept: s.snapshotsKept,
	}
	if s.graph != nil {
		st.EdgeCount = len(s.graph.Edges)
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
