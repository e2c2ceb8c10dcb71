// Package handler exposes the reconciled map over HTTP for the rendering
// layer: the graph, the per-machine table, poll status, layout positions,
// and snapshot history.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"wormmap/internal/domain"
	"wormmap/internal/repository"
	"wormmap/internal/service"
)

// MapProvider serves the reconciled state. Implemented by
// service.MapService.
type MapProvider interface {
	Graph() *domain.Graph
	MapNodes() []domain.MapNode
	Status() service.Status
}

// RefreshTrigger runs one poll cycle on demand.
type RefreshTrigger interface {
	Refresh(ctx context.Context) error
}

// MapHandler handles the map API requests.
type MapHandler struct {
	provider MapProvider
	refresh  RefreshTrigger
	repo     repository.Repository // nil disables positions/snapshots endpoints
}

// NewMapHandler creates a map handler.
func NewMapHandler(provider MapProvider, refresh RefreshTrigger, repo repository.Repository) *MapHandler {
	return &MapHandler{provider: provider, refresh: refresh, repo: repo}
}

// Error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GetGraph returns the last emitted graph.
func (h *MapHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	graph := h.provider.Graph()
	if graph == nil {
		// Nothing fetched yet; give the UI an empty shell to render.
		graph = &domain.Graph{Nodes: []domain.GraphNode{}, Edges: []domain.GraphEdge{}}
	}
	h.writeJSON(w, graph, http.StatusOK)
}

// ListMachines returns the reconciled per-machine view for tabular use.
func (h *MapHandler) ListMachines(w http.ResponseWriter, r *http.Request) {
	mapNodes := h.provider.MapNodes()
	if mapNodes == nil {
		mapNodes = []domain.MapNode{}
	}
	h.writeJSON(w, mapNodes, http.StatusOK)
}

// GetStatus returns poll pipeline status.
func (h *MapHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.provider.Status(), http.StatusOK)
}

// TriggerRefresh runs one poll cycle in the background.
func (h *MapHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.refresh.Refresh(context.Background()); err != nil {
			log.Printf("Manual refresh failed: %v", err)
		}
	}()
	h.writeJSON(w, map[string]string{"status": "refresh_triggered"}, http.StatusAccepted)
}

// GetPositions returns all stored node positions.
func (h *MapHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, "Persistence disabled", "", http.StatusServiceUnavailable)
		return
	}
	positions, err := h.repo.GetPositions(r.Context())
	if err != nil {
		log.Printf("Failed to get positions: %v", err)
		h.writeError(w, "Failed to get positions", err.Error(), http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []domain.NodePosition{}
	}
	h.writeJSON(w, positions, http.StatusOK)
}

// SavePositions stores a batch of node positions from the UI.
func (h *MapHandler) SavePositions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, "Persistence disabled", "", http.StatusServiceUnavailable)
		return
	}
	var positions []domain.NodePosition
	if err := json.NewDecoder(r.Body).Decode(&positions); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.SavePositions(r.Context(), positions); err != nil {
		log.Printf("Failed to save positions: %v", err)
		h.writeError(w, "Failed to save positions", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]int{"saved": len(positions)}, http.StatusOK)
}

// UpdatePosition stores a single node position.
func (h *MapHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, "Persistence disabled", "", http.StatusServiceUnavailable)
		return
	}
	machineID, err := strconv.Atoi(r.PathValue("machine_id"))
	if err != nil {
		h.writeError(w, "Invalid machine ID", err.Error(), http.StatusBadRequest)
		return
	}

	var pos domain.NodePosition
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	pos.MachineID = domain.MachineID(machineID) // path wins over body

	if err := h.repo.SavePosition(r.Context(), pos); err != nil {
		log.Printf("Failed to update position: %v", err)
		h.writeError(w, "Failed to update position", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, pos, http.StatusOK)
}

// ListSnapshots returns recent snapshot history metadata.
func (h *MapHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, "Persistence disabled", "", http.StatusServiceUnavailable)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, "Invalid limit", err.Error(), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := h.repo.ListSnapshots(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to list snapshots: %v", err)
		h.writeError(w, "Failed to list snapshots", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, records, http.StatusOK)
}

func (h *MapHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *MapHandler) writeError(w http.ResponseWriter, message, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Details: details,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
