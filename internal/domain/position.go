package domain

import "time"

// NodePosition is a UI-owned layout coordinate for a machine. Positions
// are written by the rendering layer and only stored here so a restart
// does not scatter the map.
type NodePosition struct {
	MachineID MachineID `json:"machine_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
