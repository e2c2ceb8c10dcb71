package domain

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a running or finished agent process on a machine. ParentID
// links to the agent that spawned it, forming the propagation tree; a nil
// ParentID marks a root agent. A nil StopTime means the agent is still
// running.
type Agent struct {
	ID        uuid.UUID  `json:"id"`
	MachineID MachineID  `json:"machine_id"`
	ParentID  *uuid.UUID `json:"parent_id"`
	StartTime time.Time  `json:"start_time"`
	StopTime  *time.Time `json:"stop_time"`
}

// Running reports whether the agent has not stopped yet.
func (a Agent) Running() bool {
	return a.StopTime == nil
}
