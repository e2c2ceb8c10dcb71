package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MapNode is the reconciled per-machine view built from the machine,
// net-node, agent, and propagation collections. One MapNode exists per
// known machine, whether or not a net-node or agent record matched it.
type MapNode struct {
	MachineID         MachineID                 `json:"machine_id"`
	NetworkInterfaces []string                  `json:"network_interfaces"`
	Running           bool                      `json:"running"`
	Communications    map[MachineID]CommTypeSet `json:"communications"`
	OperatingSystem   string                    `json:"operating_system"`
	Hostname          string                    `json:"hostname"`
	Island            bool                      `json:"island"`
	Propagated        bool                      `json:"propagated"`
	AgentStartTime    time.Time                 `json:"agent_start_time"`
	AgentID           *uuid.UUID                `json:"agent_id"`
	ParentID          *uuid.UUID                `json:"parent_id"`
}

// Label returns the display name for the machine: hostname when known,
// first interface address otherwise.
func (n MapNode) Label() string {
	if n.Hostname != "" {
		return n.Hostname
	}
	if addrs := (Machine{NetworkInterfaces: n.NetworkInterfaces}).InterfaceAddresses(); len(addrs) > 0 {
		return addrs[0]
	}
	return fmt.Sprintf("machine-%d", n.MachineID)
}
