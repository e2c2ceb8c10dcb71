// Package topology reconciles the island's four collections into the
// per-machine map view, and decides when a freshly generated graph is
// different enough from the last emitted one to be worth re-rendering.
package topology

import (
	"sort"
	"time"

	"wormmap/internal/domain"
)

// Build combines the indexed collections into one MapNode per known
// machine, in ascending machine-id order. A machine with no net-node and
// no agent record still yields a MapNode with defaults: no
// communications, not running, no agent identifiers, epoch start time.
// The inputs are never mutated.
func Build(
	machines map[domain.MachineID]domain.Machine,
	netNodes map[domain.MachineID]domain.NetNode,
	agents map[domain.MachineID]domain.Agent,
	propagationIndex map[string]domain.PropagationEvent,
) []domain.MapNode {
	ids := make([]domain.MachineID, 0, len(machines))
	for id := range machines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	mapNodes := make([]domain.MapNode, 0, len(machines))
	for _, id := range ids {
		machine := machines[id]

		mapNode := domain.MapNode{
			MachineID:         machine.ID,
			NetworkInterfaces: machine.NetworkInterfaces,
			Communications:    map[domain.MachineID]domain.CommTypeSet{},
			OperatingSystem:   machine.OperatingSystem,
			Hostname:          machine.Hostname,
			Island:            machine.Island,
			Propagated:        propagatedTo(machine, propagationIndex),
			AgentStartTime:    time.Unix(0, 0).UTC(),
		}

		if netNode, ok := netNodes[machine.ID]; ok {
			mapNode.Communications = inferRelays(netNode.Connections, machines)
		}

		if agent, ok := agents[machine.ID]; ok {
			agentID := agent.ID
			mapNode.Running = agent.Running()
			mapNode.AgentID = &agentID
			mapNode.ParentID = agent.ParentID
			mapNode.AgentStartTime = agent.StartTime
		}

		mapNodes = append(mapNodes, mapNode)
	}

	return mapNodes
}

// inferRelays copies a connection map, tagging an entry with the relay
// type when its tags contain the control-channel type, lack the relay
// type, and the peer machine is known and not an island: a non-island
// machine receiving control-channel traffic is relaying it. A peer that
// is unknown, or is the island itself, is never tagged. Running the
// inference again on its own output changes nothing.
func inferRelays(connections map[domain.MachineID]domain.CommTypeSet, machines map[domain.MachineID]domain.Machine) map[domain.MachineID]domain.CommTypeSet {
	out := make(map[domain.MachineID]domain.CommTypeSet, len(connections))
	for peerID, types := range connections {
		types = types.Clone()
		if types.Has(domain.CommTypeCC) && !types.Has(domain.CommTypeRelay) {
			if peer, known := machines[peerID]; known && !peer.Island {
				types.Add(domain.CommTypeRelay)
			}
		}
		out[peerID] = types
	}
	return out
}

// propagatedTo reports whether any of the machine's interface addresses
// is the target of a successful propagation event.
func propagatedTo(machine domain.Machine, propagationIndex map[string]domain.PropagationEvent) bool {
	for _, addr := range machine.InterfaceAddresses() {
		if _, ok := propagationIndex[addr]; ok {
			return true
		}
	}
	return false
}
