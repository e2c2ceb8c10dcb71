package topology

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"wormmap/internal/domain"
)

func machineIndex(machines ...domain.Machine) map[domain.MachineID]domain.Machine {
	index := make(map[domain.MachineID]domain.Machine, len(machines))
	for _, m := range machines {
		index[m.ID] = m
	}
	return index
}

func TestBuild(t *testing.T) {
	t.Run("one map node per machine regardless of missing records", func(t *testing.T) {
		machines := machineIndex(
			domain.Machine{ID: 1, Island: true},
			domain.Machine{ID: 2},
			domain.Machine{ID: 3},
		)

		mapNodes := Build(machines, nil, nil, nil)

		if len(mapNodes) != len(machines) {
			t.Fatalf("expected %d map nodes, got %d", len(machines), len(mapNodes))
		}
		for i, want := range []domain.MachineID{1, 2, 3} {
			if mapNodes[i].MachineID != want {
				t.Errorf("position %d: expected machine %d, got %d", i, want, mapNodes[i].MachineID)
			}
		}
	})

	t.Run("defaults for isolated machine", func(t *testing.T) {
		mapNodes := Build(machineIndex(domain.Machine{ID: 7, Hostname: "ghost"}), nil, nil, nil)

		node := mapNodes[0]
		if node.Running {
			t.Error("expected not running")
		}
		if node.AgentID != nil || node.ParentID != nil {
			t.Error("expected nil agent identifiers")
		}
		if !node.AgentStartTime.Equal(time.Unix(0, 0)) {
			t.Errorf("expected epoch start time, got %v", node.AgentStartTime)
		}
		if len(node.Communications) != 0 {
			t.Errorf("expected no communications, got %v", node.Communications)
		}
		if node.Propagated {
			t.Error("expected not propagated")
		}
	})

	t.Run("agent record sets liveness and lineage", func(t *testing.T) {
		agentID := uuid.MustParse("8f9a1c3e-27b1-4b85-9a4a-111111111111")
		parentID := uuid.MustParse("8f9a1c3e-27b1-4b85-9a4a-222222222222")
		start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

		machines := machineIndex(domain.Machine{ID: 1}, domain.Machine{ID: 2})
		agents := map[domain.MachineID]domain.Agent{
			1: {ID: agentID, MachineID: 1, ParentID: &parentID, StartTime: start},
		}

		mapNodes := Build(machines, nil, agents, nil)

		running := mapNodes[0]
		if !running.Running {
			t.Error("nil stop time should mean running")
		}
		if running.AgentID == nil || *running.AgentID != agentID {
			t.Errorf("agent id not captured: %v", running.AgentID)
		}
		if running.ParentID == nil || *running.ParentID != parentID {
			t.Errorf("parent id not captured: %v", running.ParentID)
		}
		if !running.AgentStartTime.Equal(start) {
			t.Errorf("start time not captured: %v", running.AgentStartTime)
		}

		if mapNodes[1].Running {
			t.Error("machine without agent must not be running")
		}
	})

	t.Run("stopped agent is not running", func(t *testing.T) {
		stop := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
		machines := machineIndex(domain.Machine{ID: 1})
		agents := map[domain.MachineID]domain.Agent{
			1: {ID: uuid.New(), MachineID: 1, StopTime: &stop},
		}

		mapNodes := Build(machines, nil, agents, nil)
		if mapNodes[0].Running {
			t.Error("agent with stop time should not be running")
		}
	})

	t.Run("propagated via interface match", func(t *testing.T) {
		machines := machineIndex(
			domain.Machine{ID: 1, NetworkInterfaces: []string{"10.0.0.5/24"}},
			domain.Machine{ID: 2, NetworkInterfaces: []string{"10.0.0.9/24"}},
		)
		events := map[string]domain.PropagationEvent{
			"10.0.0.5": {Target: "10.0.0.5", Success: true, Type: "PropagationEvent"},
		}

		mapNodes := Build(machines, nil, nil, events)

		if !mapNodes[0].Propagated {
			t.Error("machine owning the target address should be propagated")
		}
		if mapNodes[1].Propagated {
			t.Error("machine without the target address should not be propagated")
		}
	})
}

func TestRelayInference(t *testing.T) {
	netNodesFor := func(connections map[domain.MachineID]domain.CommTypeSet) map[domain.MachineID]domain.NetNode {
		return map[domain.MachineID]domain.NetNode{
			1: {MachineID: 1, Connections: connections},
		}
	}

	t.Run("cc to known non-island peer gains relay", func(t *testing.T) {
		machines := machineIndex(domain.Machine{ID: 1}, domain.Machine{ID: 2})
		netNodes := netNodesFor(map[domain.MachineID]domain.CommTypeSet{
			2: domain.NewCommTypeSet(domain.CommTypeCC),
		})

		mapNodes := Build(machines, netNodes, nil, nil)

		if !mapNodes[0].Communications[2].Has(domain.CommTypeRelay) {
			t.Errorf("expected relay tag, got %v", mapNodes[0].Communications[2])
		}
	})

	t.Run("island peer is never tagged", func(t *testing.T) {
		machines := machineIndex(domain.Machine{ID: 1}, domain.Machine{ID: 2, Island: true})
		netNodes := netNodesFor(map[domain.MachineID]domain.CommTypeSet{
			2: domain.NewCommTypeSet(domain.CommTypeCC),
		})

		mapNodes := Build(machines, netNodes, nil, nil)

		if mapNodes[0].Communications[2].Has(domain.CommTypeRelay) {
			t.Error("island peer must not be inferred as relay")
		}
	})

	t.Run("unknown peer is never tagged", func(t *testing.T) {
		machines := machineIndex(domain.Machine{ID: 1})
		netNodes := netNodesFor(map[domain.MachineID]domain.CommTypeSet{
			99: domain.NewCommTypeSet(domain.CommTypeCC),
		})

		mapNodes := Build(machines, netNodes, nil, nil)

		if mapNodes[0].Communications[99].Has(domain.CommTypeRelay) {
			t.Error("unknown peer must not be inferred as relay")
		}
	})

	t.Run("entry without cc is untouched", func(t *testing.T) {
		machines := machineIndex(domain.Machine{ID: 1}, domain.Machine{ID: 2})
		netNodes := netNodesFor(map[domain.MachineID]domain.CommTypeSet{
			2: domain.NewCommTypeSet(domain.CommTypeScanned),
		})

		mapNodes := Build(machines, netNodes, nil, nil)

		if mapNodes[0].Communications[2].Has(domain.CommTypeRelay) {
			t.Error("scanned-only entry must not gain relay")
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		machines := machineIndex(domain.Machine{ID: 1}, domain.Machine{ID: 2})
		netNodes := netNodesFor(map[domain.MachineID]domain.CommTypeSet{
			2: domain.NewCommTypeSet(domain.CommTypeCC),
		})

		once := Build(machines, netNodes, nil, nil)

		// Feed the inferred communications back in as observations.
		again := Build(machines, map[domain.MachineID]domain.NetNode{
			1: {MachineID: 1, Connections: once[0].Communications},
		}, nil, nil)

		if diff := cmp.Diff(once[0].Communications, again[0].Communications); diff != "" {
			t.Errorf("inference not idempotent (-once +again):\n%s", diff)
		}
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		machines := machineIndex(domain.Machine{ID: 1}, domain.Machine{ID: 2})
		original := domain.NewCommTypeSet(domain.CommTypeCC)
		netNodes := netNodesFor(map[domain.MachineID]domain.CommTypeSet{2: original})

		Build(machines, netNodes, nil, nil)

		if original.Has(domain.CommTypeRelay) {
			t.Error("builder mutated the fetched net-node record")
		}
	})

	t.Run("spec example: island peer stays clean", func(t *testing.T) {
		// machines = {A(island=false), B(island=true)}; A observes
		// {B: [cc]}. B is the island, so no relay tag appears anywhere.
		machines := machineIndex(
			domain.Machine{ID: 1, Hostname: "A"},
			domain.Machine{ID: 2, Hostname: "B", Island: true},
		)
		netNodes := map[domain.MachineID]domain.NetNode{
			1: {MachineID: 1, Connections: map[domain.MachineID]domain.CommTypeSet{
				2: domain.NewCommTypeSet(domain.CommTypeCC),
			}},
		}

		mapNodes := Build(machines, netNodes, nil, nil)

		want := map[domain.MachineID]domain.CommTypeSet{
			2: domain.NewCommTypeSet(domain.CommTypeCC),
		}
		if diff := cmp.Diff(want, mapNodes[0].Communications); diff != "" {
			t.Errorf("A's communications changed (-want +got):\n%s", diff)
		}
		if len(mapNodes[1].Communications) != 0 {
			t.Errorf("B has no net-node, expected no communications, got %v", mapNodes[1].Communications)
		}
	})
}
