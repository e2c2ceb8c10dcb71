package domain

import (
	"fmt"
	"sort"
)

// Graph is the derived view for vis-network visualization. It is
// regenerated from scratch every poll cycle; the rendering layer is free
// to mutate the instance it is handed (positions, selection state).
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode represents a machine in the visualization.
type GraphNode struct {
	ID    MachineID `json:"id"`
	Label string    `json:"label"`
	Group string    `json:"group"` // drives icon selection in the UI
}

// GraphEdge represents observed traffic from one machine to a peer.
// Edges are directional: relay inference is asymmetric, so A->B and B->A
// may carry different tag sets.
type GraphEdge struct {
	ID    string              `json:"id"`
	From  MachineID           `json:"from"`
	To    MachineID           `json:"to"`
	Types []CommunicationType `json:"types"`
}

// Empty reports whether the graph has no nodes and no edges.
func (g *Graph) Empty() bool {
	return g == nil || (len(g.Nodes) == 0 && len(g.Edges) == 0)
}

// Clone returns a deep copy sharing no memory with g.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		Nodes: make([]GraphNode, len(g.Nodes)),
		Edges: make([]GraphEdge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	for i, e := range g.Edges {
		types := make([]CommunicationType, len(e.Types))
		copy(types, e.Types)
		e.Types = types
		out.Edges[i] = e
	}
	return out
}

// DeriveGraph projects a MapNode sequence into a renderable graph: one
// node per machine, one edge per (machine, peer) pair with at least one
// communication tag. When both directions of a pair carry identical tag
// sets only one edge is emitted; differing sets stay as two directional
// edges, since relay inference is asymmetric. Output order is sorted by
// machine id (and peer id within a machine) so identical input yields an
// identical graph.
func DeriveGraph(mapNodes []MapNode) *Graph {
	graph := &Graph{
		Nodes: make([]GraphNode, 0, len(mapNodes)),
		Edges: make([]GraphEdge, 0, len(mapNodes)),
	}

	sorted := make([]MapNode, len(mapNodes))
	copy(sorted, mapNodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MachineID < sorted[j].MachineID })

	comms := make(map[MachineID]map[MachineID]CommTypeSet, len(sorted))
	for _, node := range sorted {
		comms[node.MachineID] = node.Communications
	}

	for _, node := range sorted {
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:    node.MachineID,
			Label: node.Label(),
			Group: nodeGroup(node),
		})

		peers := make([]MachineID, 0, len(node.Communications))
		for peer := range node.Communications {
			peers = append(peers, peer)
		}
		sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

		for _, peer := range peers {
			types := node.Communications[peer]
			if len(types) == 0 {
				continue
			}
			// The lower-id direction already covered this pair.
			if peer < node.MachineID && sameTagSet(types, comms[peer][node.MachineID]) {
				continue
			}
			graph.Edges = append(graph.Edges, GraphEdge{
				ID:    fmt.Sprintf("%d-%d", node.MachineID, peer),
				From:  node.MachineID,
				To:    peer,
				Types: types.Sorted(),
			})
		}
	}

	return graph
}

func sameTagSet(a, b CommTypeSet) bool {
	if len(a) != len(b) {
		return false
	}
	for t := range a {
		if !b.Has(t) {
			return false
		}
	}
	return len(a) > 0
}

// nodeGroup picks the icon group for a machine from its island, running,
// and propagation state, with an OS suffix for machines without an agent.
func nodeGroup(n MapNode) string {
	switch {
	case n.Island && n.Running:
		return "island-agent"
	case n.Island:
		return "island"
	case n.Running:
		return "agent-" + osSuffix(n.OperatingSystem)
	case n.Propagated:
		return "propagated-" + osSuffix(n.OperatingSystem)
	default:
		return "clean-" + osSuffix(n.OperatingSystem)
	}
}

func osSuffix(os string) string {
	switch os {
	case "linux", "windows":
		return os
	default:
		return "unknown"
	}
}
