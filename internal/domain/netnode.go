package domain

import (
	"encoding/json"
	"sort"
)

// CommunicationType tags a kind of traffic observed between two machines.
type CommunicationType string

const (
	CommTypeCC        CommunicationType = "cc"
	CommTypeRelay     CommunicationType = "relay"
	CommTypeExploited CommunicationType = "exploited"
	CommTypeScanned   CommunicationType = "scanned"
)

// CommTypeSet is the set of communication types observed on one
// (machine, peer) pair. It serializes as a JSON array of tags.
type CommTypeSet map[CommunicationType]struct{}

// NewCommTypeSet builds a set from the given tags.
func NewCommTypeSet(types ...CommunicationType) CommTypeSet {
	s := make(CommTypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether the set contains t.
func (s CommTypeSet) Has(t CommunicationType) bool {
	_, ok := s[t]
	return ok
}

// Add inserts t into the set.
func (s CommTypeSet) Add(t CommunicationType) {
	s[t] = struct{}{}
}

// Clone returns an independent copy of the set.
func (s CommTypeSet) Clone() CommTypeSet {
	out := make(CommTypeSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Sorted returns the tags in lexical order.
func (s CommTypeSet) Sorted() []CommunicationType {
	out := make([]CommunicationType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array of tags.
func (s CommTypeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of tags.
func (s *CommTypeSet) UnmarshalJSON(data []byte) error {
	var types []CommunicationType
	if err := json.Unmarshal(data, &types); err != nil {
		return err
	}
	*s = NewCommTypeSet(types...)
	return nil
}

// NetNode is the network-observation record for a machine: which peers it
// has been seen communicating with, and how. Connections are directional;
// the peer's own record tracks traffic in the other direction.
type NetNode struct {
	MachineID   MachineID                 `json:"machine_id"`
	Connections map[MachineID]CommTypeSet `json:"connections"`
}
