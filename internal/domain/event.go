package domain

// PropagationEvent records an attempted lateral movement from one machine
// to a target IP. Only successful events are fetched; the success flag is
// kept so a record read from elsewhere stays self-describing.
type PropagationEvent struct {
	Target  string `json:"target"`
	Success bool   `json:"success"`
	Type    string `json:"type"`
}
