package session

// CreationHistory tracks the nodes created during this run, newest first.
// The head is the preferred anchor when a retry needs to bring a known node
// back into view.
type CreationHistory struct {
	order []string
	seen  map[string]bool
}

// NewCreationHistory returns an empty history.
func NewCreationHistory() *CreationHistory {
	return &CreationHistory{seen: map[string]bool{}}
}

// Record notes a successful creation. Re-recording an existing node moves it
// to the head.
func (h *CreationHistory) Record(nodeID string) {
	if h.seen[nodeID] {
		for i, id := range h.order {
			if id == nodeID {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
	h.order = append([]string{nodeID}, h.order...)
	h.seen[nodeID] = true
}

// Head returns the most recently created node, or "" when empty.
func (h *CreationHistory) Head() string {
	if len(h.order) == 0 {
		return ""
	}
	return h.order[0]
}

// Contains reports whether the node was created during this run.
func (h *CreationHistory) Contains(nodeID string) bool {
	return h.seen[nodeID]
}

// Len returns the number of recorded creations.
func (h *CreationHistory) Len() int {
	return len(h.order)
}

// Reset clears the history.
func (h *CreationHistory) Reset() {
	h.order = nil
	h.seen = map[string]bool{}
}
