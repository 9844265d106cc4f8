package collab

import (
	"errors"
	"maps"
	"math"
	"sync"
)

var errBadCursor = errors.New("presence cursor must be finite")

// presenceTable is what each editor in a room is pointing at: a cursor in
// pixeloid space and the selected object, if any. Entries are stored by
// value so readers never share state with later updates.
type presenceTable struct {
	mu      sync.RWMutex
	editors map[string]PresencePayload
}

func newPresenceTable() *presenceTable {
	return &presenceTable{editors: make(map[string]PresencePayload)}
}

func (t *presenceTable) set(editorID string, p PresencePayload) error {
	if c := p.Cursor; c != nil && !(finite(c.X) && finite(c.Y)) {
		return errBadCursor
	}
	t.mu.Lock()
	t.editors[editorID] = p
	t.mu.Unlock()
	return nil
}

func (t *presenceTable) remove(editorID string) {
	t.mu.Lock()
	delete(t.editors, editorID)
	t.mu.Unlock()
}

// forget clears selections of a deleted object, or all selections when
// objectID is empty.
func (t *presenceTable) forget(objectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for editorID, p := range t.editors {
		if p.SelectedID != "" && (objectID == "" || p.SelectedID == objectID) {
			p.SelectedID = ""
			t.editors[editorID] = p
		}
	}
}

func (t *presenceTable) snapshot() map[string]PresencePayload {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.editors)
}

func (t *presenceTable) stateMessage() *Message {
	return newMessage(TypePresenceState, PresenceStatePayload{Presences: t.snapshot()})
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
