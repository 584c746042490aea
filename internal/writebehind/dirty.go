package writebehind

import (
	"sync"

	"github.com/google/uuid"
)

// DirtySet is the set of account ids with unpersisted snapshot state.
// Marking an id that is already pending is a no-op, which is what coalesces
// repeated writes to one account into a single snapshot per flush.
type DirtySet struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

func NewDirtySet() *DirtySet {
	return &DirtySet{ids: make(map[uuid.UUID]struct{})}
}

func (d *DirtySet) MarkDirty(id uuid.UUID) {
	d.mu.Lock()
	d.ids[id] = struct{}{}
	d.mu.Unlock()
}

func (d *DirtySet) Contains(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ids[id]
	return ok
}

func (d *DirtySet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids)
}

// Drain swaps in an empty set and returns the ids captured from the old one.
// A MarkDirty racing with Drain lands either in the captured set or in the
// fresh one, never in neither.
func (d *DirtySet) Drain() []uuid.UUID {
	d.mu.Lock()
	captured := d.ids
	d.ids = make(map[uuid.UUID]struct{}, len(captured))
	d.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(captured))
	for id := range captured {
		ids = append(ids, id)
	}
	return ids
}
