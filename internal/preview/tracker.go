package preview

import "sync"

// Tracker remembers the last snapshot derived from a growing text so that a
// chunk which cannot be repaired does not blank out days already shown.
// It is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	last Snapshot
	has  bool
}

// Observe previews text and returns the snapshot to render. When text yields
// a title but no parseable days, the previously parsed days are kept.
// ok is false until anything at all has been derived.
func (t *Tracker) Observe(text string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, ok := Preview(text)
	if !ok {
		return t.last, t.has
	}
	if !snap.DaysParsed && t.has && t.last.DaysParsed {
		snap.Days = t.last.Days
		snap.DaysParsed = true
	}
	t.last, t.has = snap, true
	return snap, true
}

// Last returns the most recent snapshot, if any.
func (t *Tracker) Last() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.has
}

// Reset forgets the last snapshot.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last, t.has = Snapshot{}, false
}
