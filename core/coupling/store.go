package coupling

import "sync/atomic"

// Published pairs the status and network snapshot of the same tick.
type Published struct {
	Status  Status           `json:"status"`
	Network *NetworkSnapshot `json:"network"`
}

// SnapshotStore hands the latest published tick to concurrent readers.
// Writers replace the pointer; published values are never mutated.
type SnapshotStore struct {
	p atomic.Pointer[Published]
}

// Publish makes p the latest tick.
func (s *SnapshotStore) Publish(p *Published) { s.p.Store(p) }

// Latest returns the last published tick, or false before the first one.
func (s *SnapshotStore) Latest() (*Published, bool) {
	p := s.p.Load()
	return p, p != nil
}
