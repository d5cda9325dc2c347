package scheduler

import "sync/atomic"

// IDSource hands out identities from an atomic counter. Ids start at 1 and are
// never reused by the same source.
type IDSource struct {
	last atomic.Uint64
}

// Next returns a new identity.
func (s *IDSource) Next() uint64 {
	return s.last.Add(1)
}
