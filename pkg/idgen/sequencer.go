// Package idgen provides record id generators for journals.
package idgen

import "sync/atomic"

// Sequencer hands out strictly increasing record ids from memory.
// A journal re-synchronises it from disk during replay.
type Sequencer struct {
	last atomic.Uint64
}

// NewSequencer creates a sequencer whose next id is start+1.
func NewSequencer(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Last returns the most recently issued id.
func (s *Sequencer) Last() uint64 {
	return s.last.Load()
}

// NotifyHighest moves the counter to id. Used both to resume after replay and to roll
// back ids burned by a failed batch.
func (s *Sequencer) NotifyHighest(id uint64) {
	s.last.Store(id)
}
