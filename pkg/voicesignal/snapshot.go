// Package voicesignal holds the latest voice-analysis snapshot for the
// frame pipeline. Writers push snapshots asynchronously (text heuristics,
// an external feed); the pipeline only ever reads the most recent one and
// never blocks doing so.
package voicesignal

import (
	"sync/atomic"
	"time"
)

// Snapshot is one voice-analysis reading for the current utterance.
type Snapshot struct {
	Speaking    bool     `json:"speaking"`
	Confidence  float64  `json:"confidence"`
	Nervousness float64  `json:"nervousness"`
	Patterns    []string `json:"patterns"`
}

// Neutral is the zero reading reported when no voice signal is available.
func Neutral() Snapshot {
	return Snapshot{Patterns: []string{}}
}

// clamp validates a writer's snapshot: scores into [0,1], patterns non-nil.
func (s Snapshot) clamp() Snapshot {
	s.Confidence = clamp01(s.Confidence)
	s.Nervousness = clamp01(s.Nervousness)
	if s.Patterns == nil {
		s.Patterns = []string{}
	} else {
		s.Patterns = append([]string(nil), s.Patterns...)
	}
	return s
}

func clamp01(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	return max(0, min(1, v))
}

// Source is read by the pipeline once per frame.
type Source interface {
	Latest() Snapshot
}

type entry struct {
	snap Snapshot
	at   time.Time
}

// Store keeps the most recent snapshot. Safe for concurrent use: any number
// of writers and readers.
type Store struct {
	cur atomic.Pointer[entry]
}

// NewStore creates a store holding the neutral snapshot
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(&entry{snap: Neutral()})
	return s
}

// Push replaces the current snapshot.
func (s *Store) Push(snap Snapshot) {
	s.cur.Store(&entry{snap: snap.clamp(), at: time.Now()})
}

// Reset reverts to the neutral snapshot.
func (s *Store) Reset() {
	s.cur.Store(&entry{snap: Neutral(), at: time.Now()})
}

// Latest returns a copy of the current snapshot.
func (s *Store) Latest() Snapshot {
	e := s.cur.Load()
	if e == nil {
		return Neutral()
	}
	out := e.snap
	out.Patterns = append([]string{}, e.snap.Patterns...)
	return out
}

// UpdatedAt returns when the current snapshot was pushed; zero if never.
func (s *Store) UpdatedAt() time.Time {
	if e := s.cur.Load(); e != nil {
		return e.at
	}
	return time.Time{}
}
