package handler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pavelanni/assessor/internal/assessment"
)

// entry guards one assessment session. A Session is not safe for concurrent
// use, so every access goes through mu.
type entry struct {
	mu          sync.Mutex
	sess        *assessment.Session
	course      json.RawMessage
	courseError string
}

// sessions holds the live assessments in memory.
type sessions struct {
	mu       sync.Mutex
	entries  map[string]*entry
	lastSeen map[string]time.Time
	now      func() time.Time
}

func newSessions() *sessions {
	return &sessions{
		entries:  make(map[string]*entry),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *sessions) add(sess *assessment.Session) *entry {
	e := &entry{sess: sess}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sess.ID()] = e
	s.lastSeen[sess.ID()] = s.now()
	return e
}

// get returns the entry for id and marks it as used.
func (s *sessions) get(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if ok {
		s.lastSeen[id] = s.now()
	}
	return e, ok
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep drops sessions idle for longer than ttl and returns how many went.
func (s *sessions) sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	n := 0
	for id, seen := range s.lastSeen {
		if seen.Before(cutoff) {
			delete(s.entries, id)
			delete(s.lastSeen, id)
			n++
		}
	}
	return n
}
