// Package memory is an in-process audit.Store used by tests and local runs.
package memory

import (
	"context"
	"slices"
	"sync"

	audit "kycproxy/pkg/platform/audit"
)

// Store keeps events in append order.
type Store struct {
	mu     sync.Mutex
	events []audit.Event
}

func New() *Store { return &Store{} }

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// Events returns a snapshot.
func (s *Store) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Actions lists the action of every stored event, in order.
func (s *Store) Actions() []audit.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Action, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}
