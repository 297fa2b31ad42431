package config

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store holds the current Options snapshot. Readers take a snapshot at tick
// start and keep it for the whole cycle; writers replace it atomically.
type Store struct {
	mu      sync.Mutex // serializes writers and subscriber callbacks
	current atomic.Pointer[Options]
	subs    []func(prev, next *Options)
}

// NewStore creates a store seeded with initial.
func NewStore(initial *Options) *Store {
	s := &Store{}
	if initial == nil {
		initial = &Options{}
	}
	s.current.Store(initial.Clone())
	return s
}

// Snapshot returns the current options. The returned value must not be mutated.
func (s *Store) Snapshot() *Options {
	return s.current.Load()
}

// Subscribe registers fn to be called after every accepted change.
func (s *Store) Subscribe(fn func(prev, next *Options)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Set validates and applies a single option. A rejected value leaves the
// current snapshot unchanged.
func (s *Store) Set(name, value string) (*Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	next := prev.Clone()
	if err := next.Apply(name, value); err != nil {
		return prev, err
	}
	next.Version = prev.Version + 1
	s.current.Store(next)

	slog.Info("Option updated", "option", OptionPrefix+CanonicalName(name), "version", next.Version)

	for _, fn := range s.subs {
		fn(prev, next)
	}
	return next, nil
}
