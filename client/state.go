// Package client provides typed invokers for remote actions: a plain
// invoker with deduplication and rate limiting, an optimistic invoker
// with snapshot rollback, and an SSE stream consumer. All invokers
// publish their lifecycle through observable state stores so UI or
// polling code can subscribe instead of blocking.
package client

import (
	"sync"

	"github.com/c360/actionkit/errors"
)

// Status is the lifecycle phase of an invoker.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusExecuting Status = "executing"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// ExecState is the observable state of an Invoker. Data holds the last
// successful payload; Error is set only in the error status.
type ExecState struct {
	Status Status
	Data   any
	Error  *errors.ActionError
}

// Store is a minimal observable container. Set replaces the value and
// notifies subscribers synchronously, outside the store lock.
type Store[T any] struct {
	mu     sync.Mutex
	value  T
	nextID int
	subs   map[int]func(T)
}

// NewStore creates a store holding the initial value.
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value and notifies every subscriber with it.
func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

// Subscribe registers a listener called on every Set. The returned
// function removes the subscription.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
