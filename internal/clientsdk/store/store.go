package store

import (
	"sync"

	"github.com/google/uuid"
)

type Subscriber func(State)

// Store serializes dispatch through Reduce and notifies subscribers with
// the resulting state. Subscribers run on the dispatching goroutine after
// the lock is released, so they may dispatch themselves.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]Subscriber
	nextID int
}

func New() *Store {
	return &Store{state: State{Ledgers: map[uuid.UUID]Ledger{}}, subs: map[int]Subscriber{}}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and returns the state it produced.
func (s *Store) Dispatch(a Action) State {
	_, next := s.Transition(a)
	return next
}

// Transition applies a and returns the states on both sides of it, taken
// atomically.
func (s *Store) Transition(a Action) (prev, next State) {
	s.mu.Lock()
	prev = s.state
	next = Reduce(prev, a)
	s.state = next
	var subs []Subscriber
	if !sameState(prev, next) {
		subs = make([]Subscriber, 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return prev, next
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// sameState is true when Reduce returned its input unchanged.
func sameState(a, b State) bool {
	if len(a.Ledgers) != len(b.Ledgers) {
		return false
	}
	for id, l := range a.Ledgers {
		o, ok := b.Ledgers[id]
		if !ok || !l.Equal(o) {
			return false
		}
	}
	return true
}
