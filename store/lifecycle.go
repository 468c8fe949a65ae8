package store

import (
	"fmt"
	"slices"
	"sync"
)

// State is the connection state of a Store.
type State int

const (
	StateConnecting State = iota
	StateReady
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// StateChange is delivered to subscribers on every transition.
type StateChange struct {
	From State
	To   State

	// Err is set when To is StateFailed.
	Err error
}

var transitions = map[State][]State{
	StateConnecting: {StateReady, StateFailed, StateClosing},
	StateReady:      {StateClosing},
	StateClosing:    {StateClosed},
}

// subscriberBuffer covers the longest path through transitions, so sends never block.
const subscriberBuffer = 4

type lifecycle struct {
	mu     sync.Mutex
	state  State
	err    error
	ready  chan struct{}
	subs   map[int]chan StateChange
	nextID int
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		state: StateConnecting,
		ready: make(chan struct{}),
		subs:  make(map[int]chan StateChange),
	}
}

func (l *lifecycle) current() (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.err
}

// transition moves to the next state and notifies subscribers.
// Subscriber channels are closed once a terminal state is reached.
func (l *lifecycle) transition(to State, err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	from := l.state
	if !slices.Contains(transitions[from], to) {
		return fmt.Errorf("keyroute: invalid state transition %s -> %s", from, to)
	}
	l.state = to
	if to == StateFailed {
		l.err = err
	}
	if to == StateReady {
		close(l.ready)
	}
	change := StateChange{From: from, To: to, Err: err}
	for id, ch := range l.subs {
		ch <- change
		if to.Terminal() {
			close(ch)
			delete(l.subs, id)
		}
	}
	return nil
}

func (l *lifecycle) subscribe() (<-chan StateChange, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan StateChange, subscriberBuffer)
	if l.state.Terminal() {
		close(ch)
		return ch, func() {}
	}
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	return ch, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if c, ok := l.subs[id]; ok {
			close(c)
			delete(l.subs, id)
		}
	}
}
