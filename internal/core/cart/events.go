package cart

// EventKind identifies what happened to the cart.
type EventKind int

const (
	// EventChanged is emitted after a mutation was persisted.
	EventChanged EventKind = iota
	// EventCorrupt is emitted when malformed persisted cart data was
	// discarded and replaced by an empty value.
	EventCorrupt
)

func (k EventKind) String() string {
	switch k {
	case EventChanged:
		return "changed"
	case EventCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Source records who originated a change.
type Source string

const (
	SourceLocal  Source = "local"
	SourceServer Source = "server"
)

// Event is delivered to subscribers after a cart operation completes.
type Event struct {
	Kind   EventKind
	Source Source
	State  State
	// Key and Err are set for EventCorrupt.
	Key string
	Err error
}

// Listener receives cart events. Listeners run synchronously on the goroutine
// that performed the operation and may call back into the Store.
type Listener func(Event)

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) publish(events []Event) {
	if len(events) == 0 {
		return
	}

	s.subsMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.subsMu.Unlock()

	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}
