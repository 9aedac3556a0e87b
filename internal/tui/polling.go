package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hay-kot/storefront/internal/core/cart"
)

// refreshInterval is how often the view re-reads storage to pick up changes
// made by other processes.
const refreshInterval = time.Second

// stateLoadedMsg carries a fresh snapshot of the cart.
type stateLoadedMsg struct {
	state cart.State
}

// opDoneMsg is sent when a mutation completes.
type opDoneMsg struct {
	state  cart.State
	status string
	err    error
}

// storeEventMsg relays a cart event published by the store.
type storeEventMsg struct {
	event cart.Event
}

// refreshTickMsg is sent to trigger the next refresh.
type refreshTickMsg struct{}

// eventFeed buffers store events for the view. Events that arrive while the
// buffer is full are dropped; the refresh tick picks up the state they carried.
type eventFeed struct {
	mu     sync.Mutex
	ch     chan cart.Event
	closed bool
}

func newEventFeed(size int) *eventFeed {
	return &eventFeed{ch: make(chan cart.Event, size)}
}

func (f *eventFeed) send(ev cart.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- ev:
	default:
	}
}

func (f *eventFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}

// loadState returns a command that reads the cart from the store.
func loadState(ctx context.Context, store *cart.Store) tea.Cmd {
	return func() tea.Msg {
		return stateLoadedMsg{state: store.Snapshot(ctx)}
	}
}

// waitForEvent blocks until the store publishes an event or the feed is
// closed.
func waitForEvent(events *eventFeed) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events.ch
		if !ok {
			return nil
		}
		return storeEventMsg{event: ev}
	}
}

// scheduleRefresh returns a command that schedules the next refresh tick.
func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}
