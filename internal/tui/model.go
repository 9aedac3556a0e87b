package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/hay-kot/storefront/internal/printer"
)

// UIState represents the current state of the TUI.
type UIState int

const (
	stateNormal UIState = iota
	stateConfirming
)

type pendingAction int

const (
	pendingNone pendingAction = iota
	pendingRemove
	pendingClear
)

// Options configures the TUI behavior.
type Options struct {
	// CurrencySymbol prefixes every amount. Defaults to "$".
	CurrencySymbol string
}

// Model is the Bubble Tea model for the interactive cart.
type Model struct {
	ctx      context.Context
	store    *cart.Store
	currency string
	keys     keyMap
	help     help.Model

	cart   cart.State
	cursor int
	state  UIState
	modal  Modal

	pending   pendingAction
	pendingID cart.ProductID

	events      *eventFeed
	unsubscribe func()

	status   string
	err      error
	width    int
	height   int
	quitting bool
}

// New creates the cart view. Close must be called once the program exits.
func New(ctx context.Context, store *cart.Store, opts Options) Model {
	currency := opts.CurrencySymbol
	if currency == "" {
		currency = "$"
	}

	events := newEventFeed(16)
	unsubscribe := store.Subscribe(events.send)

	return Model{
		ctx:         ctx,
		store:       store,
		currency:    currency,
		keys:        defaultKeyMap(),
		help:        help.New(),
		events:      events,
		unsubscribe: unsubscribe,
	}
}

// Close stops listening for cart events and releases the pending event
// wait. It is safe to call more than once.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.events != nil {
		m.events.close()
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadState(m.ctx, m.store),
		waitForEvent(m.events),
		scheduleRefresh(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case stateLoadedMsg:
		m.setCart(msg.state)
		return m, nil

	case opDoneMsg:
		switch {
		case errors.Is(msg.err, cart.ErrNotInCart):
			m.status = "item is no longer in the cart"
			return m, loadState(m.ctx, m.store)
		case msg.err != nil:
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = msg.status
		m.setCart(msg.state)
		return m, nil

	case storeEventMsg:
		switch msg.event.Kind {
		case cart.EventCorrupt:
			m.status = "discarded unreadable cart data"
		case cart.EventChanged:
			m.setCart(msg.event.State)
			if msg.event.Source == cart.SourceServer {
				m.status = "cart updated from your account"
			}
		}
		return m, waitForEvent(m.events)

	case refreshTickMsg:
		return m, tea.Batch(loadState(m.ctx, m.store), scheduleRefresh())

	case tea.KeyMsg:
		if m.state == stateConfirming {
			return m.handleModalKey(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) setCart(st cart.State) {
	m.cart = st
	if m.cursor >= st.Len() {
		m.cursor = max(st.Len()-1, 0)
	}
}

func (m Model) current() (cart.CartItem, bool) {
	if m.cursor < 0 || m.cursor >= m.cart.Len() {
		return cart.CartItem{}, false
	}
	return m.cart.Items[m.cursor], true
}

// op runs a store mutation off the update loop.
func (m Model) op(status string, fn func(ctx context.Context) (cart.State, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		st, err := fn(ctx)
		return opDoneMsg{state: st, status: status, err: err}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.cart.Len()-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.status = ""
		return m, loadState(m.ctx, m.store)

	case key.Matches(msg, m.keys.SelectAll):
		return m, m.op("selected all items", func(ctx context.Context) (cart.State, error) {
			return m.store.SetAllSelected(ctx, true)
		})

	case key.Matches(msg, m.keys.SelectNone):
		return m, m.op("cleared selection", func(ctx context.Context) (cart.State, error) {
			return m.store.SetAllSelected(ctx, false)
		})

	case key.Matches(msg, m.keys.Clear):
		if m.cart.Len() == 0 {
			return m, nil
		}
		m.confirm(pendingClear, 0, "Clear cart", "Remove every item from your cart?")
		return m, nil
	}

	item, ok := m.current()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Toggle):
		selected := !m.cart.IsSelected(item.ID)
		return m, m.op("", func(ctx context.Context) (cart.State, error) {
			return m.store.SetSelected(ctx, item.ID, selected)
		})

	case key.Matches(msg, m.keys.Increment):
		return m, m.op("", func(ctx context.Context) (cart.State, error) {
			return m.store.SetQuantity(ctx, item.ID, item.Quantity+1)
		})

	case key.Matches(msg, m.keys.Decrement):
		if item.Quantity <= 1 {
			m.confirm(pendingRemove, item.ID, "Remove item", fmt.Sprintf("Remove %s from your cart?", item.Name))
			return m, nil
		}
		return m, m.op("", func(ctx context.Context) (cart.State, error) {
			return m.store.SetQuantity(ctx, item.ID, item.Quantity-1)
		})

	case key.Matches(msg, m.keys.Remove):
		m.confirm(pendingRemove, item.ID, "Remove item", fmt.Sprintf("Remove %s from your cart?", item.Name))
		return m, nil
	}

	return m, nil
}

func (m *Model) confirm(action pendingAction, id cart.ProductID, title, message string) {
	m.pending = action
	m.pendingID = id
	m.modal = NewModal(title, message)
	m.state = stateConfirming
}

func (m Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "right", "tab", "h", "l":
		m.modal.ToggleSelection()
		return m, nil
	case "esc", "q", "n":
		m.state = stateNormal
		m.pending = pendingNone
		return m, nil
	case "enter", "y":
		confirmed := msg.String() == "y" || m.modal.ConfirmSelected()
		action, id := m.pending, m.pendingID
		m.state = stateNormal
		m.pending = pendingNone
		if !confirmed {
			return m, nil
		}
		return m, m.runPending(action, id)
	}
	return m, nil
}

func (m Model) runPending(action pendingAction, id cart.ProductID) tea.Cmd {
	switch action {
	case pendingRemove:
		return m.op("item removed", func(ctx context.Context) (cart.State, error) {
			return m.store.RemoveItem(ctx, id)
		})
	case pendingClear:
		return m.op("cart cleared", func(ctx context.Context) (cart.State, error) {
			return m.store.Clear(ctx)
		})
	default:
		return nil
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.state == stateConfirming {
		w, h := m.width, m.height
		if w == 0 || h == 0 {
			w, h = 60, 12
		}
		return m.modal.Render(w, h)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Shopping Cart"))
	b.WriteString("\n\n")

	if m.cart.Len() == 0 {
		b.WriteString(statusStyle.Render("Your cart is empty."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderItems())
		b.WriteString(m.renderTotals())
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
	} else if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
	}

	b.WriteString("\n\n")
	b.WriteString(" " + m.help.View(m.keys))
	return b.String()
}

func (m Model) renderItems() string {
	nameWidth := 0
	for _, it := range m.cart.Items {
		nameWidth = max(nameWidth, lipgloss.Width(it.Name))
	}

	var b strings.Builder
	for i, it := range m.cart.Items {
		bar, rowStyle := " ", normalStyle
		if i == m.cursor {
			bar, rowStyle = cursorBarStyle.Render(iconCursor), cursorStyle
		}

		check := uncheckedStyle.Render(iconUnchecked)
		if m.cart.IsSelected(it.ID) {
			check = checkedStyle.Render(iconChecked)
		}

		name := it.Name + strings.Repeat(" ", nameWidth-lipgloss.Width(it.Name))
		fmt.Fprintf(&b, "%s %s %s  %s %s  %s\n",
			bar,
			check,
			rowStyle.Render(name),
			printer.Money(m.currency, it.Price),
			quantityStyle.Render(fmt.Sprintf("×%d", it.Quantity)),
			printer.Money(m.currency, it.Subtotal()),
		)
	}
	return b.String()
}

func (m Model) renderTotals() string {
	t := m.cart.Totals()
	line := fmt.Sprintf("Selected: %d item(s)  Total: %s  (cart %s)",
		t.SelectedCount,
		printer.Money(m.currency, t.SelectedTotal),
		printer.Money(m.currency, t.OverallTotal),
	)
	return footerStyle.Render(line)
}
