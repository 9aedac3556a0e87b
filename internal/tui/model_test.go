package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/hay-kot/storefront/internal/store/jsonfile"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, items ...cart.Product) (Model, *cart.Store) {
	t.Helper()

	backing := jsonfile.NewKVStore(filepath.Join(t.TempDir(), "storage.json"), zerolog.Nop())
	store := cart.NewStore(kv.NewAdapter(backing, zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()
	for _, p := range items {
		_, err := store.AddItem(ctx, p, 1)
		require.NoError(t, err)
	}

	m := New(ctx, store, Options{})
	t.Cleanup(m.Close)

	m = apply(t, m, loadState(ctx, store)())
	return m, store
}

// apply feeds msg to the model and runs any resulting store command. It must
// not be used for messages whose command waits on store events.
func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()

	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}

	switch out := cmd().(type) {
	case opDoneMsg, stateLoadedMsg:
		next, _ = m.Update(out)
		m = next.(Model)
	}
	return m
}

func press(t *testing.T, m Model, keys string) Model {
	t.Helper()
	return apply(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
}

func mug() cart.Product {
	return cart.Product{ID: 1, Name: "Mug", Price: decimal.RequireFromString("6.50")}
}

func poster() cart.Product {
	return cart.Product{ID: 2, Name: "Poster", Price: decimal.RequireFromString("12.00")}
}

func TestModel_ToggleSelection(t *testing.T) {
	m, store := newTestModel(t, mug(), poster())
	ctx := context.Background()

	m = press(t, m, " ")
	assert.Equal(t, []cart.ProductID{2}, store.Selection(ctx))
	assert.False(t, m.cart.IsSelected(1))

	m = press(t, m, " ")
	assert.Equal(t, []cart.ProductID{1, 2}, store.Selection(ctx))
	assert.True(t, m.cart.IsSelected(1))
}

func TestModel_QuantityKeys(t *testing.T) {
	m, store := newTestModel(t, mug(), poster())
	ctx := context.Background()

	m = press(t, m, "j")
	m = press(t, m, "+")
	m = press(t, m, "+")

	item, ok := store.Snapshot(ctx).Item(2)
	require.True(t, ok)
	assert.Equal(t, 3, item.Quantity)

	m = press(t, m, "-")
	item, _ = store.Snapshot(ctx).Item(2)
	assert.Equal(t, 2, item.Quantity)
	assert.Contains(t, m.View(), "×2")
}

func TestModel_DecrementAtOneAsksToRemove(t *testing.T) {
	m, store := newTestModel(t, mug())
	ctx := context.Background()

	m = press(t, m, "-")
	assert.Equal(t, stateConfirming, m.state)
	assert.Contains(t, m.View(), "Remove Mug")

	m = apply(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, stateNormal, m.state)
	assert.Len(t, store.Cart(ctx), 1)

	m = press(t, m, "d")
	m = apply(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, store.Cart(ctx))
	assert.Contains(t, m.View(), "Your cart is empty")
}

func TestModel_ClearRequiresConfirm(t *testing.T) {
	m, store := newTestModel(t, mug(), poster())
	ctx := context.Background()

	m = press(t, m, "C")
	require.Equal(t, stateConfirming, m.state)

	// Moving to Cancel and pressing enter keeps the cart.
	m = apply(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = apply(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, store.Cart(ctx), 2)

	m = press(t, m, "C")
	_ = press(t, m, "y")
	assert.Empty(t, store.Cart(ctx))
}

func TestModel_SelectAllAndNone(t *testing.T) {
	m, store := newTestModel(t, mug(), poster())
	ctx := context.Background()

	m = press(t, m, "n")
	assert.Empty(t, store.Selection(ctx))
	assert.Contains(t, m.View(), "Total: $0.00")

	m = press(t, m, "a")
	assert.Equal(t, []cart.ProductID{1, 2}, store.Selection(ctx))
	assert.Contains(t, m.View(), "Total: $18.50")
}

func TestModel_CursorStaysInRange(t *testing.T) {
	m, store := newTestModel(t, mug(), poster())

	m = press(t, m, "k")
	assert.Equal(t, 0, m.cursor)

	m = press(t, m, "j")
	m = press(t, m, "j")
	assert.Equal(t, 1, m.cursor)

	// Another process empties the cart; the refresh clamps the cursor.
	_, err := store.Clear(context.Background())
	require.NoError(t, err)
	m = apply(t, m, loadState(context.Background(), store)())
	assert.Equal(t, 0, m.cursor)
	assert.Equal(t, 0, m.cart.Len())
}

func TestModel_StoreEventsUpdateView(t *testing.T) {
	m, store := newTestModel(t)

	_, err := store.Replace(context.Background(), []cart.CartItem{
		{ID: 9, Name: "Lamp", Price: decimal.NewFromInt(40), Quantity: 1},
	}, cart.SourceServer)
	require.NoError(t, err)

	ev := <-m.events.ch
	next, cmd := m.Update(storeEventMsg{event: ev})
	m = next.(Model)
	assert.NotNil(t, cmd, "keeps listening for events")
	assert.Contains(t, m.View(), "Lamp")
	assert.Contains(t, m.View(), "cart updated from your account")
}

func TestModel_CloseReleasesEventWait(t *testing.T) {
	m, store := newTestModel(t, cart.Product{ID: 1, Name: "Mug", Price: decimal.NewFromInt(8)})

	done := make(chan tea.Msg, 1)
	go func() { done <- waitForEvent(m.events)() }()

	m.Close()
	m.Close()

	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("event wait still blocked after Close")
	}

	_, err := store.SetQuantity(context.Background(), 1, 3)
	require.NoError(t, err, "mutations after Close must not reach the closed feed")
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.(Model).View())
}
