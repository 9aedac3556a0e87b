package cart

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/hay-kot/storefront/internal/store/jsonfile"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *kv.Adapter) {
	t.Helper()
	backing := jsonfile.NewKVStore(filepath.Join(t.TempDir(), "storage.json"), zerolog.Nop())
	adapter := kv.NewAdapter(backing, zerolog.Nop())
	return NewStore(adapter, zerolog.Nop()), adapter
}

func product(id int64, price string) Product {
	return Product{
		ID:    ProductID(id),
		Name:  fmt.Sprintf("Product %d", id),
		Price: decimal.RequireFromString(price),
	}
}

func mustAdd(t *testing.T, s *Store, p Product, qty int) {
	t.Helper()
	_, err := s.AddItem(context.Background(), p, qty)
	require.NoError(t, err)
}

func TestAddItem_MergesQuantities(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := Product{ID: 1, Name: "A", Price: decimal.RequireFromString("10.00")}

	item, err := s.AddItem(ctx, a, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)

	item, err = s.AddItem(ctx, a, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	items := s.Cart(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, ProductID(1), items[0].ID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.True(t, s.Totals(ctx).OverallTotal.Equal(decimal.RequireFromString("50.00")))
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		qty     int
		wantErr error
	}{
		{name: "zero quantity", product: product(1, "1"), qty: 0, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", product: product(1, "1"), qty: -2, wantErr: ErrInvalidQuantity},
		{name: "zero id", product: product(0, "1"), qty: 1, wantErr: ErrInvalidProduct},
		{name: "negative price", product: product(1, "-0.01"), qty: 1, wantErr: ErrInvalidProduct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			_, err := s.AddItem(context.Background(), tt.product, tt.qty)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, s.Cart(context.Background()))
		})
	}
}

func TestAddItem_NewItemsDefaultSelected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustAdd(t, s, product(1, "1"), 1)
	_, err := s.SetSelected(ctx, 1, false)
	require.NoError(t, err)

	mustAdd(t, s, product(2, "1"), 1)
	assert.Equal(t, []ProductID{2}, s.Selection(ctx))

	// Adding more of an unselected product selects it again.
	mustAdd(t, s, product(1, "1"), 1)
	assert.Equal(t, []ProductID{1, 2}, s.Selection(ctx))
}

func TestSetQuantity(t *testing.T) {
	tests := []struct {
		name      string
		qty       int
		wantItems int
	}{
		{name: "update", qty: 7, wantItems: 1},
		{name: "zero removes", qty: 0, wantItems: 0},
		{name: "negative removes", qty: -1, wantItems: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			ctx := context.Background()
			mustAdd(t, s, product(1, "2.50"), 2)

			st, err := s.SetQuantity(ctx, 1, tt.qty)
			require.NoError(t, err)
			assert.Len(t, st.Items, tt.wantItems)
			if tt.wantItems == 1 {
				assert.Equal(t, tt.qty, st.Items[0].Quantity)
			} else {
				assert.Empty(t, st.Selected)
			}
		})
	}
}

func TestSetQuantity_UnknownIDIsWarning(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, product(1, "1"), 1)

	st, err := s.SetQuantity(ctx, 99, 4)
	require.ErrorIs(t, err, ErrNotInCart)
	require.Len(t, st.Items, 1)
	assert.Equal(t, 1, st.Items[0].Quantity)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, product(1, "1"), 1)
	mustAdd(t, s, product(2, "1"), 1)

	first, err := s.RemoveItem(ctx, 1)
	require.NoError(t, err)

	second, err := s.RemoveItem(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []ProductID{2}, second.IDs())
	assert.Equal(t, []ProductID{2}, second.Selected)
}

func TestSetSelected_IgnoresUnknownIDs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, product(1, "1"), 1)

	st, err := s.SetSelected(ctx, 42, true)
	require.NoError(t, err)
	assert.Equal(t, []ProductID{1}, st.Selected)
}

func TestSetAllSelected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, product(1, "1"), 1)
	mustAdd(t, s, product(2, "1"), 1)

	st, err := s.SetAllSelected(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, st.Selected)

	st, err = s.SetAllSelected(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []ProductID{1, 2}, st.Selected)
}

func TestTotals_SelectedSubset(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, product(1, "10.00"), 1)
	mustAdd(t, s, product(2, "4.25"), 2)
	mustAdd(t, s, product(3, "0.99"), 3)

	before := s.Totals(ctx)
	assert.Equal(t, 6, before.SelectedCount)
	assert.True(t, before.SelectedTotal.Equal(before.OverallTotal))

	_, err := s.SetSelected(ctx, 2, false)
	require.NoError(t, err)

	after := s.Totals(ctx)
	assert.True(t, after.OverallTotal.Equal(before.OverallTotal))
	assert.True(t, before.SelectedTotal.Sub(after.SelectedTotal).Equal(decimal.RequireFromString("8.50")))
	assert.Equal(t, 4, after.SelectedCount)
}

func TestClearPurchased(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, product(1, "1"), 1)
	mustAdd(t, s, product(2, "1"), 1)
	mustAdd(t, s, product(3, "1"), 1)
	_, err := s.SetSelected(ctx, 2, false)
	require.NoError(t, err)

	st, err := s.ClearPurchased(ctx, []ProductID{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []ProductID{3}, st.IDs())
	assert.Equal(t, []ProductID{3}, st.Selected)
}

func TestSelection_DefaultsToAllWhenNeverRecorded(t *testing.T) {
	s, adapter := newTestStore(t)
	ctx := context.Background()

	items := []CartItem{
		{ID: 1, Name: "A", Price: decimal.NewFromInt(1), Quantity: 1},
		{ID: 2, Name: "B", Price: decimal.NewFromInt(2), Quantity: 1},
	}
	require.NoError(t, kv.WriteList(ctx, adapter, kv.KeyCart, items))

	assert.Equal(t, []ProductID{1, 2}, s.Load(ctx).Selected)

	// An explicitly empty selection is respected.
	require.NoError(t, kv.WriteList(ctx, adapter, kv.KeySelection, []ProductID{}))
	assert.Empty(t, s.Selection(ctx))
}

func TestSelection_PrunesStaleIDs(t *testing.T) {
	s, adapter := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, product(1, "1"), 1)

	// Corrupt the selection directly with ids that are not in the cart.
	require.NoError(t, kv.WriteList(ctx, adapter, kv.KeySelection, []ProductID{1, 5, 9}))
	assert.Equal(t, []ProductID{1}, s.Selection(ctx))

	// The next mutation writes the repaired selection back.
	mustAdd(t, s, product(2, "1"), 1)
	stored, _ := kv.ReadList[ProductID](ctx, adapter, kv.KeySelection)
	assert.Equal(t, []ProductID{1, 2}, stored)
}

func TestLoad_MalformedDataDegradesToEmpty(t *testing.T) {
	s, adapter := newTestStore(t)
	ctx := context.Background()

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	require.NoError(t, adapter.WriteString(ctx, kv.KeyCart, "{not json"))

	st := s.Load(ctx)
	assert.Empty(t, st.Items)
	assert.Empty(t, st.Selected)

	require.Len(t, events, 1)
	assert.Equal(t, EventCorrupt, events[0].Kind)
	assert.Equal(t, kv.KeyCart, events[0].Key)
	assert.Error(t, events[0].Err)

	// The cart is usable again after the next write.
	mustAdd(t, s, product(1, "1"), 1)
	assert.Len(t, s.Cart(ctx), 1)
}

func TestLoad_CorruptDataFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	adapter := kv.NewAdapter(jsonfile.NewKVStore(path, zerolog.Nop()), zerolog.Nop())
	s := NewStore(adapter, zerolog.Nop())
	ctx := context.Background()

	assert.Empty(t, s.Load(ctx).Items)

	mustAdd(t, s, product(1, "1"), 2)
	assert.Equal(t, 2, s.Cart(ctx)[0].Quantity)
}

func TestLoad_NormalizesForeignData(t *testing.T) {
	s, adapter := newTestStore(t)
	ctx := context.Background()

	raw := `[{"id":1,"name":"A","price":1,"quantity":2},{"id":1,"name":"A","price":1,"quantity":3},{"id":2,"name":"B","price":5,"quantity":0}]`
	require.NoError(t, adapter.WriteString(ctx, kv.KeyCart, raw))

	items := s.Cart(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestPersistence_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storage.json")
	ctx := context.Background()

	open := func() *Store {
		adapter := kv.NewAdapter(jsonfile.NewKVStore(path, zerolog.Nop()), zerolog.Nop())
		return NewStore(adapter, zerolog.Nop())
	}

	first := open()
	mustAdd(t, first, Product{ID: 3, Name: "C", Price: decimal.RequireFromString("1.10"), ImageURL: "c.png"}, 1)
	mustAdd(t, first, product(1, "19.99"), 4)
	mustAdd(t, first, product(2, "0.50"), 2)
	want := first.Snapshot(ctx)

	// A second process sharing the storage sees the same sequence.
	got := open().Load(ctx)
	require.Len(t, got.Items, 3)
	for i := range want.Items {
		assert.Equal(t, want.Items[i].ID, got.Items[i].ID)
		assert.Equal(t, want.Items[i].Quantity, got.Items[i].Quantity)
		assert.Equal(t, want.Items[i].Name, got.Items[i].Name)
		assert.Equal(t, want.Items[i].ImageURL, got.Items[i].ImageURL)
		assert.True(t, want.Items[i].Price.Equal(got.Items[i].Price))
	}
	assert.Equal(t, want.Selected, got.Selected)
}

func TestSubscribe_ReceivesChanges(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var events []Event
	unsubscribe := s.Subscribe(func(e Event) { events = append(events, e) })

	mustAdd(t, s, product(1, "1"), 1)
	_, err := s.Replace(ctx, []CartItem{{ID: 2, Price: decimal.NewFromInt(1), Quantity: 1}}, SourceServer)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, EventChanged, events[0].Kind)
	assert.Equal(t, SourceLocal, events[0].Source)
	assert.Equal(t, []ProductID{1}, events[0].State.IDs())
	assert.Equal(t, SourceServer, events[1].Source)
	assert.Equal(t, []ProductID{2}, events[1].State.Selected)

	unsubscribe()
	mustAdd(t, s, product(3, "1"), 1)
	assert.Len(t, events, 2)
}

func TestSubscribe_ListenerMayReadStore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var seen int
	s.Subscribe(func(Event) { seen = s.Snapshot(ctx).Len() })

	mustAdd(t, s, product(1, "1"), 1)
	assert.Equal(t, 1, seen)
}

// TestInvariants_RandomSequences drives random mutation sequences and checks
// the cart invariants after every step.
func TestInvariants_RandomSequences(t *testing.T) {
	s, adapter := newTestStore(t)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))

	for step := 0; step < 300; step++ {
		id := ProductID(rng.IntN(6) + 1)
		switch rng.IntN(7) {
		case 0, 1:
			_, err := s.AddItem(ctx, product(int64(id), "3.25"), rng.IntN(4)+1)
			require.NoError(t, err)
		case 2:
			_, _ = s.SetQuantity(ctx, id, rng.IntN(5)-1)
		case 3:
			_, err := s.RemoveItem(ctx, id)
			require.NoError(t, err)
		case 4:
			_, err := s.SetSelected(ctx, id, rng.IntN(2) == 0)
			require.NoError(t, err)
		case 5:
			_, err := s.ClearPurchased(ctx, []ProductID{id})
			require.NoError(t, err)
		case 6:
			// Stray ids written by another process.
			require.NoError(t, kv.WriteList(ctx, adapter, kv.KeySelection, []ProductID{id, 100, 200}))
		}

		st := s.Snapshot(ctx)
		seen := map[ProductID]bool{}
		for _, it := range st.Items {
			require.False(t, seen[it.ID], "duplicate id %d at step %d", it.ID, step)
			seen[it.ID] = true
			require.GreaterOrEqual(t, it.Quantity, 1)
		}
		for _, sel := range st.Selected {
			require.True(t, seen[sel], "selected id %d not in cart at step %d", sel, step)
		}

		totals := st.Totals()
		require.True(t, totals.SelectedTotal.LessThanOrEqual(totals.OverallTotal))
		if len(st.Selected) == len(st.Items) {
			require.True(t, totals.SelectedTotal.Equal(totals.OverallTotal))
		} else {
			require.True(t, totals.SelectedTotal.LessThan(totals.OverallTotal))
		}
	}
}

// flakyStore fails the next Get of failKey once.
type flakyStore struct {
	kv.Store
	failKey string
}

func (f *flakyStore) Get(ctx context.Context, key string) (kv.Entry, error) {
	if key == f.failKey {
		f.failKey = ""
		return kv.Entry{}, errTransientRead
	}
	return f.Store.Get(ctx, key)
}

var errTransientRead = errors.New("transient read failure")

func TestMutations_ReadFailureKeepsStoredCart(t *testing.T) {
	mutations := []struct {
		name string
		fn   func(ctx context.Context, s *Store) error
	}{
		{"add", func(ctx context.Context, s *Store) error {
			_, err := s.AddItem(ctx, product(9, "1.00"), 1)
			return err
		}},
		{"set quantity", func(ctx context.Context, s *Store) error {
			_, err := s.SetQuantity(ctx, 1, 4)
			return err
		}},
		{"remove", func(ctx context.Context, s *Store) error {
			_, err := s.RemoveItem(ctx, 2)
			return err
		}},
		{"select", func(ctx context.Context, s *Store) error {
			_, err := s.SetSelected(ctx, 1, false)
			return err
		}},
		{"select all", func(ctx context.Context, s *Store) error {
			_, err := s.SetAllSelected(ctx, false)
			return err
		}},
		{"clear purchased", func(ctx context.Context, s *Store) error {
			_, err := s.ClearPurchased(ctx, []ProductID{1})
			return err
		}},
	}

	for _, key := range []string{kv.KeyCart, kv.KeySelection} {
		for _, tt := range mutations {
			t.Run(key+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				backing := &flakyStore{Store: jsonfile.NewKVStore(filepath.Join(t.TempDir(), "storage.json"), zerolog.Nop())}
				s := NewStore(kv.NewAdapter(backing, zerolog.Nop()), zerolog.Nop())

				mustAdd(t, s, product(1, "1.00"), 1)
				mustAdd(t, s, product(2, "2.00"), 1)
				mustAdd(t, s, product(3, "3.00"), 1)
				_, err := s.SetSelected(ctx, 3, false)
				require.NoError(t, err)
				before := s.Snapshot(ctx)

				backing.failKey = key
				err = tt.fn(ctx, s)
				require.ErrorIs(t, err, errTransientRead)

				assert.Equal(t, before, s.Snapshot(ctx))
			})
		}
	}
}

func TestSnapshot_ReadFailureDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	backing := &flakyStore{Store: jsonfile.NewKVStore(filepath.Join(t.TempDir(), "storage.json"), zerolog.Nop())}
	s := NewStore(kv.NewAdapter(backing, zerolog.Nop()), zerolog.Nop())
	mustAdd(t, s, product(1, "1.00"), 1)

	backing.failKey = kv.KeyCart
	assert.Empty(t, s.Snapshot(ctx).Items)
	assert.Len(t, s.Snapshot(ctx).Items, 1)
}
