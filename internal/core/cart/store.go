package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/rs/zerolog"
)

// Store owns the cart and the selection. Every operation re-reads the
// persisted state first, so writes made by other processes sharing the same
// storage are observed, and every mutation is written through before it
// returns. Concurrent writers are last-write-wins.
type Store struct {
	kv  *kv.Adapter
	log zerolog.Logger

	mu      sync.Mutex
	pending []Event

	subsMu  sync.Mutex
	subs    map[int]Listener
	nextSub int
}

// NewStore creates a Store persisting through adapter.
func NewStore(adapter *kv.Adapter, log zerolog.Logger) *Store {
	s := &Store{
		kv:   adapter,
		log:  log,
		subs: make(map[int]Listener),
	}

	adapter.OnCorrupt(func(key string, err error) {
		if key != kv.KeyCart && key != kv.KeySelection {
			return
		}
		// Only reached from load, which runs with s.mu held.
		s.pending = append(s.pending, Event{Kind: EventCorrupt, Key: key, Err: err})
	})

	return s
}

// selection is the working form of the selected-id set.
type selection map[ProductID]struct{}

type working struct {
	items []CartItem
	sel   selection
}

func (w *working) index(id ProductID) int {
	for i, it := range w.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// prune drops selected ids with no matching item.
func (w *working) prune() {
	present := make(map[ProductID]bool, len(w.items))
	for _, it := range w.items {
		present[it.ID] = true
	}
	for id := range w.sel {
		if !present[id] {
			delete(w.sel, id)
		}
	}
}

func (w *working) state() State {
	items := make([]CartItem, len(w.items))
	copy(items, w.items)

	selected := make([]ProductID, 0, len(w.sel))
	for _, it := range items {
		if _, ok := w.sel[it.ID]; ok {
			selected = append(selected, it.ID)
		}
	}
	return State{Items: items, Selected: selected}
}

// run executes fn with the store locked, then delivers any queued events
// after the lock is released.
func (s *Store) run(fn func()) {
	s.mu.Lock()
	fn()
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.publish(events)
}

// load hydrates the working state. An absent selection key means the cart
// has never had a selection recorded, so every item starts selected. A
// storage failure is returned so that mutations never write back a cart they
// could not read.
func (s *Store) load(ctx context.Context) (*working, error) {
	items, _, err := kv.LoadList[CartItem](ctx, s.kv, kv.KeyCart)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	normalized := Normalize(items)
	if len(normalized) != len(items) {
		s.log.Debug().Int("stored", len(items)).Int("kept", len(normalized)).Msg("normalized stored cart")
	}

	w := &working{items: normalized, sel: make(selection)}

	ids, found, err := kv.LoadList[ProductID](ctx, s.kv, kv.KeySelection)
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	if !found {
		for _, it := range w.items {
			w.sel[it.ID] = struct{}{}
		}
		return w, nil
	}

	for _, id := range ids {
		w.sel[id] = struct{}{}
	}
	w.prune()
	return w, nil
}

// view loads the working state for a read. Storage failures degrade to an
// empty cart.
func (s *Store) view(ctx context.Context) State {
	w, err := s.load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("cart unavailable, showing empty cart")
		return State{Items: []CartItem{}, Selected: []ProductID{}}
	}
	return w.state()
}

func (s *Store) save(ctx context.Context, w *working) error {
	w.prune()
	st := w.state()

	if err := kv.WriteList(ctx, s.kv, kv.KeyCart, st.Items); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	if err := kv.WriteList(ctx, s.kv, kv.KeySelection, st.Selected); err != nil {
		return fmt.Errorf("persist selection: %w", err)
	}
	return nil
}

// commit persists w and queues a change event. Must be called under s.mu.
func (s *Store) commit(ctx context.Context, w *working, src Source) (State, error) {
	if err := s.save(ctx, w); err != nil {
		return State{}, err
	}
	st := w.state()
	s.pending = append(s.pending, Event{Kind: EventChanged, Source: src, State: st})
	return st, nil
}

// Load hydrates the cart from storage and returns it. It is the explicit
// initialization step for a fresh process.
func (s *Store) Load(ctx context.Context) State {
	var st State
	s.run(func() {
		st = s.view(ctx)
	})
	s.log.Debug().Int("items", st.Len()).Int("selected", len(st.Selected)).Msg("cart loaded")
	return st
}

// Snapshot returns the current cart and selection.
func (s *Store) Snapshot(ctx context.Context) State {
	var st State
	s.run(func() {
		st = s.view(ctx)
	})
	return st
}

// Cart returns the items in insertion order.
func (s *Store) Cart(ctx context.Context) []CartItem {
	return s.Snapshot(ctx).Items
}

// Selection returns the selected ids, never naming an id absent from the cart.
func (s *Store) Selection(ctx context.Context) []ProductID {
	return s.Snapshot(ctx).Selected
}

// SelectedItems returns the items selected for checkout.
func (s *Store) SelectedItems(ctx context.Context) []CartItem {
	return s.Snapshot(ctx).SelectedItems()
}

// Totals returns the overall and selected totals.
func (s *Store) Totals(ctx context.Context) Totals {
	return s.Snapshot(ctx).Totals()
}

// AddItem adds qty of product to the cart, merging with an existing line for
// the same product. The product becomes selected.
func (s *Store) AddItem(ctx context.Context, p Product, qty int) (CartItem, error) {
	if qty < 1 {
		return CartItem{}, ErrInvalidQuantity
	}
	if p.ID <= 0 {
		return CartItem{}, fmt.Errorf("%w: id must be positive", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return CartItem{}, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}

	var (
		item CartItem
		err  error
	)
	s.run(func() {
		var w *working
		if w, err = s.load(ctx); err != nil {
			return
		}
		if i := w.index(p.ID); i >= 0 {
			w.items[i].Quantity += qty
			item = w.items[i]
		} else {
			item = CartItem{
				ID:       p.ID,
				Name:     p.Name,
				Price:    p.Price,
				ImageURL: p.ImageURL,
				Quantity: qty,
			}
			w.items = append(w.items, item)
		}
		w.sel[p.ID] = struct{}{}

		_, err = s.commit(ctx, w, SourceLocal)
	})
	if err != nil {
		return CartItem{}, err
	}

	s.log.Debug().Int64("product_id", int64(p.ID)).Int("quantity", item.Quantity).Msg("item added")
	return item, nil
}

// SetQuantity sets the quantity of an item. A quantity below 1 removes the
// item. An unknown id leaves the cart unchanged and returns ErrNotInCart.
func (s *Store) SetQuantity(ctx context.Context, id ProductID, qty int) (State, error) {
	if qty < 1 {
		return s.RemoveItem(ctx, id)
	}

	var (
		st  State
		err error
	)
	s.run(func() {
		var w *working
		if w, err = s.load(ctx); err != nil {
			return
		}
		i := w.index(id)
		if i < 0 {
			s.log.Warn().Int64("product_id", int64(id)).Msg("product not found in cart for update")
			st, err = w.state(), ErrNotInCart
			return
		}

		w.items[i].Quantity = qty
		st, err = s.commit(ctx, w, SourceLocal)
	})
	return st, err
}

// RemoveItem deletes the item and its selection. Removing an absent id is a
// no-op, but the state is still written back.
func (s *Store) RemoveItem(ctx context.Context, id ProductID) (State, error) {
	var (
		st  State
		err error
	)
	s.run(func() {
		var w *working
		if w, err = s.load(ctx); err != nil {
			return
		}
		if i := w.index(id); i >= 0 {
			w.items = append(w.items[:i], w.items[i+1:]...)
		} else {
			s.log.Debug().Int64("product_id", int64(id)).Msg("remove of absent product")
		}
		delete(w.sel, id)

		st, err = s.commit(ctx, w, SourceLocal)
	})
	return st, err
}

// SetSelected adds or removes id from the selection. Ids not in the cart are
// ignored.
func (s *Store) SetSelected(ctx context.Context, id ProductID, selected bool) (State, error) {
	var (
		st  State
		err error
	)
	s.run(func() {
		var w *working
		if w, err = s.load(ctx); err != nil {
			return
		}
		if w.index(id) >= 0 {
			if selected {
				w.sel[id] = struct{}{}
			} else {
				delete(w.sel, id)
			}
		}
		st, err = s.commit(ctx, w, SourceLocal)
	})
	return st, err
}

// SetAllSelected selects every item, or none.
func (s *Store) SetAllSelected(ctx context.Context, selected bool) (State, error) {
	var (
		st  State
		err error
	)
	s.run(func() {
		var w *working
		if w, err = s.load(ctx); err != nil {
			return
		}
		w.sel = make(selection, len(w.items))
		if selected {
			for _, it := range w.items {
				w.sel[it.ID] = struct{}{}
			}
		}
		st, err = s.commit(ctx, w, SourceLocal)
	})
	return st, err
}

// ClearPurchased removes the given items and their selection after an order
// for them was placed.
func (s *Store) ClearPurchased(ctx context.Context, ids []ProductID) (State, error) {
	purchased := make(map[ProductID]bool, len(ids))
	for _, id := range ids {
		purchased[id] = true
	}

	var (
		st  State
		err error
	)
	s.run(func() {
		var w *working
		if w, err = s.load(ctx); err != nil {
			return
		}
		kept := w.items[:0]
		for _, it := range w.items {
			if !purchased[it.ID] {
				kept = append(kept, it)
			}
		}
		w.items = kept
		for id := range purchased {
			delete(w.sel, id)
		}
		st, err = s.commit(ctx, w, SourceLocal)
	})
	if err == nil {
		s.log.Debug().Int("purchased", len(ids)).Int("remaining", st.Len()).Msg("cleared purchased items")
	}
	return st, err
}

// Replace overwrites the cart wholesale, selecting every item. It is used to
// adopt a cart fetched from the server.
func (s *Store) Replace(ctx context.Context, items []CartItem, src Source) (State, error) {
	normalized := Normalize(items)

	var (
		st  State
		err error
	)
	s.run(func() {
		w := &working{items: normalized, sel: make(selection, len(normalized))}
		for _, it := range normalized {
			w.sel[it.ID] = struct{}{}
		}
		st, err = s.commit(ctx, w, src)
	})
	return st, err
}

// Clear empties the cart and the selection.
func (s *Store) Clear(ctx context.Context) (State, error) {
	return s.Replace(ctx, nil, SourceLocal)
}
