// Package cart implements the client-side shopping cart: the list of items the
// shopper intends to buy, the subset selected for the next checkout, and the
// rules that keep the two consistent across every consumer.
package cart

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/shopspring/decimal"
)

// Sentinel errors for cart operations.
var (
	// ErrNotInCart signals that an operation referenced an id absent from the
	// cart. The cart is left unchanged; callers treat it as a warning.
	ErrNotInCart       = errors.New("product not in cart")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidProduct  = errors.New("invalid product")
)

// ProductID identifies a catalog product. It is unique within a cart.
type ProductID int64

// Product is a catalog entry as served by the backend.
type Product struct {
	ID          ProductID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Active      bool            `json:"active"`
}

// CartItem is one line of the cart. Quantity is always at least 1.
type CartItem struct {
	ID       ProductID       `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns price × quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// MarshalJSON encodes the price as a JSON number so the stored and wire
// representation matches what the backend produces.
func (i CartItem) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID       ProductID   `json:"id"`
		Name     string      `json:"name"`
		Price    json.Number `json:"price"`
		ImageURL string      `json:"imageUrl,omitempty"`
		Quantity int         `json:"quantity"`
	}
	return json.Marshal(wire{
		ID:       i.ID,
		Name:     i.Name,
		Price:    json.Number(i.Price.String()),
		ImageURL: i.ImageURL,
		Quantity: i.Quantity,
	})
}

// Totals summarizes a cart.
type Totals struct {
	OverallTotal  decimal.Decimal `json:"overallTotal"`
	SelectedTotal decimal.Decimal `json:"selectedTotal"`
	// SelectedCount sums the quantities of selected items.
	SelectedCount int `json:"selectedCount"`
}

// State is an immutable snapshot of the cart and its selection. Selected is
// kept in cart order and only ever names ids present in Items.
type State struct {
	Items    []CartItem  `json:"items"`
	Selected []ProductID `json:"selected"`
}

// Len returns the number of distinct items.
func (s State) Len() int {
	return len(s.Items)
}

// Item returns the item with the given id.
func (s State) Item(id ProductID) (CartItem, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return CartItem{}, false
}

// IsSelected reports whether id is selected for checkout.
func (s State) IsSelected(id ProductID) bool {
	return slices.Contains(s.Selected, id)
}

// SelectedItems returns the items selected for checkout, in cart order.
func (s State) SelectedItems() []CartItem {
	out := make([]CartItem, 0, len(s.Selected))
	for _, it := range s.Items {
		if s.IsSelected(it.ID) {
			out = append(out, it)
		}
	}
	return out
}

// Totals computes overall and selected totals.
func (s State) Totals() Totals {
	t := Totals{OverallTotal: decimal.Zero, SelectedTotal: decimal.Zero}
	for _, it := range s.Items {
		sub := it.Subtotal()
		t.OverallTotal = t.OverallTotal.Add(sub)
		if s.IsSelected(it.ID) {
			t.SelectedTotal = t.SelectedTotal.Add(sub)
			t.SelectedCount += it.Quantity
		}
	}
	return t
}

// IDs returns the ids of every item in cart order.
func (s State) IDs() []ProductID {
	ids := make([]ProductID, len(s.Items))
	for i, it := range s.Items {
		ids[i] = it.ID
	}
	return ids
}

// Normalize enforces the item invariants on items of unknown provenance:
// quantities below 1 are dropped and duplicate ids are merged into the first
// occurrence by summing quantities.
func Normalize(items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	index := make(map[ProductID]int, len(items))
	for _, it := range items {
		if it.Quantity < 1 || it.ID == 0 {
			continue
		}
		if i, ok := index[it.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}
