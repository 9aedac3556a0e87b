package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/hay-kot/storefront/internal/core/kv"
)

// StorageCheck inspects the persisted cart and selection as raw values,
// below the adapter that would otherwise silently discard bad data.
// If fix is true, malformed values are removed and inconsistent ones are
// rewritten.
type StorageCheck struct {
	store  kv.Store
	driver string
	path   string
	fix    bool
}

// NewStorageCheck creates a new storage check.
func NewStorageCheck(store kv.Store, driver, path string, fix bool) *StorageCheck {
	return &StorageCheck{store: store, driver: driver, path: path, fix: fix}
}

func (c *StorageCheck) Name() string {
	return "Storage"
}

func (c *StorageCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	result.add(CheckItem{Label: "Backend", Status: StatusPass, Detail: fmt.Sprintf("%s (%s)", c.driver, c.path)})

	items, ok := c.checkCart(ctx, &result)
	if !ok {
		return result
	}
	c.checkSelection(ctx, &result, items)
	return result
}

// raw returns the stored value, or found=false when the key is absent.
func (c *StorageCheck) raw(ctx context.Context, key string) (value string, found bool, err error) {
	e, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrKeyNotFound):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return e.Value, true, nil
}

func (c *StorageCheck) checkCart(ctx context.Context, result *Result) ([]cart.CartItem, bool) {
	const label = "Cart"

	value, found, err := c.raw(ctx, kv.KeyCart)
	if err != nil {
		result.add(CheckItem{Label: label, Status: StatusFail, Detail: err.Error()})
		return nil, false
	}
	if !found {
		result.add(CheckItem{Label: label, Status: StatusPass, Detail: "empty"})
		return nil, true
	}

	var items []cart.CartItem
	if err := json.Unmarshal([]byte(value), &items); err != nil || items == nil {
		c.malformed(ctx, result, label, kv.KeyCart)
		return nil, true
	}

	normalized := cart.Normalize(items)
	if len(normalized) == len(items) {
		result.add(CheckItem{Label: label, Status: StatusPass, Detail: fmt.Sprintf("%d item(s)", len(items))})
		return items, true
	}

	detail := fmt.Sprintf("%d invalid or duplicate line(s)", len(items)-len(normalized))
	if c.fix {
		if err := c.write(ctx, kv.KeyCart, normalized); err != nil {
			result.add(CheckItem{Label: label, Status: StatusFail, Detail: "fix failed: " + err.Error()})
			return normalized, true
		}
		result.add(CheckItem{Label: label, Status: StatusPass, Detail: "normalized " + detail})
		return normalized, true
	}

	result.add(CheckItem{Label: label, Status: StatusWarn, Detail: detail, Fixable: true})
	return normalized, true
}

func (c *StorageCheck) checkSelection(ctx context.Context, result *Result, items []cart.CartItem) {
	const label = "Selection"

	value, found, err := c.raw(ctx, kv.KeySelection)
	if err != nil {
		result.add(CheckItem{Label: label, Status: StatusFail, Detail: err.Error()})
		return
	}
	if !found {
		result.add(CheckItem{Label: label, Status: StatusPass, Detail: "not recorded, all items selected"})
		return
	}

	var ids []cart.ProductID
	if err := json.Unmarshal([]byte(value), &ids); err != nil || ids == nil {
		c.malformed(ctx, result, label, kv.KeySelection)
		return
	}

	st := cart.State{Items: items}
	kept := make([]cart.ProductID, 0, len(ids))
	for _, id := range ids {
		if _, ok := st.Item(id); ok {
			kept = append(kept, id)
		}
	}

	if len(kept) == len(ids) {
		result.add(CheckItem{Label: label, Status: StatusPass, Detail: fmt.Sprintf("%d of %d item(s) selected", len(ids), len(items))})
		return
	}

	detail := fmt.Sprintf("%d selected id(s) not in cart", len(ids)-len(kept))
	if c.fix {
		if err := c.write(ctx, kv.KeySelection, kept); err != nil {
			result.add(CheckItem{Label: label, Status: StatusFail, Detail: "fix failed: " + err.Error()})
			return
		}
		result.add(CheckItem{Label: label, Status: StatusPass, Detail: "dropped " + detail})
		return
	}

	result.add(CheckItem{Label: label, Status: StatusWarn, Detail: detail, Fixable: true})
}

func (c *StorageCheck) malformed(ctx context.Context, result *Result, label, key string) {
	if c.fix {
		if err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
			result.add(CheckItem{Label: label, Status: StatusFail, Detail: "fix failed: " + err.Error()})
			return
		}
		result.add(CheckItem{Label: label, Status: StatusPass, Detail: "removed malformed value"})
		return
	}

	result.add(CheckItem{Label: label, Status: StatusFail, Detail: "malformed value, treated as empty", Fixable: true})
}

func (c *StorageCheck) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, string(data))
}
