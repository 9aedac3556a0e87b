package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hay-kot/storefront/internal/core/cart"
)

// DefaultPageSize is used when a Page has no size.
const DefaultPageSize = 12

// Page selects a slice of the catalog. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	return p
}

// ProductPage is one page of the catalog.
type ProductPage struct {
	Items []cart.Product
	Page  int
	Size  int
	Total int
	Pages int
}

// ListProducts returns one page of active products. The backend returns the
// whole catalog, pagination happens client side.
func (c *Client) ListProducts(ctx context.Context, page Page) (ProductPage, error) {
	var all []cart.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/products"}, &all); err != nil {
		return ProductPage{}, err
	}

	active := all[:0]
	for _, p := range all {
		if p.Active {
			active = append(active, p)
		}
	}

	page = page.normalize()
	out := ProductPage{
		Page:  page.Number,
		Size:  page.Size,
		Total: len(active),
		Pages: (len(active) + page.Size - 1) / page.Size,
	}

	start := (page.Number - 1) * page.Size
	if start >= len(active) {
		out.Items = []cart.Product{}
		return out, nil
	}
	end := min(start+page.Size, len(active))
	out.Items = active[start:end]
	return out, nil
}

// GetProduct returns a single product.
func (c *Client) GetProduct(ctx context.Context, id cart.ProductID) (cart.Product, error) {
	var p cart.Product
	path := fmt.Sprintf("/api/products/%d", id)
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &p); err != nil {
		return cart.Product{}, err
	}
	return p, nil
}
