package api

import (
	"context"
	"net/http"

	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/shopspring/decimal"
)

// serverCartItem is the backend's cart line. The backend assigns its own row
// id and carries the catalog id in productId.
type serverCartItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Quantity  int             `json:"quantity"`
}

func (s serverCartItem) toCartItem() cart.CartItem {
	id := s.ProductID
	if id == 0 {
		id = s.ID
	}
	return cart.CartItem{
		ID:       cart.ProductID(id),
		Name:     s.Name,
		Price:    s.Price,
		ImageURL: s.ImageURL,
		Quantity: s.Quantity,
	}
}

func fromCartItem(it cart.CartItem) serverCartItem {
	return serverCartItem{
		ID:        int64(it.ID),
		ProductID: int64(it.ID),
		Name:      it.Name,
		Price:     it.Price,
		ImageURL:  it.ImageURL,
		Quantity:  it.Quantity,
	}
}

// GetCart returns the server-side cart of the signed-in user.
func (c *Client) GetCart(ctx context.Context) ([]cart.CartItem, error) {
	var items []serverCartItem
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/cart", auth: true}, &items); err != nil {
		return nil, err
	}

	out := make([]cart.CartItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.toCartItem())
	}
	return out, nil
}

// PutCart replaces the server-side cart with items.
func (c *Client) PutCart(ctx context.Context, items []cart.CartItem) error {
	body := struct {
		Items []serverCartItem `json:"items"`
	}{Items: make([]serverCartItem, 0, len(items))}
	for _, it := range items {
		body.Items = append(body.Items, fromCartItem(it))
	}

	return c.do(ctx, request{method: http.MethodPost, path: "/api/users/cart", body: body, auth: true}, nil)
}
