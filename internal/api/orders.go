package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// Timestamp decodes the backend's local date-times, which may omit the zone.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// OrderItem is a purchased line, priced at the time of the order.
type OrderItem struct {
	ProductID       cart.ProductID  `json:"productId"`
	ProductName     string          `json:"productName"`
	ProductPrice    decimal.Decimal `json:"productPrice"`
	ProductImageURL string          `json:"productImageUrl,omitempty"`
	Quantity        int             `json:"quantity"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// Order is a placed order.
type Order struct {
	OrderNumber     string          `json:"orderNumber"`
	OrderDate       Timestamp       `json:"orderDate"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// Cancellable reports whether the backend will accept a cancellation.
func (o Order) Cancellable() bool {
	return o.Status == StatusPending || o.Status == StatusProcessing
}

// Sort keys accepted by SortOrders.
const (
	SortDateDesc  = "date-desc"
	SortDateAsc   = "date-asc"
	SortTotalDesc = "total-desc"
	SortTotalAsc  = "total-asc"
)

// SortKeys lists the accepted sort keys, default first.
var SortKeys = []string{SortDateDesc, SortDateAsc, SortTotalDesc, SortTotalAsc}

// SortOrders sorts orders in place. Unknown keys fall back to newest first.
func SortOrders(orders []Order, key string) {
	var cmp func(a, b Order) int
	switch key {
	case SortDateAsc:
		cmp = func(a, b Order) int { return a.OrderDate.Compare(b.OrderDate.Time) }
	case SortTotalDesc:
		cmp = func(a, b Order) int { return b.TotalAmount.Cmp(a.TotalAmount) }
	case SortTotalAsc:
		cmp = func(a, b Order) int { return a.TotalAmount.Cmp(b.TotalAmount) }
	default:
		cmp = func(a, b Order) int { return b.OrderDate.Compare(a.OrderDate.Time) }
	}
	slices.SortStableFunc(orders, cmp)
}

// OrderRequest is the body of a new order.
type OrderRequest struct {
	ShippingAddress string
	Items           []cart.CartItem
}

// PlaceOrder submits an order. idempotencyKey lets the backend recognize a
// retried submission.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest, idempotencyKey string) (Order, error) {
	body := struct {
		ShippingAddress string           `json:"shippingAddress"`
		Items           []serverCartItem `json:"items"`
	}{ShippingAddress: req.ShippingAddress, Items: make([]serverCartItem, 0, len(req.Items))}
	for _, it := range req.Items {
		body.Items = append(body.Items, fromCartItem(it))
	}

	r := request{method: http.MethodPost, path: "/api/orders", body: body, auth: true}
	if idempotencyKey != "" {
		r.headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}

	var out Order
	if err := c.do(ctx, r, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

// ListOrders returns the signed-in user's orders as the backend orders them.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/orders", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder returns a single order with its items.
func (c *Client) GetOrder(ctx context.Context, orderNumber string) (Order, error) {
	var out Order
	if err := c.do(ctx, request{method: http.MethodGet, path: orderPath(orderNumber), auth: true}, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

// CancelOrder cancels a pending or processing order and returns its new state.
func (c *Client) CancelOrder(ctx context.Context, orderNumber string) (Order, error) {
	var out Order
	r := request{method: http.MethodPost, path: orderPath(orderNumber) + "/cancel", auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return Order{}, err
	}
	if out.OrderNumber == "" {
		out.OrderNumber = orderNumber
	}
	return out, nil
}

func orderPath(orderNumber string) string {
	return "/api/orders/" + url.PathEscape(strings.TrimSpace(orderNumber))
}
