// Package checkout turns the selected part of the cart into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/storefront/internal/api"
	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/hay-kot/storefront/internal/core/session"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotAuthenticated means the shopper must sign in first. The login
	// redirect has been recorded when this is returned.
	ErrNotAuthenticated = errors.New("sign in to place an order")
	// ErrNothingSelected means no cart items are selected for checkout.
	ErrNothingSelected = errors.New("no items selected for checkout")
)

// OrderPlacer submits orders to the backend.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req api.OrderRequest, idempotencyKey string) (api.Order, error)
}

// Confirmation is what the shopper is shown after a successful order.
type Confirmation struct {
	OrderNumber string          `json:"orderNumber"`
	OrderDate   time.Time       `json:"orderDate"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      api.OrderStatus `json:"status,omitempty"`
	Items       []cart.CartItem `json:"items"`

	// CartNotCleared is set when the order was placed but the purchased
	// items could not be removed from the local cart.
	CartNotCleared bool `json:"-"`
}

// Markdown renders the confirmation for display.
func (c Confirmation) Markdown(currency string) string {
	var b strings.Builder
	b.WriteString("# Thank you for your order\n\n")
	fmt.Fprintf(&b, "**Order number:** %s  \n", c.OrderNumber)
	if !c.OrderDate.IsZero() {
		fmt.Fprintf(&b, "**Placed:** %s  \n", c.OrderDate.Format("Jan 2, 2006 15:04"))
	}
	fmt.Fprintf(&b, "**Total:** %s%s\n\n", currency, c.TotalAmount.StringFixed(2))

	if len(c.Items) > 0 {
		b.WriteString("| Item | Qty | Subtotal |\n|---|---:|---:|\n")
		for _, it := range c.Items {
			fmt.Fprintf(&b, "| %s | %d | %s%s |\n", it.Name, it.Quantity, currency, it.Subtotal().StringFixed(2))
		}
	}
	return b.String()
}

// Service places orders for the selected cart items.
type Service struct {
	store    *cart.Store
	sessions *session.Manager
	orders   OrderPlacer
	kv       *kv.Adapter
	log      zerolog.Logger
	newKey   func() string
}

// NewService creates a Service.
func NewService(store *cart.Store, sessions *session.Manager, orders OrderPlacer, adapter *kv.Adapter, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		orders:   orders,
		kv:       adapter,
		log:      log,
		newKey:   uuid.NewString,
	}
}

// PlaceOrder validates form, submits the selected items and, once the backend
// accepts the order, removes them from the cart.
func (s *Service) PlaceOrder(ctx context.Context, form ShippingForm) (Confirmation, error) {
	if _, ok := s.sessions.Token(ctx); !ok {
		s.requireLogin(ctx)
		return Confirmation{}, ErrNotAuthenticated
	}

	if err := form.Validate(); err != nil {
		return Confirmation{}, err
	}

	selected := s.store.SelectedItems(ctx)
	if len(selected) == 0 {
		return Confirmation{}, ErrNothingSelected
	}

	key := s.newKey()
	s.log.Debug().Str("idempotency_key", key).Int("items", len(selected)).Msg("placing order")

	order, err := s.orders.PlaceOrder(ctx, api.OrderRequest{
		ShippingAddress: form.FormatAddress(),
		Items:           selected,
	}, key)
	if err != nil {
		if api.IsUnauthorized(err) {
			s.requireLogin(ctx)
			return Confirmation{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
		}
		return Confirmation{}, fmt.Errorf("place order: %w", err)
	}

	ids := make([]cart.ProductID, len(selected))
	for i, it := range selected {
		ids[i] = it.ID
	}
	_, clearErr := s.store.ClearPurchased(ctx, ids)
	if clearErr != nil {
		s.log.Warn().Err(clearErr).Str("order", order.OrderNumber).Msg("failed to clear purchased items")
	}

	conf := Confirmation{
		OrderNumber: order.OrderNumber,
		OrderDate:   order.OrderDate.Time,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
		Items:       selected,

		CartNotCleared: clearErr != nil,
	}
	if err := s.kv.WriteValue(ctx, kv.KeyLastOrder, conf); err != nil {
		s.log.Warn().Err(err).Msg("failed to store order confirmation")
	}

	s.log.Info().Str("order", conf.OrderNumber).Str("total", conf.TotalAmount.String()).Msg("order placed")
	return conf, nil
}

// LastConfirmation returns the most recent order confirmation.
func (s *Service) LastConfirmation(ctx context.Context) (Confirmation, bool) {
	var c Confirmation
	if !s.kv.ReadValue(ctx, kv.KeyLastOrder, &c) {
		return Confirmation{}, false
	}
	return c, c.OrderNumber != ""
}

func (s *Service) requireLogin(ctx context.Context) {
	if err := s.sessions.SetRedirect(ctx, session.RedirectCheckout); err != nil {
		s.log.Warn().Err(err).Msg("failed to record login redirect")
	}
}
