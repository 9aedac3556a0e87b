// Package apitest provides an in-memory storefront backend for tests.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

var signingKey = []byte("apitest-signing-key")

// Product is a catalog row.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Active      bool            `json:"active"`
}

// CartItem is a server-side cart row.
type CartItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl"`
	Quantity  int             `json:"quantity"`
}

// OrderItem is a purchased line.
type OrderItem struct {
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Order is a placed order.
type Order struct {
	UserID          int64           `json:"-"`
	OrderNumber     string          `json:"orderNumber"`
	OrderDate       string          `json:"orderDate"`
	Status          string          `json:"status"`
	ShippingAddress string          `json:"shippingAddress"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Items           []OrderItem     `json:"items"`
}

type user struct {
	id       int64
	username string
	password string
}

// Server is a fake backend. Its exported fields may be changed between
// requests under Lock.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	users      map[string]user
	products   map[int64]Product
	carts      map[int64][]CartItem
	orders     []Order
	nextUser   int64
	nextRow    int64
	nextOrder  int
	cartPushes int
	idemKeys   []string

	// FailCart makes every cart endpoint answer 500.
	FailCart bool
	// CartDelay is applied to cart pushes before they are stored.
	CartDelay time.Duration
}

// New starts a Server and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		users:    make(map[string]user),
		products: make(map[int64]Product),
		carts:    make(map[int64][]CartItem),
		nextUser: 1,
		nextRow:  100,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/products", s.listProducts)
	r.Get("/api/products/{id}", s.getProduct)
	r.Post("/api/auth/login", s.login)
	r.Post("/api/auth/register", s.register)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/api/users/cart", s.getCart)
		r.Post("/api/users/cart", s.putCart)
		r.Get("/api/orders", s.listOrders)
		r.Post("/api/orders", s.createOrder)
		r.Get("/api/orders/{orderNumber}", s.getOrder)
		r.Post("/api/orders/{orderNumber}/cancel", s.cancelOrder)
	})

	return r
}

// AddProduct seeds the catalog.
func (s *Server) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// AddUser creates an account and returns a valid token for it.
func (s *Server) AddUser(username, password string) (int64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.addUserLocked(username, password)
	return u.id, mustToken(u)
}

// SetCart replaces the server cart of a user.
func (s *Server) SetCart(userID int64, items []CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = items
}

// Cart returns the server cart of a user.
func (s *Server) Cart(userID int64) []CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CartItem(nil), s.carts[userID]...)
}

// CartPushes counts accepted cart pushes.
func (s *Server) CartPushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartPushes
}

// Orders returns every placed order.
func (s *Server) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Order(nil), s.orders...)
}

// AddOrder seeds an order.
func (s *Server) AddOrder(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

// IdempotencyKeys returns the keys seen on order submissions.
func (s *Server) IdempotencyKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.idemKeys...)
}

// Configure runs fn with the server locked.
func (s *Server) Configure(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *Server) addUserLocked(username, password string) user {
	u := user{id: s.nextUser, username: username, password: password}
	s.nextUser++
	s.users[username] = u
	return u
}

func mustToken(u user) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      u.username,
		"id":       u.id,
		"username": u.username,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return signed
}

type userIDKey struct{}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized access")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return signingKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		id, _ := claims["id"].(float64)
		ctx := context.WithValue(r.Context(), userIDKey{}, int64(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey{}).(int64)
	return id
}

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := slices.Sorted(maps.Keys(s.products))
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.products[id])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[c.Username]
	if !ok || u.password != c.Password {
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": mustToken(u), "id": u.id, "username": u.username})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Username == "" || c.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[c.Username]; exists {
		writeMessage(w, http.StatusBadRequest, "Username already exists")
		return
	}
	u := s.addUserLocked(c.Username, c.Password)
	writeJSON(w, http.StatusCreated, map[string]any{"id": u.id, "username": u.username, "message": "User registered successfully"})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCart {
		writeMessage(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	items := s.carts[userID(r)]
	if items == nil {
		items = []CartItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) putCart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []CartItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Items == nil {
		writeMessage(w, http.StatusBadRequest, "Invalid cart data")
		return
	}

	s.mu.Lock()
	delay := s.CartDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCart {
		writeMessage(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	for i := range body.Items {
		if body.Items[i].ProductID == 0 {
			body.Items[i].ProductID = body.Items[i].ID
		}
		body.Items[i].ID = s.nextRow
		s.nextRow++
	}
	s.carts[userID(r)] = body.Items
	s.cartPushes++
	writeJSON(w, http.StatusOK, map[string]any{"message": "Cart updated successfully", "items": body.Items})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Order{}
	for _, o := range s.orders {
		if o.UserID == userID(r) {
			out = append(out, o)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ShippingAddress string `json:"shippingAddress"`
		Items           []struct {
			ID       int64 `json:"id"`
			Quantity int   `json:"quantity"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Items) == 0 {
		writeMessage(w, http.StatusBadRequest, "Items are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key := r.Header.Get("Idempotency-Key"); key != "" {
		s.idemKeys = append(s.idemKeys, key)
	}

	o := Order{
		UserID:          userID(r),
		OrderNumber:     fmt.Sprintf("ORD-%04d", s.nextOrder+1),
		OrderDate:       time.Now().UTC().Format("2006-01-02T15:04:05"),
		Status:          "PENDING",
		ShippingAddress: body.ShippingAddress,
		TotalAmount:     decimal.Zero,
	}
	for _, it := range body.Items {
		p, ok := s.products[it.ID]
		if !ok {
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Product not found: %d", it.ID))
			return
		}
		sub := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		o.Items = append(o.Items, OrderItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			Quantity:     it.Quantity,
			Subtotal:     sub,
		})
		o.TotalAmount = o.TotalAmount.Add(sub)
	}
	s.nextOrder++
	s.orders = append(s.orders, o)

	writeJSON(w, http.StatusCreated, map[string]any{
		"orderNumber": o.OrderNumber,
		"orderDate":   o.OrderDate,
		"totalAmount": o.TotalAmount,
		"status":      o.Status,
	})
}

func (s *Server) findOrder(r *http.Request) (int, bool) {
	number := chi.URLParam(r, "orderNumber")
	for i, o := range s.orders {
		if o.OrderNumber == number && o.UserID == userID(r) {
			return i, true
		}
	}
	return -1, false
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findOrder(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, s.orders[i])
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findOrder(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Order not found")
		return
	}
	if st := s.orders[i].Status; st != "PENDING" && st != "PROCESSING" {
		writeMessage(w, http.StatusBadRequest, "Orders can only be cancelled when in PENDING or PROCESSING status")
		return
	}
	s.orders[i].Status = "CANCELLED"
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Order cancelled successfully",
		"orderNumber": s.orders[i].OrderNumber,
		"status":      s.orders[i].Status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
