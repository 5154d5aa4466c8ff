package ordersvc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/storefront/internal/domain"
	context_ "github.com/mkrupp/storefront/internal/infra/context"
	"github.com/mkrupp/storefront/internal/repo/kv"
	"github.com/mkrupp/storefront/internal/svc/cartsvc"
	"github.com/mkrupp/storefront/internal/svc/ordersvc"
	"github.com/mkrupp/storefront/internal/util/encoding"
)

const testNow = int64(1_700_000_000_000)

//nolint:gochecknoglobals
var (
	adminSession = domain.Session{UserID: "u-admin"}
	alice        = domain.Session{UserID: "alice"}
	shipping     = domain.ShippingInfo{
		Email:   "jane@example.com",
		Name:    "Jane",
		Address: "1 Garden Way",
		City:    "Springfield",
		State:   "OR",
		Zip:     "97477",
	}
)

type mockCatalog struct {
	products map[string]domain.Product
}

func (c *mockCatalog) Get(_ context.Context, id string) (domain.Product, error) {
	if p, ok := c.products[id]; ok {
		return p, nil
	}

	return domain.Product{}, domain.NotFoundError{Entity: "product", ID: id}
}

func (c *mockCatalog) List(context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		products = append(products, p)
	}

	return products, nil
}

type mockAdminGuard struct{}

func (mockAdminGuard) RequireAdmin(_ context.Context, session domain.Session) (domain.User, error) {
	if session != adminSession {
		return domain.User{}, domain.ErrAdminRequired
	}

	return domain.User{ID: session.UserID, Role: domain.RoleAdmin}, nil
}

type recordingPublisher struct {
	orders []domain.Order
	err    error
	m      sync.Mutex
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, order domain.Order) error {
	p.m.Lock()
	defer p.m.Unlock()

	p.orders = append(p.orders, order)

	return p.err
}

type fixture struct {
	orders  *ordersvc.OrderService
	carts   *cartsvc.CartService
	catalog *mockCatalog
	events  *recordingPublisher
}

var errStoreTimeout = errors.New("i/o timeout")

// flakyStore fails the next reads of chosen keys.
type flakyStore struct {
	kv.Store

	m     sync.Mutex
	fails map[string]int
}

func (s *flakyStore) failGets(key string, n int) {
	s.m.Lock()
	defer s.m.Unlock()

	s.fails[key] = n
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.m.Lock()
	if s.fails[key] > 0 {
		s.fails[key]--
		s.m.Unlock()

		return nil, false, errStoreTimeout
	}
	s.m.Unlock()

	return s.Store.Get(ctx, key)
}

func setupTestService(t *testing.T) fixture {
	t.Helper()

	return setupTestServiceWithStore(t, kv.NewMemoryStore())
}

func setupTestServiceWithStore(t *testing.T, backend kv.Store) fixture {
	t.Helper()

	store := kv.NewAdapter(backend)
	catalog := &mockCatalog{products: map[string]domain.Product{
		"p1": {ID: "p1", Name: "Basil", Price: 5, Stock: 10},
		"p2": {ID: "p2", Name: "Fern", Price: 40, Stock: 10},
	}}

	carts := cartsvc.NewCartService(store, catalog, cartsvc.DefaultPricing())
	carts.Now = func() time.Time { return time.UnixMilli(testNow) }

	events := &recordingPublisher{}

	orders := ordersvc.NewOrderService(store, carts, mockAdminGuard{}, events)
	orders.Now = func() time.Time { return time.UnixMilli(testNow) }

	return fixture{orders: orders, carts: carts, catalog: catalog, events: events}
}

func TestOrderService_PlaceOrder(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	ctx := context.Background()
	key := cartsvc.ResolveCartKey(alice)

	_, err := f.carts.AddLine(ctx, key, "p1", 3)
	require.NoError(t, err)

	order, err := f.orders.PlaceOrder(ctx, alice, shipping)
	require.NoError(t, err)

	require.NotNil(t, order.UserID)
	assert.Equal(t, "alice", *order.UserID)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, testNow, order.CreatedAt)
	assert.Equal(t, shipping, order.Shipping)
	assert.Equal(t, []domain.OrderItem{{ID: "p1", Qty: 3, Price: 5}}, order.Items)
	assert.Equal(t, 15.0, order.Amounts.Subtotal)
	assert.Equal(t, 7.99, order.Amounts.Shipping)
	assert.Equal(t, 1.05, order.Amounts.Tax)
	assert.Equal(t, 24.04, order.Amounts.Total)

	require.True(t, strings.HasPrefix(order.ID, ordersvc.OrderIDPrefix))
	raw, err := encoding.DecodeCrockfordB32LC(strings.TrimPrefix(order.ID, ordersvc.OrderIDPrefix))
	require.NoError(t, err)
	id, err := uuid.FromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	all, err := f.orders.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Order{order}, all, "exactly one order is appended")
	assert.Empty(t, f.carts.GetCart(ctx, key).Items, "the active cart is emptied")
	assert.Equal(t, []domain.Order{order}, f.events.orders)
}

func TestOrderService_PlaceOrderGuest(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, domain.GuestCartKey, "p2", 2)
	require.NoError(t, err)

	order, err := f.orders.PlaceOrder(ctx, domain.GuestSession, shipping)
	require.NoError(t, err)
	assert.Nil(t, order.UserID)
	assert.Equal(t, 0.0, order.Amounts.Shipping)
	assert.Equal(t, 85.6, order.Amounts.Total)
}

func TestOrderService_PlaceOrderDeletedProduct(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	ctx := context.Background()
	key := cartsvc.ResolveCartKey(alice)

	_, err := f.carts.AddLine(ctx, key, "p1", 1)
	require.NoError(t, err)
	_, err = f.carts.AddLine(ctx, key, "p2", 1)
	require.NoError(t, err)

	delete(f.catalog.products, "p2")

	order, err := f.orders.PlaceOrder(ctx, alice, shipping)
	require.NoError(t, err)
	assert.Equal(t, []domain.OrderItem{{ID: "p1", Qty: 1, Price: 5}, {ID: "p2", Qty: 1, Price: 0}}, order.Items)
	assert.Equal(t, 5.0, order.Amounts.Subtotal)
}

func TestOrderService_PlaceOrderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fill     bool
		shipping domain.ShippingInfo
		newID    func() (uuid.UUID, error)
		wantErr  error
	}{
		{name: "empty cart", shipping: shipping, wantErr: domain.ErrEmptyCart},
		{name: "missing name", fill: true, shipping: domain.ShippingInfo{Email: "a@b.c", Address: "x"}, wantErr: domain.ErrValidation},
		{name: "missing email", fill: true, shipping: domain.ShippingInfo{Name: "A", Address: "x"}, wantErr: domain.ErrValidation},
		{name: "missing address", fill: true, shipping: domain.ShippingInfo{Name: "A", Email: "a@b.c"}, wantErr: domain.ErrValidation},
		{
			name:     "id generation fails",
			fill:     true,
			shipping: shipping,
			newID:    func() (uuid.UUID, error) { return uuid.Nil, errors.New("entropy exhausted") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setupTestService(t)
			ctx := context.Background()

			if tt.newID != nil {
				f.orders.NewID = tt.newID
			}

			if tt.fill {
				_, err := f.carts.AddLine(ctx, domain.GuestCartKey, "p1", 2)
				require.NoError(t, err)
			}

			_, err := f.orders.PlaceOrder(ctx, domain.GuestSession, tt.shipping)
			require.Error(t, err)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}

			all, err := f.orders.All(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
			assert.Empty(t, f.events.orders)

			if tt.fill {
				assert.Equal(t, []domain.CartLine{{ProductID: "p1", Qty: 2}}, f.carts.GetCart(ctx, domain.GuestCartKey).Items)
			}
		})
	}
}

func TestOrderService_PublishFailureKeepsOrder(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	ctx := context.Background()
	f.events.err = errors.New("broker unavailable")

	_, err := f.carts.AddLine(ctx, domain.GuestCartKey, "p1", 1)
	require.NoError(t, err)

	order, err := f.orders.PlaceOrder(ctx, domain.GuestSession, shipping)
	require.NoError(t, err)

	all, err := f.orders.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Order{order}, all)
}

func TestOrderService_StoreFaultKeepsOrderLog(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: kv.NewMemoryStore(), fails: make(map[string]int)}
	f := setupTestServiceWithStore(t, store)
	ctx := context.Background()

	for range 3 {
		_, err := f.carts.AddLine(ctx, domain.GuestCartKey, "p1", 1)
		require.NoError(t, err)
		_, err = f.orders.PlaceOrder(ctx, domain.GuestSession, shipping)
		require.NoError(t, err)
	}

	_, err := f.carts.AddLine(ctx, domain.GuestCartKey, "p2", 1)
	require.NoError(t, err)

	store.failGets(ordersvc.OrdersKey, 1)

	_, err = f.orders.PlaceOrder(ctx, domain.GuestSession, shipping)
	require.ErrorIs(t, err, errStoreTimeout)

	all, err := f.orders.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3, "earlier orders survive a failed read")
	assert.Len(t, f.events.orders, 3)
	assert.Equal(t, []domain.CartLine{{ProductID: "p2", Qty: 1}}, f.carts.GetCart(ctx, domain.GuestCartKey).Items,
		"the cart is kept for a retry")

	store.failGets(ordersvc.OrdersKey, 1)

	_, err = f.orders.Orders(ctx, adminSession)
	require.ErrorIs(t, err, errStoreTimeout)
}

func TestOrderService_Visibility(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	ctx := context.Background()
	bob := domain.Session{UserID: "bob"}

	place := func(session domain.Session) domain.Order {
		_, err := f.carts.AddLine(ctx, cartsvc.ResolveCartKey(session), "p1", 1)
		require.NoError(t, err)

		order, err := f.orders.PlaceOrder(ctx, session, shipping)
		require.NoError(t, err)

		return order
	}

	aliceOrder := place(alice)
	bobOrder := place(bob)
	guestOrder := place(domain.GuestSession)

	tests := []struct {
		name    string
		session domain.Session
		want    []domain.Order
	}{
		{name: "user sees own orders", session: alice, want: []domain.Order{aliceOrder}},
		{name: "other user", session: bob, want: []domain.Order{bobOrder}},
		{name: "guest sees guest orders", session: domain.GuestSession, want: []domain.Order{guestOrder}},
		{name: "admin sees all", session: adminSession, want: []domain.Order{aliceOrder, bobOrder, guestOrder}},
		{name: "user without orders", session: domain.Session{UserID: "carol"}, want: []domain.Order{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			orders, err := f.orders.Orders(ctx, tt.session)
			require.NoError(t, err)
			assert.Equal(t, tt.want, orders)
		})
	}

	got, err := f.orders.Order(ctx, alice, strings.ToUpper(aliceOrder.ID))
	require.NoError(t, err)
	assert.Equal(t, aliceOrder, got)

	got, err = f.orders.Order(ctx, adminSession, bobOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, bobOrder, got)

	_, err = f.orders.Order(ctx, alice, bobOrder.ID)
	require.ErrorIs(t, err, domain.ErrNotFound, "other users' orders are hidden")

	_, err = f.orders.Order(ctx, alice, "ord_nope")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.orders.Order(ctx, alice, strings.TrimPrefix(aliceOrder.ID, ordersvc.OrderIDPrefix))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHTTPTransport(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	ht := ordersvc.NewHTTPTransport(f.orders)

	do := func(method, target, body string, session domain.Session) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req = req.WithContext(context_.WithSession(req.Context(), session))

		rec := httptest.NewRecorder()
		ht.ServeHTTP(rec, req)

		return rec
	}

	body, err := json.Marshal(shipping)
	require.NoError(t, err)

	rec := do(http.MethodPost, "/checkout", string(body), alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty cart")

	_, err = f.carts.AddLine(context.Background(), cartsvc.ResolveCartKey(alice), "p1", 3)
	require.NoError(t, err)

	rec = do(http.MethodPost, "/checkout", `{"name":"Jane"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "incomplete shipping")

	rec = do(http.MethodPost, "/checkout", string(body), alice)
	require.Equal(t, http.StatusCreated, rec.Code)

	var order domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, 24.04, order.Amounts.Total)

	rec = do(http.MethodGet, "/orders", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Equal(t, []domain.Order{order}, orders)

	rec = do(http.MethodGet, "/orders/"+order.ID, "", alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodGet, "/orders/"+order.ID, "", domain.GuestSession)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(http.MethodGet, "/orders", "", domain.GuestSession)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
