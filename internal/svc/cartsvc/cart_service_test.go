package cartsvc_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/storefront/internal/domain"
	"github.com/mkrupp/storefront/internal/repo/kv"
	"github.com/mkrupp/storefront/internal/svc/cartsvc"
)

const testNow = int64(1_700_000_000_000)

var (
	errCatalogDown  = errors.New("catalog down")
	errStoreTimeout = errors.New("i/o timeout")
)

// mockCatalog is an in-memory catalog whose products tests may change.
type mockCatalog struct {
	products []domain.Product
	err      error
	m        sync.Mutex
}

func (c *mockCatalog) Get(_ context.Context, id string) (domain.Product, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.err != nil {
		return domain.Product{}, c.err
	}

	if i := slices.IndexFunc(c.products, func(p domain.Product) bool { return p.ID == id }); i >= 0 {
		return c.products[i], nil
	}

	return domain.Product{}, domain.NotFoundError{Entity: "product", ID: id}
}

func (c *mockCatalog) List(context.Context) ([]domain.Product, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.err != nil {
		return nil, c.err
	}

	return slices.Clone(c.products), nil
}

func (c *mockCatalog) set(product domain.Product) {
	c.m.Lock()
	defer c.m.Unlock()

	if i := slices.IndexFunc(c.products, func(p domain.Product) bool { return p.ID == product.ID }); i >= 0 {
		c.products[i] = product
	} else {
		c.products = append(c.products, product)
	}
}

func (c *mockCatalog) remove(id string) {
	c.m.Lock()
	defer c.m.Unlock()

	c.products = slices.DeleteFunc(c.products, func(p domain.Product) bool { return p.ID == id })
}

// flakyStore fails a given number of reads per key with errStoreTimeout.
type flakyStore struct {
	*kv.MemoryStore

	fails map[string]int
	m     sync.Mutex
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: kv.NewMemoryStore(), fails: make(map[string]int)}
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

	return s.MemoryStore.Get(ctx, key)
}

func setupTestService(t *testing.T) (*cartsvc.CartService, *mockCatalog, kv.Store) {
	t.Helper()

	return setupTestServiceWithStore(t, kv.NewMemoryStore())
}

func setupTestServiceWithStore(t *testing.T, store kv.Store) (*cartsvc.CartService, *mockCatalog, kv.Store) {
	t.Helper()

	catalog := &mockCatalog{products: []domain.Product{
		{ID: "p1", Name: "Basil", Price: 5, Stock: 10},
		{ID: "p2", Name: "Fern", Price: 40, Stock: 10},
		{ID: "p3", Name: "Moss", Price: 2, Stock: 0},
	}}

	svc := cartsvc.NewCartService(kv.NewAdapter(store), catalog, cartsvc.DefaultPricing())
	svc.Now = func() time.Time { return time.UnixMilli(testNow) }

	return svc, catalog, store
}

func lines(items ...any) []domain.CartLine {
	out := []domain.CartLine{}
	for i := 0; i < len(items); i += 2 {
		out = append(out, domain.CartLine{ProductID: items[i].(string), Qty: items[i+1].(int)})
	}

	return out
}

func TestResolveCartKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.GuestCartKey, cartsvc.ResolveCartKey(domain.GuestSession))
	assert.Equal(t, domain.CartKey("user:u1"), cartsvc.ResolveCartKey(domain.Session{UserID: "u1"}))
	assert.NotEqual(t,
		cartsvc.ResolveCartKey(domain.Session{UserID: "u1"}),
		cartsvc.ResolveCartKey(domain.Session{UserID: "u2"}),
	)
}

func TestCartService_GetCart(t *testing.T) {
	t.Parallel()

	svc, _, store := setupTestService(t)
	ctx := context.Background()

	cart := svc.GetCart(ctx, domain.GuestCartKey)
	assert.Equal(t, domain.Cart{Items: []domain.CartLine{}, UpdatedAt: testNow}, cart)

	raw, ok, err := store.Get(ctx, cartsvc.CartsKey)
	require.NoError(t, err)
	require.True(t, ok, "new cart must be persisted")
	assert.JSONEq(t, `{"guest":{"items":[],"updatedAt":1700000000000}}`, string(raw))

	svc.Now = func() time.Time { return time.UnixMilli(testNow + 1) }
	assert.Equal(t, cart, svc.GetCart(ctx, domain.GuestCartKey), "repeated access must not recreate the cart")
}

func TestCartService_AddLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		adds      []any // productID, qty pairs applied in order
		wantLines []domain.CartLine
		wantErr   error
	}{
		{name: "appends new line", adds: []any{"p1", 3}, wantLines: lines("p1", 3)},
		{name: "increments existing line", adds: []any{"p1", 3, "p1", 2}, wantLines: lines("p1", 5)},
		{name: "clamps new line to stock", adds: []any{"p1", 25}, wantLines: lines("p1", 10)},
		{name: "clamps increment to stock", adds: []any{"p1", 3, "p1", 20}, wantLines: lines("p1", 10)},
		{name: "keeps insertion order", adds: []any{"p2", 1, "p1", 1, "p2", 1}, wantLines: lines("p2", 2, "p1", 1)},
		{name: "zero qty is a no-op", adds: []any{"p1", 2, "p1", 0}, wantLines: lines("p1", 2)},
		{name: "negative qty is a no-op", adds: []any{"p1", -4}, wantLines: lines()},
		{name: "unknown product", adds: []any{"p1", 1, "p9", 1}, wantLines: lines("p1", 1), wantErr: domain.ErrNotFound},
		{name: "out of stock", adds: []any{"p3", 1}, wantLines: lines(), wantErr: domain.ErrOutOfStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _, _ := setupTestService(t)
			ctx := context.Background()

			var err error
			for i := 0; i < len(tt.adds); i += 2 {
				_, err = svc.AddLine(ctx, domain.GuestCartKey, tt.adds[i].(string), tt.adds[i+1].(int))
			}

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantLines, svc.GetCart(ctx, domain.GuestCartKey).Items)
		})
	}
}

func TestCartService_AddLineStockDropped(t *testing.T) {
	t.Parallel()

	svc, catalog, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.AddLine(ctx, domain.GuestCartKey, "p1", 8)
	require.NoError(t, err)

	catalog.set(domain.Product{ID: "p1", Price: 5, Stock: 4})

	cart, err := svc.AddLine(ctx, domain.GuestCartKey, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, lines("p1", 4), cart.Items)

	catalog.set(domain.Product{ID: "p1", Price: 5, Stock: 0})

	cart, err = svc.AddLine(ctx, domain.GuestCartKey, "p1", 1)
	require.NoError(t, err)
	assert.Empty(t, cart.Items, "a line clamped to zero must be removed")
}

func TestCartService_AddLineUpdatesTimestamp(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	svc.GetCart(ctx, domain.GuestCartKey)

	svc.Now = func() time.Time { return time.UnixMilli(testNow + 500) }

	cart, err := svc.AddLine(ctx, domain.GuestCartKey, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, testNow+500, cart.UpdatedAt)
}

func TestCartService_UpdateLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		productID string
		qty       int
		prepare   func(c *mockCatalog)
		wantLines []domain.CartLine
	}{
		{name: "sets quantity", productID: "p1", qty: 7, wantLines: lines("p1", 7, "p2", 1)},
		{name: "clamps to stock", productID: "p1", qty: 99, wantLines: lines("p1", 10, "p2", 1)},
		{name: "zero removes line", productID: "p1", qty: 0, wantLines: lines("p2", 1)},
		{name: "negative removes line", productID: "p2", qty: -3, wantLines: lines("p1", 3)},
		{name: "missing line is a no-op", productID: "p3", qty: 5, wantLines: lines("p1", 3, "p2", 1)},
		{
			name:      "deleted product keeps raw quantity",
			productID: "p1",
			qty:       42,
			prepare:   func(c *mockCatalog) { c.remove("p1") },
			wantLines: lines("p1", 42, "p2", 1),
		},
		{
			name:      "sold out product removes line",
			productID: "p1",
			qty:       2,
			prepare:   func(c *mockCatalog) { c.set(domain.Product{ID: "p1", Price: 5, Stock: 0}) },
			wantLines: lines("p2", 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, catalog, _ := setupTestService(t)
			ctx := context.Background()

			_, err := svc.AddLine(ctx, domain.GuestCartKey, "p1", 3)
			require.NoError(t, err)
			_, err = svc.AddLine(ctx, domain.GuestCartKey, "p2", 1)
			require.NoError(t, err)

			if tt.prepare != nil {
				tt.prepare(catalog)
			}

			cart, err := svc.UpdateLine(ctx, domain.GuestCartKey, tt.productID, tt.qty)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLines, cart.Items)
			assert.Equal(t, tt.wantLines, svc.GetCart(ctx, domain.GuestCartKey).Items)
		})
	}
}

func TestCartService_UpdateLineMissingCartNoWrite(t *testing.T) {
	t.Parallel()

	svc, _, store := setupTestService(t)
	ctx := context.Background()

	cart, err := svc.UpdateLine(ctx, domain.GuestCartKey, "p1", 3)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, ok, err := store.Get(ctx, cartsvc.CartsKey)
	require.NoError(t, err)
	assert.False(t, ok, "a no-op update must not write")
}

func TestCartService_Clear(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.AddLine(ctx, domain.GuestCartKey, "p1", 3)
	require.NoError(t, err)

	first, err := svc.Clear(ctx, domain.GuestCartKey)
	require.NoError(t, err)
	second, err := svc.Clear(ctx, domain.GuestCartKey)
	require.NoError(t, err)

	assert.Equal(t, domain.Cart{Items: []domain.CartLine{}, UpdatedAt: testNow}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, first, svc.GetCart(ctx, domain.GuestCartKey))
}

func TestCartService_IdentityIsolation(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	alice := cartsvc.ResolveCartKey(domain.Session{UserID: "alice"})
	bob := cartsvc.ResolveCartKey(domain.Session{UserID: "bob"})
	guest := cartsvc.ResolveCartKey(domain.GuestSession)

	_, err := svc.AddLine(ctx, alice, "p1", 2)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, bob, "p2", 1)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, guest, "p1", 5)
	require.NoError(t, err)

	_, err = svc.Clear(ctx, bob)
	require.NoError(t, err)
	_, err = svc.UpdateLine(ctx, guest, "p1", 0)
	require.NoError(t, err)

	assert.Equal(t, lines("p1", 2), svc.GetCart(ctx, alice).Items)
	assert.Empty(t, svc.GetCart(ctx, bob).Items)
	assert.Empty(t, svc.GetCart(ctx, guest).Items)
}

func TestCartService_ComputeTotals(t *testing.T) {
	t.Parallel()

	svc, catalog, _ := setupTestService(t)
	ctx := context.Background()

	totals, err := svc.ComputeTotals(ctx, domain.GuestCartKey)
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{Items: []domain.TotalsLine{}}, totals)

	_, err = svc.AddLine(ctx, domain.GuestCartKey, "p1", 3)
	require.NoError(t, err)

	totals, err = svc.ComputeTotals(ctx, domain.GuestCartKey)
	require.NoError(t, err)
	assert.Equal(t, 15.0, totals.Subtotal)
	assert.Equal(t, 7.99, totals.Shipping)
	assert.Equal(t, 1.05, totals.Tax)
	assert.Equal(t, 24.04, totals.Total)

	again, err := svc.ComputeTotals(ctx, domain.GuestCartKey)
	require.NoError(t, err)
	assert.Equal(t, totals, again, "totals must be a pure function of cart and catalog")

	catalog.set(domain.Product{ID: "p1", Price: 30, Stock: 10})

	totals, err = svc.ComputeTotals(ctx, domain.GuestCartKey)
	require.NoError(t, err)
	assert.Equal(t, 90.0, totals.Subtotal, "price edits must be reflected immediately")
	assert.Equal(t, 0.0, totals.Shipping)

	catalog.remove("p1")

	totals, err = svc.ComputeTotals(ctx, domain.GuestCartKey)
	require.NoError(t, err)
	require.Len(t, totals.Items, 1)
	assert.Nil(t, totals.Items[0].Product)
	assert.Equal(t, 0.0, totals.Items[0].LineTotal)

	catalog.err = errCatalogDown

	_, err = svc.ComputeTotals(ctx, domain.GuestCartKey)
	require.ErrorIs(t, err, errCatalogDown)
}

func TestCartService_Checkout(t *testing.T) {
	t.Parallel()

	t.Run("clears cart after successful fn", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := setupTestService(t)
		ctx := context.Background()

		_, err := svc.AddLine(ctx, domain.GuestCartKey, "p1", 3)
		require.NoError(t, err)

		var seen domain.Totals

		totals, err := svc.Checkout(ctx, domain.GuestCartKey, func(got domain.Totals) error {
			seen = got

			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, totals, seen)
		assert.Equal(t, 24.04, totals.Total)
		assert.Empty(t, svc.GetCart(ctx, domain.GuestCartKey).Items)
	})

	t.Run("keeps cart when fn fails", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := setupTestService(t)
		ctx := context.Background()

		_, err := svc.AddLine(ctx, domain.GuestCartKey, "p1", 3)
		require.NoError(t, err)

		failure := errors.New("payment declined")

		_, err = svc.Checkout(ctx, domain.GuestCartKey, func(domain.Totals) error { return failure })
		require.ErrorIs(t, err, failure)
		assert.Equal(t, lines("p1", 3), svc.GetCart(ctx, domain.GuestCartKey).Items)
	})

	t.Run("rejects empty cart", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := setupTestService(t)
		called := false

		_, err := svc.Checkout(context.Background(), domain.GuestCartKey, func(domain.Totals) error {
			called = true

			return nil
		})
		require.ErrorIs(t, err, domain.ErrEmptyCart)
		assert.False(t, called)
	})
}

func TestCartService_Subscribe(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	var counts []int

	unsubscribe := svc.Subscribe(func(_ context.Context, key domain.CartKey, cart domain.Cart) {
		assert.Equal(t, domain.GuestCartKey, key)
		counts = append(counts, cartsvc.ItemCount(cart))
	})

	_, _ = svc.AddLine(ctx, domain.GuestCartKey, "p1", 2)
	_, _ = svc.AddLine(ctx, domain.GuestCartKey, "p2", 3)
	_, _ = svc.AddLine(ctx, domain.GuestCartKey, "p1", 0) // no-op, no notification
	_, _ = svc.AddLine(ctx, domain.GuestCartKey, "p9", 1) // failure, no notification
	_, _ = svc.UpdateLine(ctx, domain.GuestCartKey, "p2", 1)
	_, _ = svc.Clear(ctx, domain.GuestCartKey)

	unsubscribe()

	_, _ = svc.AddLine(ctx, domain.GuestCartKey, "p1", 1)

	assert.Equal(t, []int{2, 5, 3, 0}, counts)
}

func TestCartService_ConcurrentAdds(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := svc.AddLine(ctx, domain.GuestCartKey, "p1", 1)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Equal(t, lines("p1", 10), svc.GetCart(ctx, domain.GuestCartKey).Items)
}

func TestCartService_DegradedStore(t *testing.T) {
	t.Parallel()

	svc, _, store := setupTestService(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, cartsvc.CartsKey, []byte(`not json`)))

	cart := svc.GetCart(ctx, domain.GuestCartKey)
	assert.Equal(t, domain.NewCart(testNow), cart)

	_, err := svc.AddLine(ctx, domain.GuestCartKey, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, lines("p1", 1), svc.GetCart(ctx, domain.GuestCartKey).Items)
}

func TestCartService_StoreFaultKeepsOtherCarts(t *testing.T) {
	t.Parallel()

	bob := cartsvc.ResolveCartKey(domain.Session{UserID: "bob"})

	tests := []struct {
		name    string
		op      func(ctx context.Context, svc *cartsvc.CartService) error
		wantErr bool
	}{
		{
			name: "add line",
			op: func(ctx context.Context, svc *cartsvc.CartService) error {
				_, err := svc.AddLine(ctx, domain.GuestCartKey, "p2", 1)

				return err
			},
			wantErr: true,
		},
		{
			name: "update line",
			op: func(ctx context.Context, svc *cartsvc.CartService) error {
				_, err := svc.UpdateLine(ctx, bob, "p1", 1)

				return err
			},
			wantErr: true,
		},
		{
			name: "clear",
			op: func(ctx context.Context, svc *cartsvc.CartService) error {
				_, err := svc.Clear(ctx, domain.GuestCartKey)

				return err
			},
			wantErr: true,
		},
		{
			name: "checkout",
			op: func(ctx context.Context, svc *cartsvc.CartService) error {
				_, err := svc.Checkout(ctx, bob, func(domain.Totals) error {
					return errors.New("checkout ran on unread carts")
				})

				return err
			},
			wantErr: true,
		},
		{
			name: "get cart of new key",
			op: func(ctx context.Context, svc *cartsvc.CartService) error {
				assert.Empty(t, svc.GetCart(ctx, domain.GuestCartKey).Items)

				return nil
			},
		},
		{
			name: "compute totals of new key",
			op: func(ctx context.Context, svc *cartsvc.CartService) error {
				totals, err := svc.ComputeTotals(ctx, domain.GuestCartKey)
				assert.Empty(t, totals.Items)

				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newFlakyStore()
			svc, _, _ := setupTestServiceWithStore(t, store)
			ctx := context.Background()

			_, err := svc.AddLine(ctx, bob, "p1", 4)
			require.NoError(t, err)

			var notified int

			svc.Subscribe(func(context.Context, domain.CartKey, domain.Cart) { notified++ })

			store.failGets(cartsvc.CartsKey, 1)

			err = tt.op(ctx, svc)
			if tt.wantErr {
				require.ErrorIs(t, err, errStoreTimeout)
			} else {
				require.NoError(t, err)
			}

			assert.Zero(t, notified)

			raw, ok, err := store.MemoryStore.Get(ctx, cartsvc.CartsKey)
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"user:bob":{"items":[{"productId":"p1","qty":4}],"updatedAt":1700000000000}}`, string(raw))
		})
	}
}
