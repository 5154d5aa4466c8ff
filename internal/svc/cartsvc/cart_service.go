package cartsvc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mkrupp/storefront/internal/domain"
	"github.com/mkrupp/storefront/internal/infra/logging"
	"github.com/mkrupp/storefront/internal/repo/kv"
)

// CartsKey is the persisted key holding all carts, keyed by cart key.
const CartsKey = "storefront:carts:v1"

// Catalog is the read side of the product catalog used for pricing and stock.
type Catalog interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

// Observer is notified after every committed cart mutation,
// e.g. to refresh a cart badge.
type Observer func(ctx context.Context, key domain.CartKey, cart domain.Cart)

// CartService owns the per-identity carts and derives their totals.
// Every public operation reads the full carts document, applies its change and
// writes it back while holding the service lock.
type CartService struct {
	Pricing PricingConfig
	Store   *kv.Adapter
	Catalog Catalog
	Log     logging.Logger
	Now     func() time.Time

	m         sync.Mutex
	observers map[int]Observer
	nextObs   int
	obsLock   sync.RWMutex
}

// NewCartService creates a new CartService.
func NewCartService(store *kv.Adapter, catalog Catalog, pricing PricingConfig) *CartService {
	return &CartService{
		Pricing:   pricing,
		Store:     store,
		Catalog:   catalog,
		Log:       logging.GetLogger("svc.cartsvc.cart_service"),
		Now:       time.Now,
		observers: make(map[int]Observer),
	}
}

// ResolveCartKey returns the cart key of the given session.
func ResolveCartKey(session domain.Session) domain.CartKey {
	if session.IsGuest() {
		return domain.GuestCartKey
	}

	return domain.UserCartKey(session.UserID)
}

// ItemCount returns the number of items in cart, as shown on the cart badge.
func ItemCount(cart domain.Cart) int {
	return cart.ItemCount()
}

// Subscribe registers an observer and returns a function that removes it.
func (s *CartService) Subscribe(observer Observer) (unsubscribe func()) {
	s.obsLock.Lock()
	defer s.obsLock.Unlock()

	if s.observers == nil {
		s.observers = make(map[int]Observer)
	}

	id := s.nextObs
	s.nextObs++
	s.observers[id] = observer

	return func() {
		s.obsLock.Lock()
		defer s.obsLock.Unlock()

		delete(s.observers, id)
	}
}

// GetCart returns the cart for key, creating and persisting an empty one on first access.
// If the carts cannot be read an empty cart is returned and nothing is written.
func (s *CartService) GetCart(ctx context.Context, key domain.CartKey) domain.Cart {
	s.m.Lock()
	defer s.m.Unlock()

	cart, err := s.ensureLocked(ctx, key)
	if err != nil {
		return domain.NewCart(s.Now().UnixMilli())
	}

	return cart.Clone()
}

// AddLine adds qty units of a product, clamping the line to the product's stock.
// Returns a NotFoundError for unknown products and ErrOutOfStock when a new line
// would be empty. A qty <= 0 leaves the cart unchanged.
func (s *CartService) AddLine(
	ctx context.Context,
	key domain.CartKey,
	productID string,
	qty int,
) (_ domain.Cart, err error) {
	log := s.Log.With(logging.Group("cart", "key", key, "product", productID, "qty", qty))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "add line failed", "error", err)
		} else {
			log.DebugContext(ctx, "line added")
		}
	}()

	return s.mutate(ctx, key, func(cart *domain.Cart) (bool, error) {
		product, err := s.Catalog.Get(ctx, productID)
		if err != nil {
			return false, fmt.Errorf("get product: %w", err)
		}

		if qty <= 0 {
			return false, nil
		}

		i := cart.Line(productID)
		if i < 0 {
			n := min(qty, product.Stock)
			if n <= 0 {
				return false, domain.ErrOutOfStock
			}

			cart.Items = append(cart.Items, domain.CartLine{ProductID: productID, Qty: n})

			return true, nil
		}

		// stock may have dropped below the line since it was added
		if n := min(cart.Items[i].Qty+qty, product.Stock); n > 0 {
			cart.Items[i].Qty = n
		} else {
			cart.Items = slices.Delete(cart.Items, i, i+1)
		}

		return true, nil
	})
}

// UpdateLine sets the quantity of an existing line, clamped to [0, stock].
// A quantity of 0 removes the line. If the product was deleted from the catalog
// the quantity is kept as given. Without a line for productID the cart is
// returned unchanged.
func (s *CartService) UpdateLine(
	ctx context.Context,
	key domain.CartKey,
	productID string,
	qty int,
) (_ domain.Cart, err error) {
	log := s.Log.With(logging.Group("cart", "key", key, "product", productID, "qty", qty))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "update line failed", "error", err)
		} else {
			log.DebugContext(ctx, "line updated")
		}
	}()

	qty = max(qty, 0)

	return s.mutate(ctx, key, func(cart *domain.Cart) (bool, error) {
		i := cart.Line(productID)
		if i < 0 {
			return false, nil
		}

		if qty > 0 {
			product, err := s.Catalog.Get(ctx, productID)

			switch {
			case err == nil:
				qty = min(qty, product.Stock)
			case errors.Is(err, domain.ErrNotFound):
			default:
				return false, fmt.Errorf("get product: %w", err)
			}
		}

		if qty == 0 {
			cart.Items = slices.Delete(cart.Items, i, i+1)
		} else {
			cart.Items[i].Qty = qty
		}

		return true, nil
	})
}

// Clear resets the cart for key to an empty cart.
func (s *CartService) Clear(ctx context.Context, key domain.CartKey) (_ domain.Cart, err error) {
	log := s.Log.With(logging.Group("cart", "key", key))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "clear cart failed", "error", err)
		} else {
			log.DebugContext(ctx, "cart cleared")
		}
	}()

	return s.mutate(ctx, key, func(cart *domain.Cart) (bool, error) {
		cart.Items = []domain.CartLine{}

		return true, nil
	})
}

// ComputeTotals prices the cart for key against the current catalog.
// If the carts cannot be read an empty cart is priced and nothing is written.
func (s *CartService) ComputeTotals(ctx context.Context, key domain.CartKey) (domain.Totals, error) {
	s.m.Lock()
	defer s.m.Unlock()

	cart, err := s.ensureLocked(ctx, key)
	if err != nil {
		cart = domain.NewCart(s.Now().UnixMilli())
	}

	return s.totalsLocked(ctx, cart)
}

// Checkout prices the cart for key, passes the totals to fn and clears the cart
// if fn succeeds, all without releasing the service lock. Returns ErrEmptyCart
// for carts without lines; fn is not called then.
func (s *CartService) Checkout(
	ctx context.Context,
	key domain.CartKey,
	fn func(domain.Totals) error,
) (_ domain.Totals, err error) {
	log := s.Log.With(logging.Group("cart", "key", key))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "checkout failed", "error", err)
		} else {
			log.InfoContext(ctx, "checked out")
		}
	}()

	s.m.Lock()

	carts, err := s.cartsLocked(ctx)
	if err != nil {
		s.m.Unlock()

		return domain.Totals{}, err
	}

	cart := carts[key]
	if len(cart.Items) == 0 {
		s.m.Unlock()

		return domain.Totals{}, domain.ErrEmptyCart
	}

	totals, err := s.totalsLocked(ctx, cart)
	if err != nil {
		s.m.Unlock()

		return domain.Totals{}, err
	}

	if err := fn(totals); err != nil {
		s.m.Unlock()

		return domain.Totals{}, err
	}

	cleared := domain.NewCart(s.Now().UnixMilli())
	carts[key] = cleared
	s.Store.Set(ctx, CartsKey, carts)

	s.m.Unlock()

	s.notify(ctx, key, cleared)

	return totals, nil
}

// mutate applies fn to the cart for key under the service lock. The cart is
// written back and observers are notified only if fn reports a change.
// A failing fn leaves the stored carts untouched.
func (s *CartService) mutate(
	ctx context.Context,
	key domain.CartKey,
	fn func(cart *domain.Cart) (changed bool, err error),
) (domain.Cart, error) {
	s.m.Lock()

	carts, err := s.cartsLocked(ctx)
	if err != nil {
		s.m.Unlock()

		return domain.Cart{}, err
	}

	cart, ok := carts[key]
	if !ok {
		cart = domain.NewCart(s.Now().UnixMilli())
	}

	cart = cart.Clone()

	changed, err := fn(&cart)
	if err != nil {
		s.m.Unlock()

		return domain.Cart{}, err
	}

	if !changed {
		s.m.Unlock()

		return cart, nil
	}

	cart.UpdatedAt = s.Now().UnixMilli()
	carts[key] = cart
	s.Store.Set(ctx, CartsKey, carts)

	s.m.Unlock()

	s.notify(ctx, key, cart.Clone())

	return cart, nil
}

// ensureLocked returns the cart for key, persisting a new empty one if absent.
func (s *CartService) ensureLocked(ctx context.Context, key domain.CartKey) (domain.Cart, error) {
	carts, err := s.cartsLocked(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	if cart, ok := carts[key]; ok {
		return cart, nil
	}

	cart := domain.NewCart(s.Now().UnixMilli())
	carts[key] = cart
	s.Store.Set(ctx, CartsKey, carts)

	return cart, nil
}

// cartsLocked reads every stored cart. A corrupt document reads as no carts;
// a failing store is an error so that no caller writes over carts it did not read.
func (s *CartService) cartsLocked(ctx context.Context) (map[domain.CartKey]domain.Cart, error) {
	res := kv.Load(ctx, s.Store, CartsKey, map[domain.CartKey]domain.Cart{})
	if err := res.Fault(); err != nil {
		return nil, fmt.Errorf("load carts: %w", err)
	}

	carts := res.Value
	if carts == nil {
		carts = make(map[domain.CartKey]domain.Cart)
	}

	for key, cart := range carts {
		if cart.Items == nil {
			cart.Items = []domain.CartLine{}
			carts[key] = cart
		}
	}

	return carts, nil
}

func (s *CartService) totalsLocked(ctx context.Context, cart domain.Cart) (domain.Totals, error) {
	products, err := s.Catalog.List(ctx)
	if err != nil {
		return domain.Totals{}, fmt.Errorf("list products: %w", err)
	}

	index := make(map[string]domain.Product, len(products))
	for _, product := range products {
		index[product.ID] = product
	}

	return s.Pricing.Totals(cart, index), nil
}

func (s *CartService) notify(ctx context.Context, key domain.CartKey, cart domain.Cart) {
	s.obsLock.RLock()
	observers := make([]Observer, 0, len(s.observers))

	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.obsLock.RUnlock()

	for _, observer := range observers {
		observer(ctx, key, cart)
	}
}
