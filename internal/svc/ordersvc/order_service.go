package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/storefront/internal/domain"
	"github.com/mkrupp/storefront/internal/infra/logging"
	"github.com/mkrupp/storefront/internal/repo/kv"
	"github.com/mkrupp/storefront/internal/svc/cartsvc"
	"github.com/mkrupp/storefront/internal/util/encoding"
)

const (
	// OrdersKey is the persisted key holding the append-only order log.
	OrdersKey = "storefront:orders:v1"

	// OrderIDPrefix starts every order id.
	OrderIDPrefix = "ord_"
)

// Checkout is the cart engine operation an order is recorded through.
type Checkout interface {
	Checkout(ctx context.Context, key domain.CartKey, fn func(domain.Totals) error) (domain.Totals, error)
}

// AdminGuard decides whether a session may see every order.
type AdminGuard interface {
	RequireAdmin(ctx context.Context, session domain.Session) (domain.User, error)
}

// EventPublisher announces placed orders to other systems.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
}

// NopPublisher discards all events.
type NopPublisher struct{}

var _ EventPublisher = NopPublisher{}

// PublishOrderPlaced implements EventPublisher.
func (NopPublisher) PublishOrderPlaced(context.Context, domain.Order) error {
	return nil
}

// OrderService records checkouts as immutable orders.
type OrderService struct {
	Store  *kv.Adapter
	Cart   Checkout
	Admin  AdminGuard
	Events EventPublisher
	Log    logging.Logger
	Now    func() time.Time
	NewID  func() (uuid.UUID, error)

	m sync.Mutex
}

// NewOrderService creates a new OrderService. A nil events publisher disables events.
func NewOrderService(store *kv.Adapter, cart Checkout, admin AdminGuard, events EventPublisher) *OrderService {
	if events == nil {
		events = NopPublisher{}
	}

	return &OrderService{
		Store:  store,
		Cart:   cart,
		Admin:  admin,
		Events: events,
		Log:    logging.GetLogger("svc.ordersvc.order_service"),
		Now:    time.Now,
		NewID:  uuid.NewV7,
	}
}

// PlaceOrder checks out the session's cart into a new paid order.
// The order is appended to the order log before the cart is cleared; if the
// cart is empty, the shipping info is incomplete or the order log cannot be
// read, nothing is written.
func (s *OrderService) PlaceOrder(
	ctx context.Context,
	session domain.Session,
	shipping domain.ShippingInfo,
) (_ domain.Order, err error) {
	key := cartsvc.ResolveCartKey(session)
	log := s.Log.With(logging.Group("order", "cart", key))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "place order failed", "error", err)
		}
	}()

	if err := shipping.Validate(); err != nil {
		return domain.Order{}, fmt.Errorf("validate shipping: %w", err)
	}

	id, err := s.NewID()
	if err != nil {
		return domain.Order{}, fmt.Errorf("generate order id: %w", err)
	}

	var order domain.Order

	_, err = s.Cart.Checkout(ctx, key, func(totals domain.Totals) error {
		order = domain.Order{
			ID:        OrderIDPrefix + encoding.EncodeCrockfordB32LC(id[:]),
			UserID:    userID(session),
			Items:     orderItems(totals),
			Amounts:   totals,
			Shipping:  shipping,
			CreatedAt: s.Now().UnixMilli(),
			Status:    domain.OrderStatusPaid,
		}

		s.m.Lock()
		defer s.m.Unlock()

		orders, err := s.ordersLocked(ctx)
		if err != nil {
			return err
		}

		s.Store.Set(ctx, OrdersKey, append(orders, order))

		return nil
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("checkout: %w", err)
	}

	log.InfoContext(ctx, "order placed", "id", order.ID, "total", order.Amounts.Total)

	if err := s.Events.PublishOrderPlaced(ctx, order); err != nil {
		log.WarnContext(ctx, "publish order placed failed", "id", order.ID, "error", err)
	}

	return order, nil
}

// Orders returns the orders visible to the session in placement order.
// Admins see every order, everyone else the orders placed under their identity.
func (s *OrderService) Orders(ctx context.Context, session domain.Session) ([]domain.Order, error) {
	admin, err := s.isAdmin(ctx, session)
	if err != nil {
		return nil, err
	}

	orders, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	if admin {
		return orders, nil
	}

	return slices.DeleteFunc(orders, func(o domain.Order) bool { return !o.PlacedBy(session) }), nil
}

// Order returns one order visible to the session. The id is matched after
// Crockford normalization, so "ORD_01J..." and "ord_01j..." are the same order.
func (s *OrderService) Order(ctx context.Context, session domain.Session, id string) (domain.Order, error) {
	orders, err := s.Orders(ctx, session)
	if err != nil {
		return domain.Order{}, err
	}

	want := normalizeOrderID(id)

	for _, order := range orders {
		if want != "" && order.ID == want {
			return order, nil
		}
	}

	return domain.Order{}, domain.NotFoundError{Entity: "order", ID: id}
}

// All returns the full order log.
func (s *OrderService) All(ctx context.Context) ([]domain.Order, error) {
	s.m.Lock()
	defer s.m.Unlock()

	return s.ordersLocked(ctx)
}

func (s *OrderService) isAdmin(ctx context.Context, session domain.Session) (bool, error) {
	if session.IsGuest() || s.Admin == nil {
		return false, nil
	}

	_, err := s.Admin.RequireAdmin(ctx, session)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrAdminRequired):
		return false, nil
	default:
		return false, fmt.Errorf("require admin: %w", err)
	}
}

// ordersLocked reads the order log. A corrupt log reads as empty; a store
// fault is returned so the log is never rewritten from nothing.
func (s *OrderService) ordersLocked(ctx context.Context) ([]domain.Order, error) {
	res := kv.Load(ctx, s.Store, OrdersKey, []domain.Order{})
	if err := res.Fault(); err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	if res.Value == nil {
		return []domain.Order{}, nil
	}

	return res.Value, nil
}

func normalizeOrderID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) < len(OrderIDPrefix) || !strings.EqualFold(id[:len(OrderIDPrefix)], OrderIDPrefix) {
		return ""
	}

	return OrderIDPrefix + encoding.NormalizeCrockfordB32LC(id[len(OrderIDPrefix):])
}

func userID(session domain.Session) *string {
	if session.IsGuest() {
		return nil
	}

	id := session.UserID

	return &id
}

// orderItems freezes the priced lines. Lines of deleted products are kept at price 0.
func orderItems(totals domain.Totals) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(totals.Items))

	for _, line := range totals.Items {
		item := domain.OrderItem{ID: line.ProductID, Qty: line.Qty}
		if line.Product != nil {
			item.Price = line.Product.Price
		}

		items = append(items, item)
	}

	return items
}
