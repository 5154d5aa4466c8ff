package ordersvc

import (
	"fmt"
	"net/http"

	"github.com/mkrupp/storefront/internal/domain"
	context_ "github.com/mkrupp/storefront/internal/infra/context"
	"github.com/mkrupp/storefront/internal/infra/logging"
	http_ "github.com/mkrupp/storefront/internal/infra/transport/http"
)

// HTTPTransport exposes checkout and order history over HTTP.
type HTTPTransport struct {
	orderSvc *OrderService
	log      logging.Logger
	mux      *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport for the given order service.
func NewHTTPTransport(orderSvc *OrderService) *HTTPTransport {
	ht := &HTTPTransport{
		orderSvc: orderSvc,
		log:      logging.GetLogger("svc.ordersvc.http_transport"),
		mux:      http.NewServeMux(),
	}

	ht.RegisterRoutes(ht.mux)

	return ht
}

// RegisterRoutes adds the order endpoints:
// - POST /checkout: Place an order from the session's cart
// - GET /orders: Orders visible to the session
// - GET /orders/{id}: One order.
func (ht *HTTPTransport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /checkout", http_.Handle(ht.log, "place order", ht.handleCheckout))
	mux.HandleFunc("GET /orders", http_.Handle(ht.log, "list orders", ht.handleList))
	mux.HandleFunc("GET /orders/{id}", http_.Handle(ht.log, "get order", ht.handleGet))
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

func (ht *HTTPTransport) handleCheckout(r *http.Request) (int, any, error) {
	var shipping domain.ShippingInfo
	if err := http_.ReadJSON(r, &shipping); err != nil {
		return 0, nil, err
	}

	order, err := ht.orderSvc.PlaceOrder(r.Context(), context_.SessionFromContext(r.Context()), shipping)
	if err != nil {
		return 0, nil, fmt.Errorf("place order: %w", err)
	}

	return http.StatusCreated, order, nil
}

func (ht *HTTPTransport) handleList(r *http.Request) (int, any, error) {
	orders, err := ht.orderSvc.Orders(r.Context(), context_.SessionFromContext(r.Context()))
	if err != nil {
		return 0, nil, fmt.Errorf("list orders: %w", err)
	}

	return http.StatusOK, orders, nil
}

func (ht *HTTPTransport) handleGet(r *http.Request) (int, any, error) {
	order, err := ht.orderSvc.Order(r.Context(), context_.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		return 0, nil, fmt.Errorf("get order: %w", err)
	}

	return http.StatusOK, order, nil
}
