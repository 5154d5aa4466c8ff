package cartsvc

import (
	"fmt"
	"net/http"

	"github.com/mkrupp/storefront/internal/domain"
	context_ "github.com/mkrupp/storefront/internal/infra/context"
	"github.com/mkrupp/storefront/internal/infra/logging"
	http_ "github.com/mkrupp/storefront/internal/infra/transport/http"
)

// AddLineRequest is the body of POST /cart/items. Qty defaults to 1.
type AddLineRequest struct {
	ProductID string `json:"productId"`
	Qty       *int   `json:"qty"`
}

// UpdateLineRequest is the body of PUT /cart/items/{productId}.
type UpdateLineRequest struct {
	Qty int `json:"qty"`
}

// CountResponse is the body of GET /cart/count.
type CountResponse struct {
	Count int `json:"count"`
}

// HTTPTransport exposes the cart of the requesting session over HTTP.
type HTTPTransport struct {
	cartSvc *CartService
	log     logging.Logger
	mux     *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport for the given cart service.
func NewHTTPTransport(cartSvc *CartService) *HTTPTransport {
	ht := &HTTPTransport{
		cartSvc: cartSvc,
		log:     logging.GetLogger("svc.cartsvc.http_transport"),
		mux:     http.NewServeMux(),
	}

	ht.RegisterRoutes(ht.mux)

	return ht
}

// RegisterRoutes adds the cart endpoints:
// - GET /cart: Current cart
// - GET /cart/totals: Priced cart
// - GET /cart/count: Badge count
// - POST /cart/items: Add a line
// - PUT /cart/items/{productId}: Set a line's quantity
// - DELETE /cart/items/{productId}: Remove a line
// - DELETE /cart: Clear the cart.
func (ht *HTTPTransport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /cart", http_.Handle(ht.log, "get cart", ht.handleGet))
	mux.HandleFunc("GET /cart/totals", http_.Handle(ht.log, "compute totals", ht.handleTotals))
	mux.HandleFunc("GET /cart/count", http_.Handle(ht.log, "count items", ht.handleCount))
	mux.HandleFunc("POST /cart/items", http_.Handle(ht.log, "add line", ht.handleAdd))
	mux.HandleFunc("PUT /cart/items/{productId}", http_.Handle(ht.log, "update line", ht.handleUpdate))
	mux.HandleFunc("DELETE /cart/items/{productId}", http_.Handle(ht.log, "remove line", ht.handleRemove))
	mux.HandleFunc("DELETE /cart", http_.Handle(ht.log, "clear cart", ht.handleClear))
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

func cartKey(r *http.Request) domain.CartKey {
	return ResolveCartKey(context_.SessionFromContext(r.Context()))
}

func (ht *HTTPTransport) handleGet(r *http.Request) (int, any, error) {
	return http.StatusOK, ht.cartSvc.GetCart(r.Context(), cartKey(r)), nil
}

func (ht *HTTPTransport) handleTotals(r *http.Request) (int, any, error) {
	totals, err := ht.cartSvc.ComputeTotals(r.Context(), cartKey(r))
	if err != nil {
		return 0, nil, fmt.Errorf("compute totals: %w", err)
	}

	return http.StatusOK, totals, nil
}

func (ht *HTTPTransport) handleCount(r *http.Request) (int, any, error) {
	return http.StatusOK, CountResponse{Count: ItemCount(ht.cartSvc.GetCart(r.Context(), cartKey(r)))}, nil
}

func (ht *HTTPTransport) handleAdd(r *http.Request) (int, any, error) {
	var req AddLineRequest
	if err := http_.ReadJSON(r, &req); err != nil {
		return 0, nil, err
	}

	qty := 1
	if req.Qty != nil {
		qty = *req.Qty
	}

	cart, err := ht.cartSvc.AddLine(r.Context(), cartKey(r), req.ProductID, qty)
	if err != nil {
		return 0, nil, fmt.Errorf("add line: %w", err)
	}

	return http.StatusOK, cart, nil
}

func (ht *HTTPTransport) handleUpdate(r *http.Request) (int, any, error) {
	var req UpdateLineRequest
	if err := http_.ReadJSON(r, &req); err != nil {
		return 0, nil, err
	}

	cart, err := ht.cartSvc.UpdateLine(r.Context(), cartKey(r), r.PathValue("productId"), req.Qty)
	if err != nil {
		return 0, nil, fmt.Errorf("update line: %w", err)
	}

	return http.StatusOK, cart, nil
}

func (ht *HTTPTransport) handleRemove(r *http.Request) (int, any, error) {
	cart, err := ht.cartSvc.UpdateLine(r.Context(), cartKey(r), r.PathValue("productId"), 0)
	if err != nil {
		return 0, nil, fmt.Errorf("remove line: %w", err)
	}

	return http.StatusOK, cart, nil
}

func (ht *HTTPTransport) handleClear(r *http.Request) (int, any, error) {
	cart, err := ht.cartSvc.Clear(r.Context(), cartKey(r))
	if err != nil {
		return 0, nil, fmt.Errorf("clear cart: %w", err)
	}

	return http.StatusOK, cart, nil
}
