package catalogsvc

import (
	"fmt"
	"net/http"

	"github.com/mkrupp/storefront/internal/domain"
	context_ "github.com/mkrupp/storefront/internal/infra/context"
	"github.com/mkrupp/storefront/internal/infra/logging"
	http_ "github.com/mkrupp/storefront/internal/infra/transport/http"
)

// HTTPTransport exposes the catalog over HTTP.
type HTTPTransport struct {
	catalogSvc *CatalogService
	log        logging.Logger
	mux        *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport for the given catalog service.
func NewHTTPTransport(catalogSvc *CatalogService) *HTTPTransport {
	ht := &HTTPTransport{
		catalogSvc: catalogSvc,
		log:        logging.GetLogger("svc.catalogsvc.http_transport"),
		mux:        http.NewServeMux(),
	}

	ht.RegisterRoutes(ht.mux)

	return ht
}

// RegisterRoutes adds the catalog endpoints:
// - GET /products: List products
// - GET /products/{id}: Get one product
// - POST /admin/products: Create a product
// - PUT /admin/products/{id}: Replace a product
// - DELETE /admin/products/{id}: Remove a product.
func (ht *HTTPTransport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", http_.Handle(ht.log, "list products", ht.handleList))
	mux.HandleFunc("GET /products/{id}", http_.Handle(ht.log, "get product", ht.handleGet))
	mux.HandleFunc("POST /admin/products", http_.Handle(ht.log, "create product", ht.handleUpsert))
	mux.HandleFunc("PUT /admin/products/{id}", http_.Handle(ht.log, "update product", ht.handleUpsert))
	mux.HandleFunc("DELETE /admin/products/{id}", http_.Handle(ht.log, "remove product", ht.handleRemove))
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

func (ht *HTTPTransport) handleList(r *http.Request) (int, any, error) {
	products, err := ht.catalogSvc.List(r.Context())
	if err != nil {
		return 0, nil, fmt.Errorf("list products: %w", err)
	}

	return http.StatusOK, products, nil
}

func (ht *HTTPTransport) handleGet(r *http.Request) (int, any, error) {
	product, err := ht.catalogSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return 0, nil, fmt.Errorf("get product: %w", err)
	}

	return http.StatusOK, product, nil
}

// handleUpsert creates or replaces a product from the JSON body.
// On PUT the {id} path value wins over any id in the body.
func (ht *HTTPTransport) handleUpsert(r *http.Request) (int, any, error) {
	var product domain.Product
	if err := http_.ReadJSON(r, &product); err != nil {
		return 0, nil, err
	}

	status := http.StatusCreated
	if id := r.PathValue("id"); id != "" {
		product.ID = id
		status = http.StatusOK
	}

	product, err := ht.catalogSvc.Upsert(r.Context(), context_.SessionFromContext(r.Context()), product)
	if err != nil {
		return 0, nil, fmt.Errorf("upsert product: %w", err)
	}

	return status, product, nil
}

func (ht *HTTPTransport) handleRemove(r *http.Request) (int, any, error) {
	if err := ht.catalogSvc.Remove(r.Context(), context_.SessionFromContext(r.Context()), r.PathValue("id")); err != nil {
		return 0, nil, fmt.Errorf("remove product: %w", err)
	}

	return http.StatusNoContent, nil, nil
}
