package catalogsvc

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mkrupp/storefront/internal/domain"
	"github.com/mkrupp/storefront/internal/infra/logging"
	"github.com/mkrupp/storefront/internal/repo/kv"
)

// ProductsKey is the persisted key holding the product list.
const ProductsKey = "storefront:products:v1"

// AdminGuard checks that a session may administer the catalog.
type AdminGuard interface {
	RequireAdmin(ctx context.Context, session domain.Session) (domain.User, error)
}

// CatalogService provides product lookups and admin maintenance of the catalog.
type CatalogService struct {
	Config CatalogConfig
	Store  *kv.Adapter
	Admin  AdminGuard
	Log    logging.Logger

	flight singleflight.Group
	m      sync.Mutex
}

// NewCatalogService creates a new CatalogService. The seed catalog is parsed up
// front so a broken seed file fails at startup rather than on first access.
func NewCatalogService(store *kv.Adapter, admin AdminGuard, cfg CatalogConfig) (*CatalogService, error) {
	if _, err := cfg.SeedProducts(); err != nil {
		return nil, fmt.Errorf("load seed products: %w", err)
	}

	return &CatalogService{
		Config: cfg,
		Store:  store,
		Admin:  admin,
		Log:    logging.GetLogger("svc.catalogsvc.catalog_service"),
	}, nil
}

// List returns all products in catalog order, seeding the catalog on first access.
func (s *CatalogService) List(ctx context.Context) ([]domain.Product, error) {
	res := kv.Load(ctx, s.Store, ProductsKey, []domain.Product(nil))
	if res.Found {
		return res.Value, nil
	}

	if err := res.Fault(); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	// concurrent first accesses share one seeding
	v, err, _ := s.flight.Do(ProductsKey, func() (any, error) {
		s.m.Lock()
		defer s.m.Unlock()

		return s.loadLocked(ctx)
	})
	if err != nil {
		return nil, err
	}

	//nolint:forcetypeassert
	return slices.Clone(v.([]domain.Product)), nil
}

// Get returns the product with the given id.
// Returns a NotFoundError if no such product exists.
func (s *CatalogService) Get(ctx context.Context, id string) (domain.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	if i := indexOf(products, id); i >= 0 {
		return products[i], nil
	}

	return domain.Product{}, domain.NotFoundError{Entity: "product", ID: id}
}

// Upsert replaces the product with the same id or appends a new one.
// An empty id is replaced by a generated one. Requires an admin session.
func (s *CatalogService) Upsert(
	ctx context.Context,
	session domain.Session,
	product domain.Product,
) (_ domain.Product, err error) {
	log := s.Log.With(logging.Group("product", "id", product.ID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "upsert product failed", "error", err)
		} else {
			log.InfoContext(ctx, "product upserted", "stored_id", product.ID)
		}
	}()

	if _, err := s.Admin.RequireAdmin(ctx, session); err != nil {
		return domain.Product{}, fmt.Errorf("require admin: %w", err)
	}

	if err := product.Validate(); err != nil {
		return domain.Product{}, fmt.Errorf("validate product: %w", err)
	}

	if product.ID == "" {
		product.ID = newProductID()
	}

	if product.Tags == nil {
		product.Tags = []string{}
	}

	s.m.Lock()
	defer s.m.Unlock()

	products, err := s.loadLocked(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	if i := indexOf(products, product.ID); i >= 0 {
		products[i] = product
	} else {
		products = append(products, product)
	}

	s.Store.Set(ctx, ProductsKey, products)

	return product, nil
}

// Remove deletes the product with the given id. Removing an unknown id is a no-op.
// Requires an admin session. Cart lines referencing the product are kept.
func (s *CatalogService) Remove(ctx context.Context, session domain.Session, id string) (err error) {
	log := s.Log.With(logging.Group("product", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "remove product failed", "error", err)
		} else {
			log.InfoContext(ctx, "product removed")
		}
	}()

	if _, err := s.Admin.RequireAdmin(ctx, session); err != nil {
		return fmt.Errorf("require admin: %w", err)
	}

	s.m.Lock()
	defer s.m.Unlock()

	products, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}

	s.Store.Set(ctx, ProductsKey, slices.DeleteFunc(products, func(p domain.Product) bool {
		return p.ID == id
	}))

	return nil
}

// loadLocked reads the product list, writing the seed catalog when nothing
// readable is stored. A store fault never seeds. Callers must hold s.m.
func (s *CatalogService) loadLocked(ctx context.Context) ([]domain.Product, error) {
	res := kv.Load(ctx, s.Store, ProductsKey, []domain.Product(nil))
	if res.Found {
		return res.Value, nil
	}

	if err := res.Fault(); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	products, err := s.Config.SeedProducts()
	if err != nil {
		return nil, fmt.Errorf("load seed products: %w", err)
	}

	s.Store.Set(ctx, ProductsKey, products)

	s.Log.InfoContext(ctx, "catalog seeded", "products", len(products), "degraded", res.Degraded())

	return products, nil
}

func indexOf(products []domain.Product, id string) int {
	return slices.IndexFunc(products, func(p domain.Product) bool {
		return p.ID == id
	})
}

func newProductID() string {
	return "p-" + uuid.NewString()[:8]
}
