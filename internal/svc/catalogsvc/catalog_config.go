package catalogsvc

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkrupp/storefront/internal/domain"
)

//go:embed seed/products.yaml
var defaultSeed []byte

// CatalogConfig contains configuration parameters for the catalog service.
type CatalogConfig struct {
	// SeedFile replaces the built-in seed catalog with a YAML list of products
	SeedFile string `env:"SEED_FILE" default:""`
}

// SeedProducts returns the products written to an empty catalog.
func (cfg CatalogConfig) SeedProducts() ([]domain.Product, error) {
	data := defaultSeed

	if cfg.SeedFile != "" {
		var err error

		data, err = os.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
	}

	return parseSeed(data)
}

func parseSeed(data []byte) ([]domain.Product, error) {
	var products []domain.Product
	if err := yaml.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	for i, product := range products {
		if product.ID == "" {
			return nil, fmt.Errorf("seed product %d: %w", i, domain.ValidationError{Field: "id", Reason: "must not be empty"})
		}

		if err := product.Validate(); err != nil {
			return nil, fmt.Errorf("seed product %s: %w", product.ID, err)
		}

		if product.Tags == nil {
			products[i].Tags = []string{}
		}
	}

	if products == nil {
		products = []domain.Product{}
	}

	return products, nil
}
