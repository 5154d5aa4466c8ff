package cartsvc

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/mkrupp/storefront/internal/domain"
)

// PricingConfig holds the shipping and tax rules applied to cart totals.
type PricingConfig struct {
	// FreeShippingOver is the subtotal above which shipping is free
	FreeShippingOver float64 `env:"FREE_SHIPPING_OVER" default:"75"`
	// FlatShipping is charged for non-empty carts at or below FreeShippingOver
	FlatShipping float64 `env:"FLAT_SHIPPING" default:"7.99"`
	// TaxRate is applied to the subtotal
	TaxRate float64 `env:"TAX_RATE" default:"0.07"`
}

// DefaultPricing returns the storefront's standard pricing rules.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		FreeShippingOver: 75,
		FlatShipping:     7.99,
		TaxRate:          0.07,
	}
}

// Totals prices cart against the given products, keyed by id.
//
// Lines whose product is missing stay listed with a nil product and a zero line
// total. Shipping is free for an empty subtotal or one above FreeShippingOver.
// The subtotal is a float64 sum of line totals in cart order. Only tax and
// total are rounded to cents, from the exact value of the binary float, with
// ties going up.
func (cfg PricingConfig) Totals(cart domain.Cart, products map[string]domain.Product) domain.Totals {
	totals := domain.Totals{Items: make([]domain.TotalsLine, 0, len(cart.Items))}

	var subtotal float64

	for _, line := range cart.Items {
		item := domain.TotalsLine{ProductID: line.ProductID, Qty: line.Qty}

		if product, ok := products[line.ProductID]; ok {
			item.Product = &product
			item.LineTotal = product.Price * float64(line.Qty)
			subtotal += item.LineTotal
		}

		totals.Items = append(totals.Items, item)
	}

	shipping := cfg.FlatShipping
	if subtotal == 0 || subtotal > cfg.FreeShippingOver {
		shipping = 0
	}

	tax := roundCents(subtotal * cfg.TaxRate)

	totals.Subtotal = subtotal
	totals.Shipping = shipping
	totals.Tax = tax
	totals.Total = roundCents(subtotal + shipping + tax)

	return totals
}

// roundCents rounds f to two places. 118.5*0.07 is stored as 8.29499..., so
// it rounds to 8.29 and not 8.30.
func roundCents(f float64) float64 {
	return exactDecimal(f).Round(2).InexactFloat64()
}

// exactDecimal returns the decimal expansion of f without loss. Every finite
// float64 is n/2^k, which equals n*5^k/10^k.
func exactDecimal(f float64) decimal.Decimal {
	r := new(big.Rat).SetFloat64(f)
	if r == nil {
		return decimal.Zero
	}

	k := r.Denom().BitLen() - 1
	scale := new(big.Int).Exp(big.NewInt(5), big.NewInt(int64(k)), nil)

	return decimal.NewFromBigInt(scale.Mul(scale, r.Num()), int32(-k))
}
