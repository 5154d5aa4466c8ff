package domain

// TotalsLine is a cart line enriched with its product and line total.
// Product is nil when the product no longer exists; LineTotal is then 0.
type TotalsLine struct {
	ProductID string   `json:"productId"`
	Qty       int      `json:"qty"`
	Product   *Product `json:"product"`
	LineTotal float64  `json:"lineTotal"`
}

// Totals is the pricing breakdown of a cart. It is derived on every read
// and never stored on its own.
type Totals struct {
	Items    []TotalsLine `json:"items"`
	Subtotal float64      `json:"subtotal"`
	Shipping float64      `json:"shipping"`
	Tax      float64      `json:"tax"`
	Total    float64      `json:"total"`
}
