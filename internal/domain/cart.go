package domain

// GuestCartKey selects the cart of unauthenticated visitors.
const GuestCartKey CartKey = "guest"

// CartKey is the isolation boundary of a cart: every identity sees and mutates
// only the cart stored under its own key.
type CartKey string

// UserCartKey returns the cart key of an authenticated user.
func UserCartKey(userID string) CartKey {
	return CartKey("user:" + userID)
}

// String returns the string representation of the CartKey.
func (k CartKey) String() string {
	return string(k)
}

// CartLine is one product/quantity pair. Qty is always > 0 once stored.
type CartLine struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// Cart holds lines in insertion order, at most one per product.
type Cart struct {
	Items     []CartLine `json:"items"`
	UpdatedAt int64      `json:"updatedAt"` // Unix milliseconds of the last mutation
}

// NewCart returns an empty cart stamped with the given time.
func NewCart(now int64) Cart {
	return Cart{Items: []CartLine{}, UpdatedAt: now}
}

// Line returns the index of the line for productID, or -1.
func (c Cart) Line(productID string) int {
	for i, line := range c.Items {
		if line.ProductID == productID {
			return i
		}
	}

	return -1
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	items := make([]CartLine, len(c.Items))
	copy(items, c.Items)

	return Cart{Items: items, UpdatedAt: c.UpdatedAt}
}

// ItemCount returns the sum of all line quantities, as shown on the cart badge.
func (c Cart) ItemCount() int {
	var n int
	for _, line := range c.Items {
		n += line.Qty
	}

	return n
}
