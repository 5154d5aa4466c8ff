package domain

// OrderStatusPaid is the simulated status of every placed order.
const OrderStatusPaid = "paid"

// ShippingInfo is the address captured at checkout.
type ShippingInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// Validate checks that the fields needed to ship are present.
func (s ShippingInfo) Validate() error {
	switch {
	case s.Name == "":
		return ValidationError{Field: "name", Reason: "must not be empty"}
	case s.Email == "":
		return ValidationError{Field: "email", Reason: "must not be empty"}
	case s.Address == "":
		return ValidationError{Field: "address", Reason: "must not be empty"}
	}

	return nil
}

// OrderItem is a frozen copy of a priced cart line.
type OrderItem struct {
	ID    string  `json:"id"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// Order is an immutable checkout snapshot. UserID is nil for guest orders.
type Order struct {
	ID        string       `json:"id"`
	UserID    *string      `json:"userId"`
	Items     []OrderItem  `json:"items"`
	Amounts   Totals       `json:"amounts"`
	Shipping  ShippingInfo `json:"shipping"`
	CreatedAt int64        `json:"createdAt"`
	Status    string       `json:"status"`
}

// PlacedBy reports whether the order belongs to the given session.
func (o Order) PlacedBy(s Session) bool {
	if o.UserID == nil {
		return s.IsGuest()
	}

	return *o.UserID == s.UserID
}
