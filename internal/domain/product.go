package domain

// Product is a catalog record. Only ID, Price and Stock matter for pricing;
// the remaining fields are display attributes.
type Product struct {
	ID     string   `json:"id"     yaml:"id"`
	Brand  string   `json:"brand"  yaml:"brand"`
	Name   string   `json:"name"   yaml:"name"`
	Price  float64  `json:"price"  yaml:"price"`
	Rating float64  `json:"rating" yaml:"rating"`
	Image  string   `json:"image"  yaml:"image"`
	Stock  int      `json:"stock"  yaml:"stock"`
	Tags   []string `json:"tags"   yaml:"tags"`
}

// Validate checks the fields an admin may not leave inconsistent.
func (p Product) Validate() error {
	switch {
	case p.Name == "":
		return ValidationError{Field: "name", Reason: "must not be empty"}
	case p.Price < 0:
		return ValidationError{Field: "price", Reason: "must not be negative"}
	case p.Stock < 0:
		return ValidationError{Field: "stock", Reason: "must not be negative"}
	}

	return nil
}
