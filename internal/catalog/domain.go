// internal/catalog/domain.go
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidProduct is wrapped by every ProductInput validation failure.
	ErrInvalidProduct = errors.New("invalid product")

	// ErrProductNotFound is returned for ids missing from the collection.
	ErrProductNotFound = errors.New("product not found")
)

// Product is the client-side copy of a catalog record. The ID is assigned by
// the server and never changes.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"imageUrl"`
	Featured    bool            `json:"featured"`
}

// MarshalJSON writes the price as a bare JSON number, the form the API expects.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain(p), priceNumber(p.Price)})
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// ProductInput is the payload of create and update calls: a product without its id.
type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"imageUrl"`
	Featured    bool            `json:"featured"`
}

func (in ProductInput) MarshalJSON() ([]byte, error) {
	type plain ProductInput
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain(in), priceNumber(in.Price)})
}

func priceNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// InputOf strips the id from p.
func InputOf(p Product) ProductInput {
	return ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		Featured:    p.Featured,
	}
}

// WithID attaches an id to the input.
func (in ProductInput) WithID(id string) Product {
	return Product{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		Featured:    in.Featured,
	}
}

// Normalize trims free-text fields.
func (in ProductInput) Normalize() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	return in
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	}
	if in.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	}
	return nil
}

// Sort orders accepted by Query.
type Sort string

const (
	SortDefault   Sort = "default"
	SortPriceAsc  Sort = "price-asc"
	SortPriceDesc Sort = "price-desc"
	SortNameAsc   Sort = "name-asc"
	SortNameDesc  Sort = "name-desc"
)

// AllCategories matches every category in a Filter.
const AllCategories = "All"

// Filter narrows and orders the product listing.
type Filter struct {
	Search   string
	Category string
	Sort     Sort
}

// CategoryCount is one row of the dashboard's category breakdown.
type CategoryCount struct {
	Category string
	Count    int
}

// Dashboard aggregates the admin overview of the catalog.
type Dashboard struct {
	TotalProducts  int
	FeaturedCount  int
	InventoryValue decimal.Decimal
	LowStock       []Product
	Categories     []CategoryCount
}
