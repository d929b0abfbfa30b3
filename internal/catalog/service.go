// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service is the Catalog Store: an in-memory mirror of the remote product
// collection. Mutations change the mirror only after the server confirms.
type Service interface {
	InitialLoad(ctx context.Context)
	AddProduct(ctx context.Context, input ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id string, input ProductInput) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error

	Products() []Product
	Product(id string) (Product, error)
	Categories() []string
	Query(f Filter) []Product
	Featured(n int) []Product
	NewArrivals(n int) []Product
	LowStock(threshold int) []Product
	Dashboard() Dashboard

	Loading() bool
	Err() error
}
