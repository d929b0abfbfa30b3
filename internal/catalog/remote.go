// internal/catalog/remote.go
package catalog

import (
	"context"
	"encoding/json"
	"net/url"

	"storefront/internal/clients"
)

// Remote is the product slice of the remote service.
type Remote interface {
	ListProducts(ctx context.Context) (json.RawMessage, error)
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id string, input ProductInput) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// HTTPRemote implements Remote with the shared API client.
type HTTPRemote struct {
	api *clients.APIClient
}

func NewHTTPRemote(api *clients.APIClient) *HTTPRemote {
	return &HTTPRemote{api: api}
}

// ListProducts returns the raw body so the store can apply its own shape check.
func (r *HTTPRemote) ListProducts(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := r.api.Get(ctx, "/api/products", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *HTTPRemote) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	var created *Product
	if err := r.api.Post(ctx, "/api/products", input, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *HTTPRemote) UpdateProduct(ctx context.Context, id string, input ProductInput) (*Product, error) {
	var updated *Product
	if err := r.api.Put(ctx, productPath(id), input, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *HTTPRemote) DeleteProduct(ctx context.Context, id string) error {
	return r.api.Delete(ctx, productPath(id))
}

func productPath(id string) string {
	return "/api/products/" + url.PathEscape(id)
}
