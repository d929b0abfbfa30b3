// internal/orders/remote.go
package orders

import (
	"context"
	"net/url"

	"storefront/internal/clients"
)

// Remote is the orders slice of the remote service.
type Remote interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
}

type HTTPRemote struct {
	api *clients.APIClient
}

func NewHTTPRemote(api *clients.APIClient) *HTTPRemote {
	return &HTTPRemote{api: api}
}

func (r *HTTPRemote) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	var order *Order
	if err := r.api.Post(ctx, "/api/orders", req, &order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *HTTPRemote) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := r.api.Get(ctx, "/api/orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *HTTPRemote) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	var order *Order
	if err := r.api.Patch(ctx, "/api/orders/"+url.PathEscape(id), statusUpdate{Status: status}, &order); err != nil {
		return nil, err
	}
	return order, nil
}
