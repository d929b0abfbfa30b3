// internal/orders/book.go
package orders

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"storefront/internal/cart"
	"storefront/internal/clients"
	"storefront/internal/session"
)

var tracer = otel.Tracer("storefront/orders")

// Book mirrors the orders visible to the current session. Unlike the
// catalog it has no fallback data: a failed load is reported through Err.
type Book struct {
	remote Remote
	logger *logrus.Logger

	mu      sync.RWMutex
	orders  []Order
	loading bool
	err     error
}

func NewBook(remote Remote, logger *logrus.Logger) *Book {
	return &Book{remote: remote, logger: logger}
}

// PlaceOrder submits the cart for user. The cart is cleared only after the
// server accepts the order.
func (b *Book) PlaceOrder(ctx context.Context, user *session.User, c *cart.Cart, address string) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.place")
	defer span.End()

	if user == nil {
		return nil, session.ErrNotAuthenticated
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrMissingAddress
	}
	lines := c.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	req := PlaceOrderRequest{
		Customer:        Customer{Name: user.DisplayName(), Email: user.Email},
		Items:           make([]Item, 0, len(lines)),
		Total:           c.TotalPrice(),
		ShippingAddress: address,
	}
	for _, l := range lines {
		req.Items = append(req.Items, Item{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity, Price: l.Price})
	}

	order, err := b.remote.PlaceOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		b.logger.WithError(err).Error("failed to place order")
		return nil, err
	}
	if order == nil || order.ID == "" {
		err := fmt.Errorf("place order: response carried no order id")
		span.RecordError(err)
		return nil, err
	}

	b.mu.Lock()
	b.orders = append(b.orders, *order)
	b.mu.Unlock()
	c.Clear()

	span.SetAttributes(attribute.String("order.id", order.ID))
	b.logger.WithFields(logrus.Fields{"order": order.ID, "items": len(order.Items)}).Info("order placed")
	o := *order
	return &o, nil
}

// Load replaces the orders with the server's list. On failure the previous
// list is kept and the error is returned and remembered for Err.
func (b *Book) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "orders.load")
	defer span.End()

	b.mu.Lock()
	b.loading = true
	b.mu.Unlock()

	orders, err := b.remote.ListOrders(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = false
	if err != nil {
		span.RecordError(err)
		b.err = err
		b.logger.WithError(err).Warn("failed to load orders")
		return err
	}
	b.orders = orders
	b.err = nil
	return nil
}

// UpdateStatus changes an order's status once the server confirms.
func (b *Book) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.update_status", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}

	updated, err := b.remote.UpdateStatus(ctx, id, status)
	if err != nil {
		span.RecordError(err)
		return nil, clients.RemapAuthorization("update", "orders", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.orders {
		if b.orders[i].ID != id {
			continue
		}
		if updated != nil {
			b.orders[i] = *updated
			b.orders[i].ID = id
		} else {
			b.orders[i].Status = status
		}
		o := b.orders[i]
		return &o, nil
	}
	if updated != nil {
		o := *updated
		return &o, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
}

func (b *Book) Orders() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Order(nil), b.orders...)
}

func (b *Book) Order(id string) (Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
}

// Filter matches search against id, customer name and email, case-insensitively.
func (b *Book) Filter(search, status string) []Order {
	search = strings.ToLower(strings.TrimSpace(search))

	var out []Order
	for _, o := range b.Orders() {
		matches := search == "" ||
			strings.Contains(strings.ToLower(o.ID), search) ||
			strings.Contains(strings.ToLower(o.Customer.Name), search) ||
			strings.Contains(strings.ToLower(o.Customer.Email), search)
		if !matches {
			continue
		}
		if status != "" && status != AllStatuses && string(o.Status) != status {
			continue
		}
		out = append(out, o)
	}
	return out
}

// MyOrders returns the orders placed with email.
func (b *Book) MyOrders(email string) []Order {
	var out []Order
	for _, o := range b.Orders() {
		if strings.EqualFold(o.Customer.Email, email) {
			out = append(out, o)
		}
	}
	return out
}

func (b *Book) Summary(id string, taxRate decimal.Decimal) (Summary, error) {
	o, err := b.Order(id)
	if err != nil {
		return Summary{}, err
	}
	tax := o.Total.Mul(taxRate)
	return Summary{
		Subtotal: o.Total.Round(2),
		Shipping: decimal.Zero,
		Tax:      tax.Round(2),
		Total:    o.Total.Add(tax).Round(2),
	}, nil
}

func (b *Book) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading
}

func (b *Book) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}
