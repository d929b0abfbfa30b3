// internal/catalog/implementation.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"storefront/internal/clients"
)

var tracer = otel.Tracer("storefront/catalog")

// Option customises the store.
type Option func(*store)

// WithFixtures replaces the fallback product set. nil disables the fallback.
func WithFixtures(products []Product) Option {
	return func(s *store) {
		s.fixtures = products
	}
}

// WithLowStockThreshold sets the threshold used by Dashboard.
func WithLowStockThreshold(n int) Option {
	return func(s *store) {
		s.lowStock = n
	}
}

// store implements the Service interface.
type store struct {
	remote   Remote
	logger   *logrus.Logger
	fixtures []Product
	lowStock int

	once sync.Once

	mu       sync.RWMutex
	products []Product
	loading  bool
	err      error
}

// NewService creates a store in the loading state. Call InitialLoad to fill it.
func NewService(remote Remote, logger *logrus.Logger, opts ...Option) Service {
	s := &store{
		remote:   remote,
		logger:   logger,
		fixtures: DefaultFixtures(),
		lowStock: 5,
		loading:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitialLoad fetches the product list once. Failures are absorbed: the
// fixture set is installed and the error flag cleared.
func (s *store) InitialLoad(ctx context.Context) {
	s.once.Do(func() {
		s.initialLoad(ctx)
	})
}

func (s *store) initialLoad(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "catalog.initial_load")
	defer span.End()

	products, err := s.fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err == nil {
		s.products = products
		s.err = nil
		span.SetAttributes(attribute.Int("catalog.products", len(products)))
		return
	}

	span.RecordError(err)
	if len(s.fixtures) == 0 {
		s.logger.WithError(err).Error("failed to fetch products and no fallback data is configured")
		s.products = nil
		s.err = err
		return
	}

	s.logger.WithError(err).Warn("failed to fetch products from API, using fallback data")
	s.products = append([]Product(nil), s.fixtures...)
	s.err = nil
	span.SetAttributes(attribute.Bool("catalog.fallback", true))
}

// fetch treats any body that is not a JSON array as an empty collection.
func (s *store) fetch(ctx context.Context) ([]Product, error) {
	raw, err := s.remote.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		s.logger.Debug("product list response is not a list, treating it as empty")
		return []Product{}, nil
	}

	var products []Product
	if err := json.Unmarshal(trimmed, &products); err != nil {
		return nil, fmt.Errorf("decode product list: %w", err)
	}
	return products, nil
}

func (s *store) AddProduct(ctx context.Context, input ProductInput) (*Product, error) {
	ctx, span := tracer.Start(ctx, "catalog.add_product")
	defer span.End()

	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	created, err := s.remote.CreateProduct(ctx, input)
	if err != nil {
		return nil, s.mutationFailed(span, "add", err)
	}
	if created == nil || created.ID == "" {
		err := fmt.Errorf("create product: response carried no product id")
		span.RecordError(err)
		return nil, err
	}

	s.mu.Lock()
	s.products = append(s.products, *created)
	s.mu.Unlock()

	span.SetAttributes(attribute.String("product.id", created.ID))
	s.logger.WithField("product", created.ID).Info("product added")
	p := *created
	return &p, nil
}

// UpdateProduct replaces the matching record in place once the server confirms.
func (s *store) UpdateProduct(ctx context.Context, id string, input ProductInput) (*Product, error) {
	ctx, span := tracer.Start(ctx, "catalog.update_product", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.remote.UpdateProduct(ctx, id, input)
	if err != nil {
		return nil, s.mutationFailed(span, "update", err)
	}

	p := input.WithID(id)
	if updated != nil {
		p = *updated
		p.ID = id
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i] = p
			break
		}
	}
	s.mu.Unlock()

	s.logger.WithField("product", id).Info("product updated")
	return &p, nil
}

func (s *store) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "catalog.delete_product", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	if err := s.remote.DeleteProduct(ctx, id); err != nil {
		return s.mutationFailed(span, "delete", err)
	}

	s.mu.Lock()
	kept := s.products[:0:0]
	for _, p := range s.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.products = kept
	s.mu.Unlock()

	s.logger.WithField("product", id).Info("product deleted")
	return nil
}

func (s *store) mutationFailed(span trace.Span, action string, err error) error {
	span.RecordError(err)
	s.logger.WithError(err).WithField("action", action).Error("product mutation failed")
	return clients.RemapAuthorization(action, "products", err)
}

func (s *store) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Product(nil), s.products...)
}

func (s *store) Product(id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
}

func (s *store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err is only set when the initial load failed and no fallback was available.
func (s *store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
