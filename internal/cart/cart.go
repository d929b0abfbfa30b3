// internal/cart/cart.go
package cart

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"storefront/internal/catalog"
)

const persistTimeout = 2 * time.Second

// Option customises a Cart.
type Option func(*Cart)

// WithPersister saves the cart after every mutation.
func WithPersister(p Persister) Option {
	return func(c *Cart) {
		c.persister = p
	}
}

// Cart is the Cart Store. It holds at most one line per product, and every
// line has a quantity of at least one.
type Cart struct {
	logger    *logrus.Logger
	persister Persister

	mu    sync.RWMutex
	lines []Line

	// persistMu orders snapshot-and-save pairs so the last save wins.
	persistMu sync.Mutex
}

func New(logger *logrus.Logger, opts ...Option) *Cart {
	c := &Cart{logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add merges quantity into the product's line, creating it if needed.
// Quantities below one are ignored. Stock is not checked.
func (c *Cart) Add(product catalog.Product, quantity int) {
	if quantity < 1 {
		return
	}

	c.mu.Lock()
	if i := c.indexOf(product.ID); i >= 0 {
		c.lines[i].Quantity = addQuantity(c.lines[i].Quantity, quantity)
	} else {
		c.lines = append(c.lines, Line{
			ProductID: product.ID,
			Name:      product.Name,
			Category:  product.Category,
			Price:     product.Price,
			ImageURL:  product.ImageURL,
			Quantity:  quantity,
		})
	}
	c.mu.Unlock()

	c.persist()
}

// UpdateQuantity sets the line's quantity, removing the line when quantity <= 0.
// Unknown products are ignored.
func (c *Cart) UpdateQuantity(productID string, quantity int) {
	c.mu.Lock()
	i := c.indexOf(productID)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	if quantity <= 0 {
		c.removeAt(i)
	} else {
		c.lines[i].Quantity = quantity
	}
	c.mu.Unlock()

	c.persist()
}

func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	i := c.indexOf(productID)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	c.removeAt(i)
	c.mu.Unlock()

	c.persist()
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()

	c.persist()
}

// Lines returns the lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Line(nil), c.lines...)
}

func (c *Cart) Line(productID string) (Line, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(productID); i >= 0 {
		return c.lines[i], true
	}
	return Line{}, false
}

func (c *Cart) IsEmpty() bool {
	return c.ItemCount() == 0
}

// ItemCount is the sum of all quantities.
func (c *Cart) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return countOf(c.lines)
}

// addQuantity adds two positive quantities, saturating at math.MaxInt.
func addQuantity(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func countOf(lines []Line) int {
	n := 0
	for _, l := range lines {
		n = addQuantity(n, l.Quantity)
	}
	return n
}

// TotalPrice is the exact sum of line subtotals. Round only for display.
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return totalOf(c.lines)
}

// Summary computes checkout figures. Shipping is free.
func (c *Cart) Summary(taxRate decimal.Decimal) Summary {
	c.mu.RLock()
	subtotal := totalOf(c.lines)
	count := countOf(c.lines)
	c.mu.RUnlock()

	tax := subtotal.Mul(taxRate)
	return Summary{
		ItemCount: count,
		Subtotal:  subtotal.Round(2),
		Shipping:  decimal.Zero,
		Tax:       tax.Round(2),
		Total:     subtotal.Add(tax).Round(2),
	}
}

// Restore replaces the lines with the persisted snapshot, if any.
func (c *Cart) Restore(ctx context.Context) error {
	if c.persister == nil {
		return nil
	}
	lines, err := c.persister.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}

	// Drop anything that would break the line invariants.
	var clean []Line
	seen := make(map[string]bool)
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 || seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		clean = append(clean, l)
	}

	c.mu.Lock()
	c.lines = clean
	c.mu.Unlock()

	c.logger.WithField("lines", len(clean)).Debug("cart restored")
	return nil
}

func (c *Cart) persist() {
	if c.persister == nil {
		return
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.persister.Save(ctx, c.Lines()); err != nil {
		c.logger.WithError(err).Warn("failed to persist cart")
	}
}

func (c *Cart) indexOf(productID string) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
}

func totalOf(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
