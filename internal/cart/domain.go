// internal/cart/domain.go
package cart

import (
	"github.com/shopspring/decimal"
)

// Line is one product in the cart. Product fields are snapshotted when the
// line is created so later catalog edits do not change it.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is price times quantity, unrounded.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Summary holds the checkout figures, rounded to cents.
type Summary struct {
	ItemCount int
	Subtotal  decimal.Decimal
	Shipping  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
}

// FormatMoney renders an amount as dollars with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// snapshot is the persisted form of a cart.
type snapshot struct {
	Lines []Line `json:"lines"`
}
