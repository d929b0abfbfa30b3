// internal/orders/domain.go
package orders

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusProcessing Status = "Processing"
	StatusInTransit  Status = "In Transit"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// AllStatuses matches every status in Filter.
const AllStatuses = "All"

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusProcessing, StatusInTransit, StatusDelivered, StatusCancelled}

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingAddress = errors.New("shipping address is required")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrOrderNotFound  = errors.New("order not found")
)

// ParseStatus accepts the exact display name of a status.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Item struct {
	ProductID string          `json:"productId,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// MarshalJSON writes the price as a bare JSON number, the form the API expects.
func (it Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain(it), amount(it.Price)})
}

// Order is the client-side copy of a placed order.
type Order struct {
	ID              string          `json:"id"`
	Customer        Customer        `json:"customer"`
	Items           []Item          `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`
	Date            string          `json:"date"`
	ShippingAddress string          `json:"shippingAddress"`
}

// PlaceOrderRequest is the body of POST /api/orders.
type PlaceOrderRequest struct {
	Customer        Customer        `json:"customer"`
	Items           []Item          `json:"items"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"shippingAddress"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		Total json.Number `json:"total"`
	}{plain(o), amount(o.Total)})
}

func (r PlaceOrderRequest) MarshalJSON() ([]byte, error) {
	type plain PlaceOrderRequest
	return json.Marshal(struct {
		plain
		Total json.Number `json:"total"`
	}{plain(r), amount(r.Total)})
}

func amount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type statusUpdate struct {
	Status Status `json:"status"`
}

// Summary is the order breakdown shown to admins. The order total is the
// pre-tax subtotal; shipping is free.
type Summary struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}
