// internal/mockapi/orders.go
package mockapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type OrderItem struct {
	ProductID string  `json:"productId,omitempty"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is the wire form of a placed order.
type Order struct {
	ID              string      `json:"id"`
	Customer        Customer    `json:"customer"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	Status          string      `json:"status"`
	Date            string      `json:"date"`
	ShippingAddress string      `json:"shippingAddress"`
}

var orderStatuses = map[string]bool{
	"Processing": true,
	"In Transit": true,
	"Delivered":  true,
	"Cancelled":  true,
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	admin := strings.Contains(strings.ToLower(c.Role), "admin")

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Order{}
	for _, o := range s.orders {
		if admin || o.Customer.Email == c.Email {
			out = append(out, o)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePlaceOrder prices the order server-side and takes the items out of stock.
func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())

	var req struct {
		Customer        Customer    `json:"customer"`
		Items           []OrderItem `json:"items"`
		ShippingAddress string      `json:"shippingAddress"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "Order has no items", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		http.Error(w, "Shipping address is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0.0
	// Lines may repeat a product, so stock is checked against the running sum.
	requested := make(map[int]int)
	for i, item := range req.Items {
		if item.Quantity < 1 {
			http.Error(w, fmt.Sprintf("Invalid quantity for %s", item.Name), http.StatusBadRequest)
			return
		}
		idx := s.productIndex(item.ProductID)
		if idx >= 0 {
			if item.Quantity > s.products[idx].Stock-requested[idx] {
				http.Error(w, fmt.Sprintf("Insufficient stock for %s", s.products[idx].Name), http.StatusConflict)
				return
			}
			requested[idx] += item.Quantity
			req.Items[i].Price = s.products[idx].Price
			req.Items[i].Name = s.products[idx].Name
		}
		total += req.Items[i].Price * float64(item.Quantity)
	}
	for idx, n := range requested {
		s.products[idx].Stock -= n
	}

	order := Order{
		ID:              strconv.Itoa(s.nextOrderID),
		Customer:        Customer{Name: req.Customer.Name, Email: c.Email},
		Items:           req.Items,
		Total:           math.Round(total*100) / 100,
		Status:          "Processing",
		Date:            s.now().Format("2006-01-02"),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
	}
	s.nextOrderID++
	s.orders = append(s.orders, order)

	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !orderStatuses[req.Status] {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders[i].Status = req.Status
			writeJSON(w, http.StatusOK, s.orders[i])
			return
		}
	}
	http.Error(w, "Order not found", http.StatusNotFound)
}

func (s *Server) productIndex(id string) int {
	if id == "" {
		return -1
	}
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
