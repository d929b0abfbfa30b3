// internal/mockapi/products.go
package mockapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"imageUrl"`
	Featured    bool    `json:"featured"`
}

func (req productRequest) validate() string {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "Product name is required"
	case req.Price < 0:
		return "Price cannot be negative"
	case req.Stock < 0:
		return "Stock cannot be negative"
	}
	return ""
}

func (req productRequest) toProduct(id string) Product {
	return Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		Featured:    req.Featured,
	}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fail, body := s.failList, s.listBody
	products := append([]Product{}, s.products...)
	s.mu.RUnlock()

	if fail {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if body != "" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	http.Error(w, "Product not found", http.StatusNotFound)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	p := req.toProduct(uuid.NewString())

	s.mu.Lock()
	s.products = append(s.products, p)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i] = req.toProduct(id)
			writeJSON(w, http.StatusOK, s.products[i])
			return
		}
	}
	http.Error(w, "Product not found", http.StatusNotFound)
}

// handleDeleteProduct answers 204 with an empty body.
func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "Product not found", http.StatusNotFound)
}
