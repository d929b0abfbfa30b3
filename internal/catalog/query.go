// internal/catalog/query.go
package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Query filters by case-insensitive name substring and category, then sorts.
// The default order is the collection order.
func (s *store) Query(f Filter) []Product {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var out []Product
	for _, p := range s.Products() {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if f.Category != "" && f.Category != AllCategories && p.Category != f.Category {
			continue
		}
		out = append(out, p)
	}

	switch f.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case SortNameAsc:
		sort.SliceStable(out, func(i, j int) bool { return compareNames(out[i].Name, out[j].Name) < 0 })
	case SortNameDesc:
		sort.SliceStable(out, func(i, j int) bool { return compareNames(out[i].Name, out[j].Name) > 0 })
	}
	return out
}

func compareNames(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Categories lists distinct categories in first-seen order.
func (s *store) Categories() []string {
	return categoriesOf(s.Products())
}

func categoriesOf(products []Product) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// Featured returns the first n featured products.
func (s *store) Featured(n int) []Product {
	var out []Product
	for _, p := range s.Products() {
		if len(out) >= n {
			break
		}
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// NewArrivals returns the last n products, newest first.
func (s *store) NewArrivals(n int) []Product {
	products := s.Products()
	if n <= 0 {
		return nil
	}
	if n > len(products) {
		n = len(products)
	}
	out := make([]Product, 0, n)
	for i := len(products) - 1; i >= len(products)-n; i-- {
		out = append(out, products[i])
	}
	return out
}

func (s *store) LowStock(threshold int) []Product {
	return lowStockOf(s.Products(), threshold)
}

func lowStockOf(products []Product, threshold int) []Product {
	var out []Product
	for _, p := range products {
		if p.Stock <= threshold {
			out = append(out, p)
		}
	}
	return out
}

func (s *store) Dashboard() Dashboard {
	products := s.Products()
	d := Dashboard{
		TotalProducts:  len(products),
		InventoryValue: decimal.Zero,
		LowStock:       lowStockOf(products, s.lowStock),
	}

	counts := make(map[string]int)
	for _, p := range products {
		if p.Featured {
			d.FeaturedCount++
		}
		d.InventoryValue = d.InventoryValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
		counts[p.Category]++
	}
	for _, c := range categoriesOf(products) {
		d.Categories = append(d.Categories, CategoryCount{Category: c, Count: counts[c]})
	}
	return d
}
