// internal/catalog/fixtures.go
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixturesYAML []byte

type fixtureFile struct {
	Products []fixtureProduct `yaml:"products"`
}

// Prices are quoted strings so they decode without passing through float64.
type fixtureProduct struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Category    string `yaml:"category"`
	Stock       int    `yaml:"stock"`
	ImageURL    string `yaml:"imageUrl"`
	Featured    bool   `yaml:"featured"`
}

var defaultFixtures = sync.OnceValues(func() ([]Product, error) {
	return ParseFixtures(defaultFixturesYAML)
})

// DefaultFixtures returns a fresh copy of the built-in fixture set.
func DefaultFixtures() []Product {
	products, err := defaultFixtures()
	if err != nil {
		panic(fmt.Sprintf("embedded fixtures are invalid: %v", err))
	}
	return append([]Product(nil), products...)
}

// LoadFixtures reads a fixture set from a YAML file.
func LoadFixtures(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes and validates a YAML fixture document.
func ParseFixtures(data []byte) ([]Product, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	seen := make(map[string]bool, len(file.Products))
	products := make([]Product, 0, len(file.Products))
	for i, fp := range file.Products {
		if fp.ID == "" {
			return nil, fmt.Errorf("fixture %d: id is required", i)
		}
		if seen[fp.ID] {
			return nil, fmt.Errorf("fixture %d: duplicate id %q", i, fp.ID)
		}
		seen[fp.ID] = true

		price, err := decimal.NewFromString(fp.Price)
		if err != nil {
			return nil, fmt.Errorf("fixture %q: price: %w", fp.ID, err)
		}
		input := ProductInput{
			Name:        fp.Name,
			Description: fp.Description,
			Price:       price,
			Category:    fp.Category,
			Stock:       fp.Stock,
			ImageURL:    fp.ImageURL,
			Featured:    fp.Featured,
		}
		if err := input.Validate(); err != nil {
			return nil, fmt.Errorf("fixture %q: %w", fp.ID, err)
		}
		products = append(products, input.WithID(fp.ID))
	}
	return products, nil
}
