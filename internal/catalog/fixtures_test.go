package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFixtures(t *testing.T) {
	products := DefaultFixtures()
	require.Len(t, products, 5)

	first := products[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "Premium Wireless Headphones", first.Name)
	assert.Equal(t, "299.99", first.Price.StringFixed(2))
	assert.Equal(t, 15, first.Stock)
	assert.True(t, first.Featured)

	products[0].Name = "changed"
	assert.Equal(t, "Premium Wireless Headphones", DefaultFixtures()[0].Name)
}

func TestParseFixturesRejectsBadData(t *testing.T) {
	tests := map[string]string{
		"missing id":     "products:\n  - name: A\n    price: \"1\"\n",
		"duplicate id":   "products:\n  - id: \"1\"\n    name: A\n    price: \"1\"\n  - id: \"1\"\n    name: B\n    price: \"2\"\n",
		"bad price":      "products:\n  - id: \"1\"\n    name: A\n    price: cheap\n",
		"negative stock": "products:\n  - id: \"1\"\n    name: A\n    price: \"1\"\n    stock: -2\n",
		"not yaml":       "products: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFixturesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	doc := "products:\n  - id: sku-1\n    name: Tea Kettle\n    price: \"24.50\"\n    category: Kitchen\n    stock: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	products, err := LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "sku-1", products[0].ID)
	assert.Equal(t, "24.5", products[0].Price.String())

	_, err = LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestProductJSONShape(t *testing.T) {
	data, err := json.Marshal(DefaultFixtures()[2])
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, 29.99, fields["price"])
	assert.Contains(t, fields, "imageUrl")
	assert.Equal(t, "3", fields["id"])
	assert.False(t, decimal.MarshalJSONWithoutQuotes, "package-wide decimal encoding is left alone")

	var back Product
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "3", back.ID)
	assert.True(t, DefaultFixtures()[2].Price.Equal(back.Price))
}
