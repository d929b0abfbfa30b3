package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
	"storefront/internal/clients"
	"storefront/internal/config"
	"storefront/internal/logging"
)

type fakeRemote struct {
	list      json.RawMessage
	listErr   error
	listCalls int

	created   *Product
	updated   *Product
	mutateErr error
	deleted   []string
}

func (f *fakeRemote) ListProducts(ctx context.Context) (json.RawMessage, error) {
	f.listCalls++
	return f.list, f.listErr
}

func (f *fakeRemote) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	if f.created != nil {
		return f.created, nil
	}
	p := input.WithID("new-1")
	return &p, nil
}

func (f *fakeRemote) UpdateProduct(ctx context.Context, id string, input ProductInput) (*Product, error) {
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	if f.updated != nil {
		return f.updated, nil
	}
	p := input.WithID(id)
	return &p, nil
}

func (f *fakeRemote) DeleteProduct(ctx context.Context, id string) error {
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

// fixtureStore returns a store whose initial load failed over to the fixtures.
func fixtureStore(t *testing.T, remote *fakeRemote) Service {
	t.Helper()
	if remote.list == nil && remote.listErr == nil {
		remote.listErr = errors.New("connection refused")
	}
	s := NewService(remote, logging.Discard())
	s.InitialLoad(context.Background())
	require.Len(t, s.Products(), 5)
	return s
}

func ids(products []Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestInitialLoadFallsBackToFixtures(t *testing.T) {
	s := NewService(&fakeRemote{listErr: errors.New("connection refused")}, logging.Discard())
	assert.True(t, s.Loading())

	s.InitialLoad(context.Background())

	assert.False(t, s.Loading())
	assert.NoError(t, s.Err())
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(s.Products()))
}

func TestInitialLoadFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewService(NewHTTPRemote(testAPI(srv.URL)), logging.Discard())
	s.InitialLoad(context.Background())

	assert.NoError(t, s.Err())
	assert.Len(t, s.Products(), 5)
}

func TestInitialLoadReplacesCollection(t *testing.T) {
	remote := &fakeRemote{list: json.RawMessage(`[{"id":"a","name":"Desk Lamp","price":19.5,"category":"Home","stock":4}]`)}
	s := NewService(remote, logging.Discard())
	s.InitialLoad(context.Background())

	products := s.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "Desk Lamp", products[0].Name)
	assert.True(t, decimal.RequireFromString("19.5").Equal(products[0].Price))
}

func TestInitialLoadNonListBodyIsEmpty(t *testing.T) {
	for _, body := range []string{`{"products":[]}`, `null`, `"oops"`, ``} {
		s := NewService(&fakeRemote{list: json.RawMessage(body)}, logging.Discard())
		s.InitialLoad(context.Background())

		assert.Empty(t, s.Products(), body)
		assert.NoError(t, s.Err(), body)
	}
}

func TestInitialLoadMalformedListFallsBack(t *testing.T) {
	s := NewService(&fakeRemote{list: json.RawMessage(`[{"id":1,"price":"abc"}]`)}, logging.Discard())
	s.InitialLoad(context.Background())

	assert.Len(t, s.Products(), 5)
	assert.NoError(t, s.Err())
}

func TestInitialLoadRunsOnce(t *testing.T) {
	remote := &fakeRemote{list: json.RawMessage(`[]`)}
	s := NewService(remote, logging.Discard())

	s.InitialLoad(context.Background())
	s.InitialLoad(context.Background())

	assert.Equal(t, 1, remote.listCalls)
}

func TestInitialLoadWithoutFixturesSurfacesError(t *testing.T) {
	s := NewService(&fakeRemote{listErr: errors.New("down")}, logging.Discard(), WithFixtures(nil))
	s.InitialLoad(context.Background())

	assert.Empty(t, s.Products())
	assert.EqualError(t, s.Err(), "down")
}

func TestAddProductAppendsServerRecord(t *testing.T) {
	remote := &fakeRemote{}
	s := fixtureStore(t, remote)

	in := ProductInput{Name: "  Standing Desk ", Price: decimal.RequireFromString("349.00"), Category: "Furniture", Stock: 7}
	created, err := s.AddProduct(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "new-1", created.ID)
	assert.Equal(t, "Standing Desk", created.Name)
	products := s.Products()
	require.Len(t, products, 6)
	assert.Equal(t, "new-1", products[5].ID)
}

func TestAddProductRejectsInvalidInputLocally(t *testing.T) {
	remote := &fakeRemote{mutateErr: errors.New("must not be called")}
	s := fixtureStore(t, remote)

	_, err := s.AddProduct(context.Background(), ProductInput{Name: "Broken", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = s.AddProduct(context.Background(), ProductInput{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidProduct)
	assert.Len(t, s.Products(), 5)
}

func TestAddProductForbiddenIsAuthorizationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewService(NewHTTPRemote(testAPI(srv.URL)), logging.Discard())
	s.InitialLoad(context.Background())
	before := s.Products()

	_, err := s.AddProduct(context.Background(), ProductInput{Name: "Lamp", Price: decimal.NewFromInt(10)})
	require.Error(t, err)

	var authErr *clients.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, clients.ErrUnauthorized)
	assert.Equal(t, "Not authorized to add products. Please log in with an admin account.", err.Error())
	assert.Equal(t, before, s.Products())
}

func TestMutationsPassThroughOtherFailures(t *testing.T) {
	cause := &clients.TransportError{Method: "PUT", StatusCode: http.StatusBadRequest, Body: "Product name is required"}
	remote := &fakeRemote{}
	s := fixtureStore(t, remote)
	remote.mutateErr = cause

	_, err := s.UpdateProduct(context.Background(), "1", ProductInput{Name: "X"})
	assert.Same(t, cause, err)

	err = s.DeleteProduct(context.Background(), "1")
	assert.Same(t, cause, err)
	assert.Len(t, s.Products(), 5)
}

func TestUpdateAndDeleteForbidden(t *testing.T) {
	remote := &fakeRemote{}
	s := fixtureStore(t, remote)
	before := s.Products()
	remote.mutateErr = &clients.TransportError{StatusCode: http.StatusUnauthorized}

	_, err := s.UpdateProduct(context.Background(), "2", ProductInput{Name: "Watch"})
	assert.EqualError(t, err, "Not authorized to update products. Please log in with an admin account.")

	err = s.DeleteProduct(context.Background(), "2")
	assert.EqualError(t, err, "Not authorized to delete products. Please log in with an admin account.")

	assert.Equal(t, before, s.Products())
}

func TestUpdateProductReplacesInPlace(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		remote := &fakeRemote{listErr: errors.New("down")}
		s := NewService(remote, logging.Discard())
		s.InitialLoad(context.Background())
		before := s.Products()

		idx := rapid.IntRange(0, len(before)-1).Draw(rt, "idx")
		id := before[idx].ID
		in := ProductInput{
			Name:        rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,20}[A-Za-z]`).Draw(rt, "name"),
			Description: rapid.StringMatching(`[a-z]{0,30}`).Draw(rt, "description"),
			Price:       decimal.New(rapid.Int64Range(0, 1_000_000).Draw(rt, "cents"), -2),
			Category:    rapid.SampledFrom([]string{"Electronics", "Clothing", "Garden"}).Draw(rt, "category"),
			Stock:       rapid.IntRange(0, 500).Draw(rt, "stock"),
			Featured:    rapid.Bool().Draw(rt, "featured"),
		}

		_, err := s.UpdateProduct(context.Background(), id, in)
		require.NoError(rt, err)

		after := s.Products()
		require.Len(rt, after, len(before))
		assert.Equal(rt, ids(before), ids(after))

		got := after[idx]
		assert.Equal(rt, id, got.ID)
		assert.Equal(rt, in.Name, got.Name)
		assert.Equal(rt, in.Description, got.Description)
		assert.True(rt, in.Price.Equal(got.Price))
		assert.Equal(rt, in.Category, got.Category)
		assert.Equal(rt, in.Stock, got.Stock)
		assert.Equal(rt, in.Featured, got.Featured)
		for i := range after {
			if i != idx {
				assert.Equal(rt, before[i], after[i])
			}
		}
	})
}

func TestUpdateProductKeepsIDWhenServerEchoesAnother(t *testing.T) {
	remote := &fakeRemote{}
	s := fixtureStore(t, remote)
	remote.updated = &Product{ID: "999", Name: "Renamed"}

	p, err := s.UpdateProduct(context.Background(), "3", ProductInput{Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "3", p.ID)

	got, err := s.Product("3")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestDeleteProductRemovesRecord(t *testing.T) {
	remote := &fakeRemote{}
	s := fixtureStore(t, remote)

	require.NoError(t, s.DeleteProduct(context.Background(), "3"))

	assert.Equal(t, []string{"3"}, remote.deleted)
	assert.Equal(t, []string{"1", "2", "4", "5"}, ids(s.Products()))
	_, err := s.Product("3")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductsReturnsCopy(t *testing.T) {
	s := fixtureStore(t, &fakeRemote{})

	products := s.Products()
	products[0].Name = "mutated"

	got, err := s.Product("1")
	require.NoError(t, err)
	assert.Equal(t, "Premium Wireless Headphones", got.Name)
}

func TestHTTPRemoteRoundTrip(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"42","name":"Lamp","price":12.5,"category":"Home","stock":3,"imageUrl":"","featured":false}`))
		case http.MethodDelete:
			assert.Equal(t, "/api/products/42", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	s := NewService(NewHTTPRemote(testAPI(srv.URL)), logging.Discard())
	s.InitialLoad(context.Background())

	created, err := s.AddProduct(context.Background(), ProductInput{Name: "Lamp", Price: decimal.RequireFromString("12.5"), Category: "Home", Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, "42", created.ID)
	assert.Equal(t, 12.5, gotBody["price"], "prices go out as JSON numbers")

	require.NoError(t, s.DeleteProduct(context.Background(), "42"))
	assert.Empty(t, s.Products())
}

func testAPI(baseURL string) *clients.APIClient {
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.API.RetryMaxAttempts = 1
	cfg.API.RateLimit = 0
	return clients.NewAPIClient(cfg, nil, logging.Discard())
}
