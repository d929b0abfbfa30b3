package mockapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront/internal/logging"
)

var seed = []Product{
	{ID: "1", Name: "Premium Wireless Headphones", Price: 299.99, Category: "Electronics", Stock: 15, Featured: true},
	{ID: "4", Name: "Professional Camera Lens", Price: 899.99, Category: "Electronics", Stock: 3, Featured: true},
}

type harness struct {
	t   *testing.T
	srv *Server
	url string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	opts = append([]Option{WithProducts(seed), WithLogger(logging.Discard())}, opts...)
	s := New(opts...)
	_, err := s.AddUser("admin@example.com", "admin-pass", "admin", "Ada", "Admin")
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &harness{t: t, srv: s, url: ts.URL}
}

func (h *harness) do(method, path, token string, body any) (int, []byte) {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.url+path, r)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, data
}

func (h *harness) login(email, password string) string {
	h.t.Helper()
	status, body := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(h.t, http.StatusOK, status, string(body))
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(h.t, json.Unmarshal(body, &resp))
	return resp.Token
}

func (h *harness) register(email string) string {
	h.t.Helper()
	status, body := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "secret", "firstName": "Jane", "lastName": "Smith",
	})
	require.Equal(h.t, http.StatusCreated, status, string(body))
	return h.login(email, "secret")
}

func TestListProducts(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, status)

	var products []Product
	require.NoError(t, json.Unmarshal(body, &products))
	assert.Len(t, products, 2)

	status, body = h.do(http.MethodGet, "/api/products/4", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "Professional Camera Lens")

	status, _ = h.do(http.MethodGet, "/api/products/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListFailureKnobs(t *testing.T) {
	h := newHarness(t)

	h.srv.SetFailList(true)
	status, _ := h.do(http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusInternalServerError, status)

	h.srv.SetFailList(false)
	h.srv.SetListBody(`{"unexpected":"shape"}`)
	status, body := h.do(http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"unexpected":"shape"}`, string(body))
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	token := h.register("Jane@Example.com")

	status, body := h.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)

	var me User
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, "jane@example.com", me.Email)
	assert.Equal(t, "user", me.Role)
	assert.Equal(t, "Jane", me.FirstName)

	status, body = h.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "jane@example.com", "password": "x"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User already exists\n", string(body))

	status, _ = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "jane@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do(http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	var skew atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(skew.Load())) }
	h := newHarness(t, WithClock(clock), WithTokenTTL(time.Minute))
	token := h.login("admin@example.com", "admin-pass")

	skew.Store(int64(time.Hour))
	status, _ := h.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProductMutationsRequireAdmin(t *testing.T) {
	h := newHarness(t)
	userToken := h.register("jane@example.com")
	adminToken := h.login("admin@example.com", "admin-pass")
	body := map[string]any{"name": "Desk Lamp", "price": 19.5, "category": "Home", "stock": 4}

	status, _ := h.do(http.MethodPost, "/api/products", "", body)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp := h.do(http.MethodPost, "/api/products", userToken, body)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Forbidden\n", string(resp))

	status, resp = h.do(http.MethodPost, "/api/products", adminToken, body)
	require.Equal(t, http.StatusCreated, status)
	var created Product
	require.NoError(t, json.Unmarshal(resp, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 19.5, created.Price)

	body["price"] = 21
	status, resp = h.do(http.MethodPut, "/api/products/"+created.ID, adminToken, body)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp), `"price":21`)

	status, resp = h.do(http.MethodDelete, "/api/products/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Empty(t, resp)
	assert.Len(t, h.srv.Products(), 2)

	status, resp = h.do(http.MethodPost, "/api/products", adminToken, map[string]any{"name": "", "price": 1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Product name is required\n", string(resp))
}

func TestForbidAll(t *testing.T) {
	h := newHarness(t)
	adminToken := h.login("admin@example.com", "admin-pass")
	h.srv.SetForbidAll(true)

	status, _ := h.do(http.MethodDelete, "/api/products/1", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Len(t, h.srv.Products(), 2)
}

func TestOrders(t *testing.T) {
	h := newHarness(t)
	userToken := h.register("jane@example.com")
	otherToken := h.register("john@example.com")
	adminToken := h.login("admin@example.com", "admin-pass")

	status, resp := h.do(http.MethodPost, "/api/orders", userToken, map[string]any{
		"customer":        map[string]string{"name": "Jane Smith", "email": "spoofed@example.com"},
		"items":           []map[string]any{{"productId": "1", "name": "Headphones", "quantity": 2, "price": 1}},
		"shippingAddress": "456 Oak Ave",
	})
	require.Equal(t, http.StatusCreated, status, string(resp))

	var order Order
	require.NoError(t, json.Unmarshal(resp, &order))
	assert.Equal(t, "1001", order.ID)
	assert.Equal(t, "jane@example.com", order.Customer.Email)
	assert.Equal(t, 599.98, order.Total)
	assert.Equal(t, "Processing", order.Status)
	assert.Equal(t, 13, h.srv.Products()[0].Stock)

	status, resp = h.do(http.MethodGet, "/api/orders", otherToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(resp))

	status, resp = h.do(http.MethodGet, "/api/orders", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp), `"1001"`)

	status, _ = h.do(http.MethodPatch, "/api/orders/1001", userToken, map[string]string{"status": "Delivered"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.do(http.MethodPatch, "/api/orders/1001", adminToken, map[string]string{"status": "Lost"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = h.do(http.MethodPatch, "/api/orders/1001", adminToken, map[string]string{"status": "In Transit"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp), `"In Transit"`)
}

func TestPlaceOrderChecksStock(t *testing.T) {
	h := newHarness(t)
	token := h.register("jane@example.com")

	status, resp := h.do(http.MethodPost, "/api/orders", token, map[string]any{
		"items":           []map[string]any{{"productId": "4", "quantity": 4}},
		"shippingAddress": "addr",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Insufficient stock for Professional Camera Lens\n", string(resp))
	assert.Equal(t, 3, h.srv.Products()[1].Stock)

	status, _ = h.do(http.MethodPost, "/api/orders", token, map[string]any{"items": []any{}, "shippingAddress": "addr"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPlaceOrderSumsRepeatedProducts(t *testing.T) {
	h := newHarness(t)
	token := h.register("jane@example.com")

	status, resp := h.do(http.MethodPost, "/api/orders", token, map[string]any{
		"items": []map[string]any{
			{"productId": "4", "quantity": 2},
			{"productId": "4", "quantity": 2},
		},
		"shippingAddress": "addr",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Insufficient stock for Professional Camera Lens\n", string(resp))
	assert.Equal(t, 3, h.srv.Products()[1].Stock)

	status, _ = h.do(http.MethodPost, "/api/orders", token, map[string]any{
		"items": []map[string]any{
			{"productId": "4", "quantity": 1},
			{"productId": "4", "quantity": 2},
		},
		"shippingAddress": "addr",
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 0, h.srv.Products()[1].Stock)
}

func TestLoginRateLimit(t *testing.T) {
	h := newHarness(t, WithLoginRate(0.001, 1))

	h.login("admin@example.com", "admin-pass")
	status, _ := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "admin-pass"})
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestCredentials(t *testing.T) {
	credential, err := newCredential("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(credential, "argon2id$"))
	assert.NotContains(t, credential, "hunter2")

	other, err := newCredential("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, credential, other, "every credential gets its own salt")

	ok, err := credentialMatches(credential, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = credentialMatches(credential, "hunter3")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, bad := range []string{"", "hunter2", "bcrypt$AAAA$AAAA", "argon2id$%%%$AAAA", "argon2id$AAAA$%%%"} {
		_, err = credentialMatches(bad, "hunter2")
		assert.ErrorIs(t, err, errMalformedCredential, bad)
	}
}
