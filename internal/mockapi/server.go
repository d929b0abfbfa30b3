// internal/mockapi/server.go
package mockapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Product is the wire form of a catalog record.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"imageUrl"`
	Featured    bool    `json:"featured"`
}

// User is the wire form of an identity.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type account struct {
	user       User
	credential string
}

// Option configures a Server.
type Option func(*Server)

// WithProducts seeds the product collection.
func WithProducts(products []Product) Option {
	return func(s *Server) {
		s.products = append([]Product(nil), products...)
	}
}

// WithSecret sets the HS256 signing key.
func WithSecret(secret []byte) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

// WithClock replaces time.Now for token issuing and order dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLoginRate bounds login attempts per second.
func WithLoginRate(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.loginLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// Server is an in-memory stand-in for the remote storefront API.
type Server struct {
	logger       *logrus.Logger
	secret       []byte
	tokenTTL     time.Duration
	now          func() time.Time
	loginLimiter *rate.Limiter

	mu          sync.RWMutex
	products    []Product
	accounts    map[string]*account
	orders      []Order
	nextOrderID int

	// failure injection
	failList  bool
	listBody  string
	forbidAll bool
}

func New(opts ...Option) *Server {
	s := &Server{
		logger:       logrus.New(),
		tokenTTL:     24 * time.Hour,
		now:          time.Now,
		loginLimiter: rate.NewLimiter(rate.Inf, 0),
		accounts:     make(map[string]*account),
		nextOrderID:  1001,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) == 0 {
		s.secret = make([]byte, 32)
		if _, err := rand.Read(s.secret); err != nil {
			panic(err)
		}
	}
	return s
}

// AddUser registers an account directly, bypassing the HTTP surface.
func (s *Server) AddUser(email, password, role, firstName, lastName string) (User, error) {
	return s.createAccount(email, password, role, firstName, lastName)
}

// SetFailList makes GET /api/products answer 500.
func (s *Server) SetFailList(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failList = fail
}

// SetListBody overrides the raw body of GET /api/products. Empty restores the default.
func (s *Server) SetListBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listBody = body
}

// SetForbidAll makes every admin endpoint answer 403 regardless of the token.
func (s *Server) SetForbidAll(forbid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forbidAll = forbid
}

// Products returns the server-side product collection.
func (s *Server) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Product(nil), s.products...)
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.With(s.authenticated).Get("/me", s.handleMe)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.handleListProducts)
			r.Get("/{id}", s.handleGetProduct)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticated, s.adminOnly)
				r.Post("/", s.handleCreateProduct)
				r.Put("/{id}", s.handleUpdateProduct)
				r.Delete("/{id}", s.handleDeleteProduct)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(s.authenticated)
			r.Get("/", s.handleListOrders)
			r.Post("/", s.handlePlaceOrder)
			r.With(s.adminOnly).Patch("/{id}", s.handleUpdateOrderStatus)
		})
	})
	return r
}

type ctxKey struct{}

func claimsFrom(ctx context.Context) *claims {
	c, _ := ctx.Value(ctxKey{}).(*claims)
	return c
}

func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := s.parseToken(raw)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, c)))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		forbid := s.forbidAll
		s.mu.RUnlock()

		c := claimsFrom(r.Context())
		if forbid || c == nil || !strings.Contains(strings.ToLower(c.Role), "admin") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
			"request":  middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
