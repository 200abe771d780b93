// Package backendtest runs an in-process storefront backend for tests. It
// speaks the same envelope and status conventions as the real service and
// records every call so tests can assert on ordering and counts.
package backendtest

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teamcoffee/storefront/internal/domain"
	"github.com/teamcoffee/storefront/pkg/httputil"
	"github.com/teamcoffee/storefront/pkg/middleware"
)

// Call is one recorded request.
type Call struct {
	Seq           int
	Method        string
	Path          string
	Query         string
	Authorization string
	CorrelationID string
	TraceParent   string
	At            time.Time
}

type account struct {
	domain.User
	password string
}

type failure struct {
	method string
	prefix string
	status int
	times  int
}

// Backend is a fake storefront API.
type Backend struct {
	t      testing.TB
	srv    *httptest.Server
	routes map[string]bool
	secret []byte
	ttl    time.Duration

	mu          sync.Mutex
	users       map[string]*account
	products    map[int64]domain.Product
	wishes      map[string][]domain.WishlistEntry
	orders      map[int64]domain.Order
	seq         int64
	access      map[string]string
	refresh     map[string]string
	calls       []Call
	failures    []*failure
	codes       map[string]string
	failRefresh bool
	refreshes   int
}

// New starts a backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		t:        t,
		secret:   []byte("backendtest-secret"),
		ttl:      15 * time.Minute,
		users:    make(map[string]*account),
		products: make(map[int64]domain.Product),
		wishes:   make(map[string][]domain.WishlistEntry),
		orders:   make(map[int64]domain.Order),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		codes:    make(map[string]string),
	}
	router := b.router()
	b.routes = routeKeys(t, router)
	b.srv = httptest.NewServer(router)
	t.Cleanup(b.srv.Close)
	return b
}

// URL is the backend base URL.
func (b *Backend) URL() string {
	return b.srv.URL
}

func (b *Backend) router() *chi.Mux {
	r := chi.NewRouter()
	log := slog.New(slog.DiscardHandler)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recovery(log))
	r.Use(b.record)
	r.Use(b.injectFailures)

	r.Post("/users", b.register)
	r.Post("/users/login", b.login)
	r.Post("/users/logout", b.logout)
	r.With(b.authenticated).Delete("/users", b.deleteUser)
	r.Post("/auth/refresh", b.refreshToken)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", b.listProducts)
		r.Get("/{id}", b.getProduct)
		r.With(b.authenticated, b.adminOnly).Post("/", b.createProduct)
		r.With(b.authenticated, b.adminOnly).Put("/{id}", b.updateProduct)
		r.With(b.authenticated, b.adminOnly).Delete("/{id}", b.deleteProduct)
	})

	wishlist := func(r chi.Router) {
		r.Use(b.authenticated)
		r.Get("/{email}", b.listWishes)
		r.Post("/{email}", b.addWish)
		r.Put("/{email}/{wishId}", b.updateWish)
		r.Delete("/{email}/{wishId}", b.removeWish)
	}
	r.Route("/wishlists", wishlist)
	r.Route("/api/v1/wishlists", wishlist)

	r.Route("/orders", func(r chi.Router) {
		r.Use(b.authenticated)
		r.Post("/write", b.writeOrder)
		r.Get("/lists", b.ordersByEmail)
		r.With(b.adminOnly).Get("/lists/today", b.ordersToday)
		r.Get("/lists/{orderId}", b.orderDetail)
		r.With(b.adminOnly).Put("/modify", b.modifyOrder)
		r.Delete("/delete/{orderId}", b.deleteOrder)
	})

	return r
}

// --- seeding and inspection ---

// AddUser registers an account directly.
func (b *Backend) AddUser(email, password, name string, role domain.Role) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[email] = &account{
		User:     domain.User{Name: name, Email: email, Role: role, Address: "Seoul"},
		password: password,
	}
}

// HasUser reports whether an account exists.
func (b *Backend) HasUser(email string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.users[email]
	return ok
}

// AddProduct stores p under a fresh id and returns it.
func (b *Backend) AddProduct(p domain.Product) domain.Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	p.ProductID = b.seq
	if p.CreatedAt == "" {
		p.CreatedAt = time.Now().Add(time.Duration(b.seq) * time.Second).Format("2006-01-02T15:04:05")
	}
	b.products[p.ProductID] = p
	return p
}

// Products returns every stored product.
func (b *Backend) Products() []domain.Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Product, 0, len(b.products))
	for _, p := range b.products {
		out = append(out, p)
	}
	return out
}

// SeedWishlist adds entries for email, assigning wish ids.
func (b *Backend) SeedWishlist(email string, entries ...domain.WishlistEntry) []domain.WishlistEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range entries {
		b.seq++
		entries[i].WishID = b.seq
		b.wishes[email] = append(b.wishes[email], entries[i])
	}
	return append([]domain.WishlistEntry(nil), b.wishes[email]...)
}

// Wishlist returns the server-side list of email.
func (b *Backend) Wishlist(email string) []domain.WishlistEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.WishlistEntry(nil), b.wishes[email]...)
}

// Orders returns every stored order.
func (b *Backend) Orders() []domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out
}

// SeedOrder stores an order and returns it with its id.
func (b *Backend) SeedOrder(o domain.Order) domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	o.OrderID = b.seq
	if o.OrderStatus == "" {
		o.OrderStatus = domain.OrderPending
	}
	if o.CreateDate == "" {
		o.CreateDate = time.Now().Format("2006-01-02T15:04:05")
	}
	b.orders[o.OrderID] = o
	return o
}

// Calls returns a copy of the request log.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsTo counts recorded calls with the given method whose path starts with prefix.
func (b *Backend) CallsTo(method, prefix string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// Refreshes counts successful token refreshes.
func (b *Backend) Refreshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

// ExpireAccessTokens invalidates every access token so the next call gets 401.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]string)
}

// SetRefreshFailure makes the refresh endpoint answer 401.
func (b *Backend) SetRefreshFailure(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRefresh = fail
}

// FailNext makes the next n calls matching method and path prefix answer status.
func (b *Backend) FailNext(method, prefix string, status, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, &failure{method: method, prefix: prefix, status: status, times: n})
}

// OverrideCode replaces the result code of successful responses for a route
// key such as "GET /wishlists/{email}". An unknown key fails the test.
func (b *Backend) OverrideCode(key, code string) {
	b.t.Helper()
	method, pattern, _ := strings.Cut(key, " ")
	key = routeKey(method, pattern)
	if !b.routes[key] {
		b.t.Fatalf("backendtest: no route %q", key)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[key] = code
}

// routeKey normalizes a route so that the /api/v1 wishlist alias and a
// subrouter's trailing slash map onto one key.
func routeKey(method, pattern string) string {
	pattern = strings.Replace(pattern, "/api/v1", "", 1)
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return method + " " + pattern
}

func routeKeys(t testing.TB, r chi.Routes) map[string]bool {
	t.Helper()
	keys := make(map[string]bool)
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		keys[routeKey(method, route)] = true
		return nil
	})
	if err != nil {
		t.Fatalf("backendtest: walk routes: %v", err)
	}
	return keys
}

// IssueTokens creates a valid token pair for email without a login call.
func (b *Backend) IssueTokens(email string) domain.TokenPair {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

func (b *Backend) issueLocked(email string) domain.TokenPair {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
	}
	access, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	refresh := uuid.New().String()
	b.access[access] = email
	b.refresh[refresh] = email
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}
}

// --- middleware ---

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls = append(b.calls, Call{
			Seq:           len(b.calls) + 1,
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			CorrelationID: r.Header.Get("X-Correlation-ID"),
			TraceParent:   r.Header.Get("traceparent"),
			At:            time.Now(),
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		var status int
		for _, f := range b.failures {
			if f.times > 0 && f.method == r.Method && strings.HasPrefix(r.URL.Path, f.prefix) {
				f.times--
				status = f.status
				break
			}
		}
		b.mu.Unlock()

		if status != 0 {
			httputil.WriteStatus(w, status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if c, err := r.Cookie("AccessToken"); token == "" && err == nil {
			token = c.Value
		}

		b.mu.Lock()
		email, ok := b.access[token]
		acct := b.users[email]
		b.mu.Unlock()

		if !ok || acct == nil {
			httputil.WriteStatus(w, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acct.User)))
	})
}

func (b *Backend) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller(r).Role != domain.RoleAdmin {
			httputil.WriteStatus(w, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ok writes a success envelope, honoring any OverrideCode for the route.
func (b *Backend) ok(w http.ResponseWriter, r *http.Request, status int, code, msg string, data any) {
	key := routeKey(r.Method, chi.RouteContext(r.Context()).RoutePattern())
	b.mu.Lock()
	if override, found := b.codes[key]; found {
		code = override
	}
	b.mu.Unlock()
	httputil.WriteEnvelope(w, status, code, msg, data)
}
