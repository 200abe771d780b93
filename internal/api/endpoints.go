package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/teamcoffee/storefront/internal/domain"
)

// Paths holds the endpoint prefixes that differ between backend deployments.
type Paths struct {
	Refresh   string
	Wishlists string
}

// DefaultPaths returns the documented backend layout.
func DefaultPaths() Paths {
	return Paths{
		Refresh:   "/auth/refresh",
		Wishlists: "/wishlists",
	}
}

// Endpoints groups the typed wrappers over the backend HTTP contract.
type Endpoints struct {
	Users     Users
	Products  Products
	Wishlists Wishlists
	Orders    Orders
}

// NewEndpoints binds every wrapper to c.
func NewEndpoints(c *Client, p Paths) Endpoints {
	def := DefaultPaths()
	if p.Refresh == "" {
		p.Refresh = def.Refresh
	}
	if p.Wishlists == "" {
		p.Wishlists = def.Wishlists
	}
	return Endpoints{
		Users:     Users{c: c, refreshPath: p.Refresh},
		Products:  Products{c: c},
		Wishlists: Wishlists{c: c, base: p.Wishlists},
		Orders:    Orders{c: c},
	}
}

// OneOrMany decodes either a single JSON object or an array of them.
type OneOrMany[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (o *OneOrMany[T]) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}

// --- users ---

// Users wraps /users and the refresh endpoint.
type Users struct {
	c           *Client
	refreshPath string
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login posts credentials and returns the user and token bundle.
func (u Users) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	env, err := Call[domain.LoginResult](ctx, u.c, Request{
		Method:    http.MethodPost,
		Path:      "/users/login",
		Body:      loginBody{Email: email, Password: password},
		NoRefresh: true,
	})
	return env.Data, err
}

// Register creates an account.
func (u Users) Register(ctx context.Context, req domain.RegisterRequest) (domain.LoginResult, error) {
	env, err := Call[domain.LoginResult](ctx, u.c, Request{
		Method:    http.MethodPost,
		Path:      "/users",
		Body:      req,
		NoRefresh: true,
	})
	return env.Data, err
}

// Logout asks the backend to drop its refresh state.
func (u Users) Logout(ctx context.Context) error {
	return Exec(ctx, u.c, Request{Method: http.MethodPost, Path: "/users/logout", NoRefresh: true})
}

// Delete removes the account with the given email.
func (u Users) Delete(ctx context.Context, email string) error {
	return Exec(ctx, u.c, Request{
		Method: http.MethodDelete,
		Path:   "/users?email=" + url.QueryEscape(email),
	})
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshData accepts both a flat token pair and {token:{...}}.
type refreshData struct {
	domain.TokenPair
	Token *domain.TokenPair `json:"token"`
}

// Refresh exchanges refreshToken for a new token pair. The refresh token of
// the result is empty when the backend does not rotate it.
func (u Users) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	env, err := Call[refreshData](ctx, u.c, Request{
		Method:    http.MethodPost,
		Path:      u.refreshPath,
		Body:      refreshBody{RefreshToken: refreshToken},
		NoRefresh: true,
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	if env.Data.Token != nil {
		return *env.Data.Token, nil
	}
	return env.Data.TokenPair, nil
}

// --- products ---

// Products wraps /products.
type Products struct {
	c *Client
}

// List returns the full catalog.
func (p Products) List(ctx context.Context) ([]domain.Product, error) {
	env, err := Call[[]domain.Product](ctx, p.c, Request{Method: http.MethodGet, Path: "/products"})
	return env.Data, err
}

// Get returns one product.
func (p Products) Get(ctx context.Context, id int64) (domain.Product, error) {
	env, err := Call[domain.Product](ctx, p.c, Request{Method: http.MethodGet, Path: productPath(id)})
	return env.Data, err
}

// Create adds a product (admin).
func (p Products) Create(ctx context.Context, in domain.Product) (domain.Product, error) {
	env, err := Call[domain.Product](ctx, p.c, Request{Method: http.MethodPost, Path: "/products", Body: in})
	return env.Data, err
}

// Update replaces a product (admin).
func (p Products) Update(ctx context.Context, id int64, in domain.Product) (domain.Product, error) {
	env, err := Call[domain.Product](ctx, p.c, Request{Method: http.MethodPut, Path: productPath(id), Body: in})
	return env.Data, err
}

// Delete removes a product (admin).
func (p Products) Delete(ctx context.Context, id int64) error {
	return Exec(ctx, p.c, Request{Method: http.MethodDelete, Path: productPath(id)})
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}

// --- wishlists ---

// Wishlists wraps /wishlists/{email}.
type Wishlists struct {
	c    *Client
	base string
}

func (w Wishlists) path(email string, wishID ...int64) string {
	p := w.base + "/" + url.PathEscape(email)
	for _, id := range wishID {
		p += "/" + strconv.FormatInt(id, 10)
	}
	return p
}

// List returns every entry of the user's wishlist.
func (w Wishlists) List(ctx context.Context, email string) ([]domain.WishlistEntry, error) {
	env, err := Call[[]domain.WishlistEntry](ctx, w.c, Request{Method: http.MethodGet, Path: w.path(email)})
	return env.Data, err
}

// Add creates an entry.
func (w Wishlists) Add(ctx context.Context, email string, in domain.AddWishlistRequest) (domain.WishlistEntry, error) {
	env, err := Call[domain.WishlistEntry](ctx, w.c, Request{Method: http.MethodPost, Path: w.path(email), Body: in})
	return env.Data, err
}

// Update sets the quantity of an entry.
func (w Wishlists) Update(ctx context.Context, email string, wishID int64, quantity int) (domain.WishlistEntry, error) {
	env, err := Call[domain.WishlistEntry](ctx, w.c, Request{
		Method: http.MethodPut,
		Path:   w.path(email, wishID),
		Body:   domain.UpdateWishlistRequest{Quantity: quantity},
	})
	return env.Data, err
}

// Remove deletes an entry.
func (w Wishlists) Remove(ctx context.Context, email string, wishID int64) error {
	return Exec(ctx, w.c, Request{Method: http.MethodDelete, Path: w.path(email, wishID)})
}

// --- orders ---

// Orders wraps /orders.
type Orders struct {
	c *Client
}

// Create submits an order. The backend answers with one order or a list.
func (o Orders) Create(ctx context.Context, req domain.OrderRequest) ([]domain.Order, error) {
	env, err := Call[OneOrMany[domain.Order]](ctx, o.c, Request{Method: http.MethodPost, Path: "/orders/write", Body: req})
	return env.Data, err
}

// ListByEmail returns the orders of a user.
func (o Orders) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	env, err := Call[[]domain.Order](ctx, o.c, Request{
		Method: http.MethodGet,
		Path:   "/orders/lists?email=" + url.QueryEscape(email),
	})
	return env.Data, err
}

// Get returns one order.
func (o Orders) Get(ctx context.Context, orderID int64) (domain.Order, error) {
	env, err := Call[domain.Order](ctx, o.c, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/orders/lists/%d", orderID),
	})
	return env.Data, err
}

// Today returns the orders placed today (admin).
func (o Orders) Today(ctx context.Context) ([]domain.Order, error) {
	env, err := Call[[]domain.Order](ctx, o.c, Request{Method: http.MethodGet, Path: "/orders/lists/today"})
	return env.Data, err
}

// UpdateStatus changes an order's status (admin).
func (o Orders) UpdateStatus(ctx context.Context, in domain.StatusUpdate) error {
	return Exec(ctx, o.c, Request{Method: http.MethodPut, Path: "/orders/modify", Body: in})
}

// Delete cancels an order.
func (o Orders) Delete(ctx context.Context, orderID int64) error {
	return Exec(ctx, o.c, Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/orders/delete/%d", orderID),
	})
}
