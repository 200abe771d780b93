package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamcoffee/storefront/internal/api"
	"github.com/teamcoffee/storefront/internal/backendtest"
	"github.com/teamcoffee/storefront/internal/domain"
	"github.com/teamcoffee/storefront/internal/session"
	"github.com/teamcoffee/storefront/internal/storage"
	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/httpclient"
	"github.com/teamcoffee/storefront/pkg/validator"
)

type fixture struct {
	backend *backendtest.Backend
	session *session.Store
	catalog *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := backendtest.New(t)
	b.AddUser("bean@coffee.test", "arabica", "Bean", domain.RoleUser)
	b.AddUser("admin@coffee.test", "root", "Admin", domain.RoleAdmin)
	for _, p := range sample() {
		p.ProductID = 0
		b.AddProduct(p)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.New(b.URL(), httpclient.New(httpclient.DefaultConfig()), api.WithLogger(quiet))
	endpoints := api.NewEndpoints(client, api.DefaultPaths())
	store := session.New(endpoints.Users, storage.NewMemory(), session.WithLogger(quiet))
	client.SetAuthenticator(store)

	return &fixture{backend: b, session: store, catalog: New(endpoints.Products, store, quiet)}
}

func (f *fixture) login(t *testing.T, email, pw string) {
	t.Helper()
	_, err := f.session.Login(context.Background(), email, pw)
	require.NoError(t, err)
}

func TestList_Anonymous(t *testing.T) {
	f := newFixture(t)

	products, err := f.catalog.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 4)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	products, err := f.catalog.List(context.Background())
	require.NoError(t, err)

	p, err := f.catalog.Get(context.Background(), products[0].ProductID)
	require.NoError(t, err)
	assert.Equal(t, products[0].ProductName, p.ProductName)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.Get(context.Background(), 9999)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, httpclient.MsgResourceNotFound, apperrors.Message(err))
}

func TestSearch_FiltersAndPages(t *testing.T) {
	f := newFixture(t)

	page, err := f.catalog.Search(context.Background(), Query{InStockOnly: true, Sort: SortPriceAsc, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Drip Bag Set", page.Data[0].ProductName)
	assert.True(t, page.HasNext)

	next, err := f.catalog.Search(context.Background(), Query{InStockOnly: true, Sort: SortPriceAsc, Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, next.Data, 1)
	assert.Equal(t, "Kenya AA", next.Data[0].ProductName)
}

func TestSearch_RejectsBadQueryWithoutNetwork(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.Search(context.Background(), Query{Sort: "relevance"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = f.catalog.Search(context.Background(), Query{MinPrice: price(20000), MaxPrice: price(1000)})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	assert.Empty(t, f.backend.Calls())
}

func TestCreate_Admin(t *testing.T) {
	f := newFixture(t)
	f.login(t, "admin@coffee.test", "root")

	p, err := f.catalog.Create(context.Background(), domain.Product{ProductName: "Decaf Mexico", Price: 15000, Stock: 5})
	require.NoError(t, err)
	assert.NotZero(t, p.ProductID)
	assert.Len(t, f.backend.Products(), 5)
}

func TestCreate_InvalidProductNeverReachesNetwork(t *testing.T) {
	f := newFixture(t)
	f.login(t, "admin@coffee.test", "root")
	before := f.backend.CallsTo(http.MethodPost, "/products")

	_, err := f.catalog.Create(context.Background(), domain.Product{Price: -1})
	var verr *validator.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields(), "ProductName")
	assert.Equal(t, before, f.backend.CallsTo(http.MethodPost, "/products"))
}

func TestAdminWrites_RequireAdminRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Product{ProductName: "Decaf Mexico", Price: 15000}

	_, err := f.catalog.Create(ctx, p)
	assert.True(t, errors.Is(err, apperrors.ErrAuthRequired), "anonymous")

	f.login(t, "bean@coffee.test", "arabica")
	before := len(f.backend.Calls())

	_, err = f.catalog.Create(ctx, p)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = f.catalog.Update(ctx, 1, p)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	err = f.catalog.Delete(ctx, 1)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	assert.Len(t, f.backend.Calls(), before, "no network for a non-admin")
	assert.Len(t, f.backend.Products(), 4)
}

func TestUpdateAndDelete_Admin(t *testing.T) {
	f := newFixture(t)
	f.login(t, "admin@coffee.test", "root")
	ctx := context.Background()
	products, err := f.catalog.List(ctx)
	require.NoError(t, err)
	target := products[0]

	updated, err := f.catalog.Update(ctx, target.ProductID, domain.Product{ProductName: "Kenya AA Reserve", Price: 25000, Stock: 1})
	require.NoError(t, err)
	assert.Equal(t, "Kenya AA Reserve", updated.ProductName)
	assert.Equal(t, target.OrderCount, updated.OrderCount)

	require.NoError(t, f.catalog.Delete(ctx, target.ProductID))
	_, err = f.catalog.Get(ctx, target.ProductID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
