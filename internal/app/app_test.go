package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamcoffee/storefront/internal/api"
	"github.com/teamcoffee/storefront/internal/backendtest"
	"github.com/teamcoffee/storefront/internal/config"
	"github.com/teamcoffee/storefront/internal/domain"
	"github.com/teamcoffee/storefront/pkg/health"
)

const (
	email    = "bean@coffee.test"
	password = "arabica"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(b *backendtest.Backend) *config.Config {
	return &config.Config{
		Environment:        "test",
		LogLevel:           "error",
		APIURL:             b.URL(),
		HTTPTimeout:        2 * time.Second,
		RefreshPath:        "/auth/refresh",
		WishlistPath:       "/wishlists",
		BreakerEnabled:     false,
		SessionStore:       config.StoreMemory,
		SessionNamespace:   "test",
		PlaceholderAddress: "서울시 성동구 왕십리로 123",
	}
}

func newBackend(t *testing.T) (*backendtest.Backend, domain.Product) {
	t.Helper()
	b := backendtest.New(t)
	b.AddUser(email, password, "Bean", domain.RoleUser)
	p := b.AddProduct(domain.Product{ProductName: "Ethiopia Yirgacheffe", Price: 18000, Stock: 5})
	return b, p
}

func newApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, quiet(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestApp_EndToEndCheckout(t *testing.T) {
	b, beans := newBackend(t)
	a := newApp(t, testConfig(b))
	ctx := context.Background()

	_, err := a.Session.Login(ctx, email, password)
	require.NoError(t, err)

	_, err = a.Wishlist.Add(ctx, beans.ProductID, 1)
	require.NoError(t, err)
	_, err = a.Wishlist.Add(ctx, beans.ProductID, 1)
	require.NoError(t, err)
	require.Len(t, b.Wishlist(email), 1)

	orders, err := a.Orders.SubmitWishlist(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(36000), orders[0].TotalPrice)
	assert.Empty(t, a.Wishlist.Items())
	assert.Empty(t, b.Wishlist(email))

	a.Session.Logout(ctx)
	assert.False(t, a.Session.IsAuthenticated())
}

func TestApp_LogoutResetsWishlist(t *testing.T) {
	b, beans := newBackend(t)
	a := newApp(t, testConfig(b))
	ctx := context.Background()

	_, err := a.Session.Login(ctx, email, password)
	require.NoError(t, err)
	_, err = a.Wishlist.Add(ctx, beans.ProductID, 2)
	require.NoError(t, err)
	require.NotEmpty(t, a.Wishlist.Items())

	a.Session.Logout(ctx)

	assert.Empty(t, a.Wishlist.Items())
	require.NoError(t, a.Wishlist.Fetch(ctx))
	assert.Empty(t, a.Wishlist.Items())
}

func TestApp_FileStoreRestoresAcrossRuns(t *testing.T) {
	b, _ := newBackend(t)
	cfg := testConfig(b)
	cfg.SessionStore = config.StoreFile
	cfg.SessionFile = filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	first := newApp(t, cfg)
	_, err := first.Session.Login(ctx, email, password)
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	callsBefore := len(b.Calls())
	second := newApp(t, cfg)
	assert.True(t, second.Session.IsAuthenticated())
	assert.Equal(t, email, second.Session.Current().UserEmail)
	assert.Len(t, b.Calls(), callsBefore, "restore needs no network")
}

func TestApp_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	b, _ := newBackend(t)
	cfg := testConfig(b)
	cfg.SessionStore = config.StoreRedis
	cfg.RedisAddr = mr.Addr()
	cfg.SessionTTL = time.Hour
	ctx := context.Background()

	a := newApp(t, cfg)
	_, err := a.Session.Login(ctx, email, password)
	require.NoError(t, err)

	assert.True(t, mr.Exists("storefront:session:test:accessToken"))
	assert.Equal(t, health.StatusUp, a.Health(ctx).Checks["redis"].Status)

	mr.Close()
	report := a.Health(ctx)
	assert.Equal(t, health.StatusDown, report.Status)
	assert.Equal(t, health.StatusDown, report.Checks["redis"].Status)
}

func TestApp_RedisUnreachable(t *testing.T) {
	b, _ := newBackend(t)
	cfg := testConfig(b)
	cfg.SessionStore = config.StoreRedis
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestApp_Health(t *testing.T) {
	b, _ := newBackend(t)
	a := newApp(t, testConfig(b))

	report := a.Health(context.Background())

	assert.Equal(t, health.StatusUp, report.Status)
	assert.Equal(t, []string{"backend"}, report.Names())
}

func TestApp_NavigatorCalledOnceWhenSessionLost(t *testing.T) {
	b, beans := newBackend(t)
	var redirects atomic.Int32
	a := newApp(t, testConfig(b), WithNavigator(api.NavigatorFunc(func(context.Context) { redirects.Add(1) })))
	ctx := context.Background()

	_, err := a.Session.Login(ctx, email, password)
	require.NoError(t, err)
	b.ExpireAccessTokens()
	b.SetRefreshFailure(true)

	_, err = a.Wishlist.Add(ctx, beans.ProductID, 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), redirects.Load())
	assert.False(t, a.Session.IsAuthenticated())
}

func TestApp_MetricsRecordRequests(t *testing.T) {
	b, _ := newBackend(t)
	a := newApp(t, testConfig(b))

	_, err := a.Catalog.List(context.Background())
	require.NoError(t, err)

	families, err := a.Metrics()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "storefront_api_requests_total" {
			found = true
			assert.NotEmpty(t, mf.GetMetric())
		}
	}
	assert.True(t, found)
}

func TestApp_BreakerEnabled(t *testing.T) {
	b, _ := newBackend(t)
	cfg := testConfig(b)
	cfg.BreakerEnabled = true
	a := newApp(t, cfg)

	products, err := a.Catalog.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestApp_RateLimitEnabled(t *testing.T) {
	b, _ := newBackend(t)
	cfg := testConfig(b)
	cfg.RateLimitRPS = 50
	cfg.RateLimitBurst = 1
	a := newApp(t, cfg)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := a.Catalog.List(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
