package wishlist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamcoffee/storefront/internal/api"
	"github.com/teamcoffee/storefront/internal/backendtest"
	"github.com/teamcoffee/storefront/internal/domain"
	"github.com/teamcoffee/storefront/internal/event"
	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/httpclient"
)

const email = "bean@coffee.test"

// fakeSession holds a token issued directly by the backend.
type fakeSession struct {
	mu   sync.Mutex
	sess domain.Session
}

func (f *fakeSession) Current() domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeSession) AccessToken() string { return f.Current().AccessToken }

func (f *fakeSession) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = domain.Session{}
	return errors.New("refresh disabled in tests")
}

func (f *fakeSession) signOut() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = domain.Session{}
}

type recordedEvents struct {
	mu   sync.Mutex
	data []event.WishlistChangedData
}

func (r *recordedEvents) WishlistChanged(_ context.Context, d event.WishlistChangedData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, d)
	return nil
}

// hookDoer runs afterResponse once the backend has answered, before the
// caller sees the response.
type hookDoer struct {
	next          httpclient.Doer
	afterResponse func(*http.Request)
}

func (h *hookDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := h.next.Do(ctx, req)
	if h.afterResponse != nil {
		h.afterResponse(req)
	}
	return resp, err
}

type fixture struct {
	backend  *backendtest.Backend
	doer     *hookDoer
	session  *fakeSession
	events   *recordedEvents
	wishlist *Reconciler
	beans    domain.Product
	milk     domain.Product
	filter   domain.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := backendtest.New(t)
	b.AddUser(email, "pw", "Bean", domain.RoleUser)
	tokens := b.IssueTokens(email)

	f := &fixture{
		backend: b,
		session: &fakeSession{sess: domain.Session{UserEmail: email, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}},
		events:  &recordedEvents{},
		beans:   b.AddProduct(domain.Product{ProductName: "Ethiopia Yirgacheffe", Price: 18000}),
		milk:    b.AddProduct(domain.Product{ProductName: "Oat Milk", Price: 4000}),
		filter:  b.AddProduct(domain.Product{ProductName: "Paper Filter", Price: 2500}),
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.doer = &hookDoer{next: httpclient.New(httpclient.DefaultConfig())}
	client := api.New(b.URL(), f.doer, api.WithLogger(quiet))
	client.SetAuthenticator(f.session)
	f.wishlist = New(api.NewEndpoints(client, api.DefaultPaths()).Wishlists, f.session, f.events, quiet)
	return f
}

// ---------------------------------------------------------------------------
// Fetch
// ---------------------------------------------------------------------------

func TestFetch_AcceptsNumericSuccessCode(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedWishlist(email,
		domain.WishlistEntry{ProductID: f.beans.ProductID, ProductName: f.beans.ProductName, Price: f.beans.Price, Quantity: 2},
		domain.WishlistEntry{ProductID: f.milk.ProductID, ProductName: f.milk.ProductName, Price: f.milk.Price, Quantity: 1},
	)

	require.NoError(t, f.wishlist.Fetch(context.Background()))

	items := f.wishlist.Items()
	require.Len(t, items, 2)
	assert.Equal(t, f.beans.ProductID, items[0].ProductID)
	assert.Equal(t, 3, f.wishlist.TotalItems())
	assert.Equal(t, int64(2*18000+4000), f.wishlist.TotalPrice())
}

func TestFetch_ReplacesLocalStateWholesale(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedWishlist(email, domain.WishlistEntry{ProductID: f.beans.ProductID, Quantity: 1})
	require.NoError(t, f.wishlist.Fetch(context.Background()))
	require.Len(t, f.wishlist.Items(), 1)

	// Changed on another device.
	f.backend.SeedWishlist(email, domain.WishlistEntry{ProductID: f.milk.ProductID, Quantity: 3})
	require.NoError(t, f.wishlist.Fetch(context.Background()))

	assert.Len(t, f.wishlist.Items(), 2)
	assert.True(t, f.wishlist.IsInWishlist(f.milk.ProductID))
	assert.Equal(t, 4, f.wishlist.TotalItems())
}

func TestFetch_SignedOutIsNoop(t *testing.T) {
	f := newFixture(t)
	f.session.signOut()

	require.NoError(t, f.wishlist.Fetch(context.Background()))
	assert.Empty(t, f.wishlist.Items())
	assert.Empty(t, f.backend.Calls())
}

func TestFetch_DiscardedWhenUserChangesMidCall(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedWishlist(email, domain.WishlistEntry{ProductID: f.beans.ProductID, Price: f.beans.Price, Quantity: 2})
	f.doer.afterResponse = func(*http.Request) {
		f.session.signOut()
		f.wishlist.Reset(context.Background())
	}

	require.NoError(t, f.wishlist.Fetch(context.Background()))
	assert.Empty(t, f.wishlist.Items())

	// The next user starts from server state, not the previous user's list.
	const next = "crema@coffee.test"
	f.backend.AddUser(next, "pw", "Crema", domain.RoleUser)
	tokens := f.backend.IssueTokens(next)
	f.session.mu.Lock()
	f.session.sess = domain.Session{UserEmail: next, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}
	f.session.mu.Unlock()
	f.doer.afterResponse = nil

	added, err := f.wishlist.Add(context.Background(), f.beans.ProductID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, added.Quantity)
	assert.Len(t, f.backend.Wishlist(next), 1)
	assert.Len(t, f.backend.Wishlist(email), 1)
}

func TestFetch_ServerError(t *testing.T) {
	f := newFixture(t)
	f.backend.FailNext(http.MethodGet, "/wishlists/", http.StatusInternalServerError, 1)

	err := f.wishlist.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
	assert.True(t, errors.Is(err, apperrors.ErrServerError))
}

// ---------------------------------------------------------------------------
// Add
// ---------------------------------------------------------------------------

func TestAdd_SameProductTwiceMergesQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.wishlist.Add(ctx, f.beans.ProductID, 2)
	require.NoError(t, err)
	assert.NotZero(t, first.WishID, "server-assigned id picked up by the re-fetch")

	second, err := f.wishlist.Add(ctx, f.beans.ProductID, 3)
	require.NoError(t, err)
	assert.Equal(t, first.WishID, second.WishID)
	assert.Equal(t, 5, second.Quantity)

	server := f.backend.Wishlist(email)
	require.Len(t, server, 1, "never two entries for one product")
	assert.Equal(t, 5, server[0].Quantity)

	local := f.wishlist.Items()
	require.Len(t, local, 1)
	assert.Equal(t, 5, local[0].Quantity)
	assert.Equal(t, 1, f.backend.CallsTo(http.MethodPost, "/wishlists/"))
	assert.Equal(t, 1, f.backend.CallsTo(http.MethodPut, "/wishlists/"))
}

func TestAdd_LoadsServerStateBeforeDeciding(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedWishlist(email, domain.WishlistEntry{ProductID: f.beans.ProductID, Quantity: 1})

	entry, err := f.wishlist.Add(context.Background(), f.beans.ProductID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Quantity)
	assert.Len(t, f.backend.Wishlist(email), 1)
}

func TestAdd_SignedOutIsDistinctError(t *testing.T) {
	f := newFixture(t)
	f.session.signOut()

	_, err := f.wishlist.Add(context.Background(), f.beans.ProductID, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAddFailed))
	assert.True(t, errors.Is(err, ErrLoginRequired))
	assert.True(t, errors.Is(err, apperrors.ErrAuthRequired))
	assert.Empty(t, f.backend.Calls())
}

func TestAdd_SessionLostMidCallReadsAsLoginRequired(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.wishlist.Fetch(context.Background()))
	f.backend.ExpireAccessTokens()

	_, err := f.wishlist.Add(context.Background(), f.beans.ProductID, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAddFailed))
	assert.True(t, errors.Is(err, ErrLoginRequired))
}

func TestAdd_RejectsZeroQuantity(t *testing.T) {
	f := newFixture(t)
	_, err := f.wishlist.Add(context.Background(), f.beans.ProductID, 0)
	assert.True(t, errors.Is(err, ErrQuantityFloor))
	assert.Empty(t, f.backend.Calls())
}

func TestAdd_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.wishlist.Add(context.Background(), 424242, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAddFailed))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.False(t, f.wishlist.IsInWishlist(424242))
}

func TestAdd_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.wishlist.Add(context.Background(), f.milk.ProductID, 2)
	require.NoError(t, err)

	require.Len(t, f.events.data, 1)
	assert.Equal(t, event.ActionAdded, f.events.data[0].Action)
	assert.Equal(t, f.milk.ProductID, f.events.data[0].ProductID)
	assert.Equal(t, 2, f.events.data[0].ItemCount)
}

// ---------------------------------------------------------------------------
// Remove / UpdateQuantity
// ---------------------------------------------------------------------------

func TestRemove_DropsLocallyWithoutRefetch(t *testing.T) {
	f := newFixture(t)
	seeded := f.backend.SeedWishlist(email,
		domain.WishlistEntry{ProductID: f.beans.ProductID, Quantity: 1},
		domain.WishlistEntry{ProductID: f.milk.ProductID, Quantity: 1},
	)
	ctx := context.Background()
	require.NoError(t, f.wishlist.Fetch(ctx))
	getsBefore := f.backend.CallsTo(http.MethodGet, "/wishlists/")

	require.NoError(t, f.wishlist.Remove(ctx, seeded[0].WishID))

	assert.False(t, f.wishlist.IsInWishlist(f.beans.ProductID))
	assert.True(t, f.wishlist.IsInWishlist(f.milk.ProductID))
	assert.Equal(t, getsBefore, f.backend.CallsTo(http.MethodGet, "/wishlists/"))
	assert.Len(t, f.backend.Wishlist(email), 1)
}

func TestRemove_FailureKeepsLocalEntry(t *testing.T) {
	f := newFixture(t)
	seeded := f.backend.SeedWishlist(email, domain.WishlistEntry{ProductID: f.beans.ProductID, Quantity: 1})
	require.NoError(t, f.wishlist.Fetch(context.Background()))
	f.backend.FailNext(http.MethodDelete, "/wishlists/", http.StatusInternalServerError, 1)

	err := f.wishlist.Remove(context.Background(), seeded[0].WishID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoveFailed))
	assert.True(t, f.wishlist.IsInWishlist(f.beans.ProductID))
}

func TestUpdateQuantity_MutatesInPlace(t *testing.T) {
	f := newFixture(t)
	seeded := f.backend.SeedWishlist(email, domain.WishlistEntry{ProductID: f.beans.ProductID, Quantity: 1})
	require.NoError(t, f.wishlist.Fetch(context.Background()))

	e, err := f.wishlist.UpdateQuantity(context.Background(), seeded[0].WishID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, e.Quantity)

	local, ok := f.wishlist.Find(f.beans.ProductID)
	require.True(t, ok)
	assert.Equal(t, 4, local.Quantity)
	assert.Equal(t, 4, f.backend.Wishlist(email)[0].Quantity)
}

func TestUpdateQuantity_BelowOneRejectedLocally(t *testing.T) {
	f := newFixture(t)
	for _, q := range []int{0, -1} {
		_, err := f.wishlist.UpdateQuantity(context.Background(), 1, q)
		assert.True(t, errors.Is(err, ErrQuantityFloor))
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	}
	assert.Empty(t, f.backend.Calls())
}

// ---------------------------------------------------------------------------
// Increment / Decrement
// ---------------------------------------------------------------------------

func TestDecrement_FloorAtOne(t *testing.T) {
	f := newFixture(t)
	seeded := f.backend.SeedWishlist(email, domain.WishlistEntry{ProductID: f.beans.ProductID, Quantity: 2})
	ctx := context.Background()
	require.NoError(t, f.wishlist.Fetch(ctx))
	id := seeded[0].WishID

	e, err := f.wishlist.Decrement(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Quantity)

	putsBefore := f.backend.CallsTo(http.MethodPut, "/wishlists/")
	e, err = f.wishlist.Decrement(ctx, id)
	assert.True(t, errors.Is(err, ErrQuantityFloor))
	assert.Equal(t, 1, e.Quantity)
	assert.Equal(t, putsBefore, f.backend.CallsTo(http.MethodPut, "/wishlists/"), "floor is enforced without a call")

	local, _ := f.wishlist.Find(f.beans.ProductID)
	assert.Equal(t, 1, local.Quantity)
	assert.Equal(t, 1, f.backend.Wishlist(email)[0].Quantity)
}

func TestIncrement(t *testing.T) {
	f := newFixture(t)
	seeded := f.backend.SeedWishlist(email, domain.WishlistEntry{ProductID: f.filter.ProductID, Quantity: 1})
	require.NoError(t, f.wishlist.Fetch(context.Background()))

	e, err := f.wishlist.Increment(context.Background(), seeded[0].WishID)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Quantity)
}

func TestIncrement_UnknownEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.wishlist.Increment(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrNotInWishlist))
}

// ---------------------------------------------------------------------------
// Reset
// ---------------------------------------------------------------------------

func TestReset_ThenFetchWhileSignedOut(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedWishlist(email, domain.WishlistEntry{ProductID: f.beans.ProductID, Quantity: 1})
	require.NoError(t, f.wishlist.Fetch(context.Background()))
	require.NotEmpty(t, f.wishlist.Items())

	f.session.signOut()
	f.wishlist.Reset(context.Background())

	assert.NoError(t, f.wishlist.Fetch(context.Background()))
	assert.Empty(t, f.wishlist.Items())
	assert.Zero(t, f.wishlist.TotalItems())
}
