// Package wishlist mirrors the signed-in user's server-side wishlist, which
// the storefront also uses as its cart.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teamcoffee/storefront/internal/api"
	"github.com/teamcoffee/storefront/internal/domain"
	"github.com/teamcoffee/storefront/internal/event"
	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/logger"
)

var (
	ErrLoginRequired = fmt.Errorf("wishlist: login required: %w", apperrors.ErrAuthRequired)
	ErrFetchFailed   = errors.New("wishlist: fetch failed")
	ErrAddFailed     = errors.New("wishlist: add failed")
	ErrRemoveFailed  = errors.New("wishlist: remove failed")
	ErrUpdateFailed  = errors.New("wishlist: update failed")
	ErrQuantityFloor = fmt.Errorf("wishlist: quantity cannot go below 1: %w", apperrors.ErrInvalidInput)
	ErrNotInWishlist = fmt.Errorf("wishlist: entry not found: %w", apperrors.ErrNotFound)
)

// Session is the part of the session store the reconciler reads.
type Session interface {
	Current() domain.Session
}

// Events receives wishlist change notifications.
type Events interface {
	WishlistChanged(ctx context.Context, data event.WishlistChangedData) error
}

// Reconciler keeps a local copy of the wishlist in step with the backend.
// Mutations apply locally once the backend acknowledges them; the next Fetch
// replaces local state wholesale.
type Reconciler struct {
	api     api.Wishlists
	session Session
	events  Events
	logger  *slog.Logger

	mu     sync.RWMutex
	items  []domain.WishlistEntry
	loaded bool
}

// New creates a reconciler. events may be nil.
func New(wishlists api.Wishlists, session Session, events Events, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		api:     wishlists,
		session: session,
		events:  events,
		logger:  logger,
	}
}

// Fetch replaces local state with the server's list. It is a no-op while
// signed out.
func (r *Reconciler) Fetch(ctx context.Context) error {
	email, ok := r.user()
	if !ok {
		return nil
	}

	list, err := r.api.List(ctx, email)
	if err != nil {
		return opError(ErrFetchFailed, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A logout or account switch while the list was in flight makes it stale.
	if current, ok := r.user(); !ok || current != email {
		return nil
	}
	r.items = append([]domain.WishlistEntry(nil), list...)
	r.loaded = true
	return nil
}

// Add puts quantity of productID into the wishlist. A product already
// present has its quantity increased instead of getting a second entry.
func (r *Reconciler) Add(ctx context.Context, productID int64, quantity int) (domain.WishlistEntry, error) {
	if quantity < 1 {
		return domain.WishlistEntry{}, fmt.Errorf("%w: %w", ErrAddFailed, ErrQuantityFloor)
	}
	email, ok := r.user()
	if !ok {
		return domain.WishlistEntry{}, fmt.Errorf("%w: %w", ErrAddFailed, ErrLoginRequired)
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return domain.WishlistEntry{}, opError(ErrAddFailed, err)
	}

	if existing, found := r.Find(productID); found {
		entry, err := r.UpdateQuantity(ctx, existing.WishID, existing.Quantity+quantity)
		if err != nil {
			return domain.WishlistEntry{}, fmt.Errorf("%w: %w", ErrAddFailed, err)
		}
		return entry, nil
	}

	created, err := r.api.Add(ctx, email, domain.AddWishlistRequest{ProductID: productID, Quantity: quantity})
	if err != nil {
		return domain.WishlistEntry{}, opError(ErrAddFailed, err)
	}

	if err := r.Fetch(ctx); err != nil {
		logger.WithContext(ctx, r.logger).WarnContext(ctx, "re-fetch after add failed, applying locally",
			slog.String("error", err.Error()),
		)
		if created.WishID != 0 {
			r.mu.Lock()
			r.items = append(r.items, created)
			r.mu.Unlock()
		}
	}

	entry, found := r.Find(productID)
	if !found {
		entry = created
	}
	r.publish(ctx, email, event.ActionAdded, entry)
	return entry, nil
}

// Remove deletes an entry and drops it locally without waiting for a fetch.
func (r *Reconciler) Remove(ctx context.Context, wishID int64) error {
	email, ok := r.user()
	if !ok {
		return fmt.Errorf("%w: %w", ErrRemoveFailed, ErrLoginRequired)
	}

	if err := r.api.Remove(ctx, email, wishID); err != nil {
		return opError(ErrRemoveFailed, err)
	}

	r.mu.Lock()
	var removed domain.WishlistEntry
	kept := r.items[:0:0]
	for _, e := range r.items {
		if e.WishID == wishID {
			removed = e
			continue
		}
		kept = append(kept, e)
	}
	r.items = kept
	r.mu.Unlock()

	if removed.WishID == 0 {
		removed.WishID = wishID
	}
	removed.Quantity = 0
	r.publish(ctx, email, event.ActionRemoved, removed)
	return nil
}

// UpdateQuantity sets the quantity of an entry and applies it locally once
// acknowledged. Quantities below 1 are rejected without a network call.
func (r *Reconciler) UpdateQuantity(ctx context.Context, wishID int64, quantity int) (domain.WishlistEntry, error) {
	if quantity < 1 {
		return domain.WishlistEntry{}, fmt.Errorf("%w: %w", ErrUpdateFailed, ErrQuantityFloor)
	}
	email, ok := r.user()
	if !ok {
		return domain.WishlistEntry{}, fmt.Errorf("%w: %w", ErrUpdateFailed, ErrLoginRequired)
	}

	updated, err := r.api.Update(ctx, email, wishID, quantity)
	if err != nil {
		return domain.WishlistEntry{}, opError(ErrUpdateFailed, err)
	}

	r.mu.Lock()
	entry := updated
	for i := range r.items {
		if r.items[i].WishID == wishID {
			r.items[i].Quantity = quantity
			entry = r.items[i]
			break
		}
	}
	r.mu.Unlock()

	if entry.WishID == 0 {
		entry.WishID = wishID
	}
	entry.Quantity = quantity
	r.publish(ctx, email, event.ActionQuantity, entry)
	return entry, nil
}

// Increment raises the quantity of a local entry by one.
func (r *Reconciler) Increment(ctx context.Context, wishID int64) (domain.WishlistEntry, error) {
	e, ok := r.entry(wishID)
	if !ok {
		return domain.WishlistEntry{}, fmt.Errorf("%w: %w", ErrUpdateFailed, ErrNotInWishlist)
	}
	return r.UpdateQuantity(ctx, wishID, e.Quantity+1)
}

// Decrement lowers the quantity of a local entry by one. An entry at 1 is
// left alone and ErrQuantityFloor returned; use Remove to drop it.
func (r *Reconciler) Decrement(ctx context.Context, wishID int64) (domain.WishlistEntry, error) {
	e, ok := r.entry(wishID)
	if !ok {
		return domain.WishlistEntry{}, fmt.Errorf("%w: %w", ErrUpdateFailed, ErrNotInWishlist)
	}
	if e.Quantity <= 1 {
		return e, ErrQuantityFloor
	}
	return r.UpdateQuantity(ctx, wishID, e.Quantity-1)
}

// IsInWishlist is a local lookup.
func (r *Reconciler) IsInWishlist(productID int64) bool {
	_, ok := r.Find(productID)
	return ok
}

// Find returns the local entry for productID.
func (r *Reconciler) Find(productID int64) (domain.WishlistEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.items {
		if e.ProductID == productID {
			return e, true
		}
	}
	return domain.WishlistEntry{}, false
}

// Items returns a copy of the local list.
func (r *Reconciler) Items() []domain.WishlistEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.WishlistEntry(nil), r.items...)
}

// TotalItems is the sum of quantities.
func (r *Reconciler) TotalItems() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.items {
		n += e.Quantity
	}
	return n
}

// TotalPrice is the sum of line totals.
func (r *Reconciler) TotalPrice() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, e := range r.items {
		sum += e.LineTotal()
	}
	return sum
}

// Reset empties local state. It runs on logout.
func (r *Reconciler) Reset(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	r.loaded = false
}

func (r *Reconciler) entry(wishID int64) (domain.WishlistEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.items {
		if e.WishID == wishID {
			return e, true
		}
	}
	return domain.WishlistEntry{}, false
}

func (r *Reconciler) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.Fetch(ctx)
}

func (r *Reconciler) user() (string, bool) {
	s := r.session.Current()
	return s.UserEmail, s.IsAuthenticated() && s.UserEmail != ""
}

func (r *Reconciler) publish(ctx context.Context, email, action string, e domain.WishlistEntry) {
	if r.events == nil {
		return
	}
	data := event.WishlistChangedData{
		Email:     email,
		Action:    action,
		WishID:    e.WishID,
		ProductID: e.ProductID,
		Quantity:  e.Quantity,
		ItemCount: r.TotalItems(),
	}
	if err := r.events.WishlistChanged(ctx, data); err != nil {
		logger.WithContext(ctx, r.logger).WarnContext(ctx, "wishlist event not published", slog.String("error", err.Error()))
	}
}

// opError labels err with the failed operation. A lost session reads as
// ErrLoginRequired rather than an opaque failure.
func opError(op, err error) error {
	if errors.Is(err, apperrors.ErrAuthRequired) {
		return fmt.Errorf("%w: %w", op, ErrLoginRequired)
	}
	return fmt.Errorf("%w: %w", op, err)
}
