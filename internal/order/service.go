// Package order turns a single product or the whole wishlist into a placed
// order, and covers order history and the admin status console.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teamcoffee/storefront/internal/api"
	"github.com/teamcoffee/storefront/internal/domain"
	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/logger"
	"github.com/teamcoffee/storefront/pkg/validator"
)

// DefaultPlaceholderAddress is sent as the delivery address until the
// storefront collects one.
const DefaultPlaceholderAddress = "서울시 성동구 왕십리로 123"

// Origins reported with submitted orders.
const (
	OriginSingle   = "single"
	OriginWishlist = "wishlist"
)

var (
	ErrOrderFailed   = errors.New("order: submission failed")
	ErrLoginRequired = fmt.Errorf("order: login required: %w", apperrors.ErrAuthRequired)
	ErrEmptyWishlist = fmt.Errorf("order: wishlist is empty: %w", apperrors.ErrInvalidInput)
	// ErrWishlistNotCleared accompanies a successful order whose wishlist
	// entries could not all be removed afterwards.
	ErrWishlistNotCleared = errors.New("order: placed, but wishlist not fully cleared")
)

// Session is the part of the session store the service reads.
type Session interface {
	Current() domain.Session
}

// Wishlist is the part of the reconciler an order drains.
type Wishlist interface {
	Fetch(ctx context.Context) error
	Items() []domain.WishlistEntry
	Remove(ctx context.Context, wishID int64) error
}

// Events receives order notifications.
type Events interface {
	OrderSubmitted(ctx context.Context, email, origin string, orders []domain.Order) error
}

// Service submits and manages orders.
type Service struct {
	orders      api.Orders
	session     Session
	wishlist    Wishlist
	events      Events
	logger      *slog.Logger
	address     string
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithPlaceholderAddress overrides DefaultPlaceholderAddress.
func WithPlaceholderAddress(addr string) Option {
	return func(s *Service) {
		if addr != "" {
			s.address = addr
		}
	}
}

// WithEvents publishes order.submitted notifications.
func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClearConcurrency bounds the parallel deletes that empty the wishlist
// after an order.
func WithClearConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates an order service.
func New(orders api.Orders, session Session, wishlist Wishlist, opts ...Option) *Service {
	s := &Service{
		orders:      orders,
		session:     session,
		wishlist:    wishlist,
		logger:      slog.Default(),
		address:     DefaultPlaceholderAddress,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitSingle orders quantity units of one product.
func (s *Service) SubmitSingle(ctx context.Context, productID int64, quantity int) ([]domain.Order, error) {
	email, ok := s.user()
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrOrderFailed, ErrLoginRequired)
	}
	req := domain.OrderRequest{
		UserEmail:       email,
		DeliveryAddress: s.address,
		LineItems:       []domain.LineItem{{ProductID: productID, Quantity: quantity}},
	}
	return s.submit(ctx, req, OriginSingle)
}

// SubmitWishlist orders every wishlist entry. Entries are removed only
// after the backend confirms the order. If that cleanup is incomplete the
// placed orders are returned together with ErrWishlistNotCleared.
func (s *Service) SubmitWishlist(ctx context.Context) ([]domain.Order, error) {
	email, ok := s.user()
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrOrderFailed, ErrLoginRequired)
	}

	entries := s.wishlist.Items()
	if len(entries) == 0 {
		if err := s.wishlist.Fetch(ctx); err != nil {
			return nil, opError(err)
		}
		entries = s.wishlist.Items()
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrOrderFailed, ErrEmptyWishlist)
	}

	req := domain.OrderRequest{UserEmail: email, DeliveryAddress: s.address}
	for _, e := range entries {
		req.LineItems = append(req.LineItems, domain.LineItem{ProductID: e.ProductID, Quantity: e.Quantity})
	}

	orders, err := s.submit(ctx, req, OriginWishlist)
	if err != nil {
		return nil, err
	}

	if err := s.clear(ctx, entries); err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "wishlist not fully cleared after order",
			slog.String("error", err.Error()),
		)
		return orders, fmt.Errorf("%w: %w", ErrWishlistNotCleared, err)
	}
	return orders, nil
}

func (s *Service) submit(ctx context.Context, req domain.OrderRequest, origin string) ([]domain.Order, error) {
	if err := validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOrderFailed, err)
	}

	ctx = logger.WithUserEmail(ctx, req.UserEmail)
	orders, err := s.orders.Create(ctx, req)
	if err != nil {
		return nil, opError(err)
	}

	var total int64
	for _, o := range orders {
		total += o.TotalPrice
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "order placed",
		slog.String("origin", origin),
		slog.Int("orders", len(orders)),
		slog.Int("line_items", len(req.LineItems)),
		slog.Int64("total_price", total),
	)

	if s.events != nil {
		if err := s.events.OrderSubmitted(ctx, req.UserEmail, origin, orders); err != nil {
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "order event not published", slog.String("error", err.Error()))
		}
	}
	return orders, nil
}

// clear attempts every delete; one failure does not cancel the others.
func (s *Service) clear(ctx context.Context, entries []domain.WishlistEntry) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(s.concurrency)
	for _, e := range entries {
		g.Go(func() error {
			if err := s.wishlist.Remove(ctx, e.WishID); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// History lists the signed-in user's orders.
func (s *Service) History(ctx context.Context) ([]domain.Order, error) {
	email, ok := s.user()
	if !ok {
		return nil, ErrLoginRequired
	}
	orders, err := s.orders.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Detail returns one order.
func (s *Service) Detail(ctx context.Context, orderID int64) (domain.Order, error) {
	if _, ok := s.user(); !ok {
		return domain.Order{}, ErrLoginRequired
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return o, nil
}

// Cancel deletes an order.
func (s *Service) Cancel(ctx context.Context, orderID int64) error {
	if _, ok := s.user(); !ok {
		return ErrLoginRequired
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "order canceled", slog.Int64("order_id", orderID))
	return nil
}

// UpdateStatus changes an order's status. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	in := domain.StatusUpdate{OrderID: orderID, OrderStatus: status}
	if err := validator.Validate(in); err != nil {
		return err
	}
	if err := s.orders.UpdateStatus(ctx, in); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "order status updated",
		slog.Int64("order_id", orderID),
		slog.String("new_status", status),
	)
	return nil
}

// Today lists orders placed today. Admin only.
func (s *Service) Today(ctx context.Context) ([]domain.Order, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	orders, err := s.orders.Today(ctx)
	if err != nil {
		return nil, fmt.Errorf("list today's orders: %w", err)
	}
	return orders, nil
}

func (s *Service) requireAdmin() error {
	c := s.session.Current()
	if !c.IsAuthenticated() {
		return ErrLoginRequired
	}
	if !c.IsAdmin() {
		return apperrors.Forbidden("admin role required")
	}
	return nil
}

func (s *Service) user() (string, bool) {
	c := s.session.Current()
	return c.UserEmail, c.IsAuthenticated() && c.UserEmail != ""
}

func opError(err error) error {
	if errors.Is(err, apperrors.ErrAuthRequired) {
		return fmt.Errorf("%w: %w", ErrOrderFailed, ErrLoginRequired)
	}
	return fmt.Errorf("%w: %w", ErrOrderFailed, err)
}
