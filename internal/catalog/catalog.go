// Package catalog reads the product catalog and exposes the admin product
// operations.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teamcoffee/storefront/internal/api"
	"github.com/teamcoffee/storefront/internal/domain"
	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/logger"
	"github.com/teamcoffee/storefront/pkg/pagination"
	"github.com/teamcoffee/storefront/pkg/validator"
)

// Session is the part of the session store the catalog reads.
type Session interface {
	Current() domain.Session
}

// Service serves catalog reads and admin writes.
type Service struct {
	products api.Products
	session  Session
	logger   *slog.Logger
}

// New creates a catalog service.
func New(products api.Products, session Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{products: products, session: session, logger: logger}
}

// List returns the full catalog.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// Search lists the catalog, then filters, sorts and pages it locally.
func (s *Service) Search(ctx context.Context, q Query) (pagination.Result[domain.Product], error) {
	if !IsValidSort(q.Sort) {
		return pagination.Result[domain.Product]{}, apperrors.InvalidInput(fmt.Sprintf(
			"invalid sort %q, must be one of: %s", q.Sort, strings.Join(ValidSortOptions(), ", ")))
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return pagination.Result[domain.Product]{}, apperrors.InvalidInput("min price exceeds max price")
	}

	products, err := s.List(ctx)
	if err != nil {
		return pagination.Result[domain.Product]{}, err
	}
	return pagination.Slice(Filter(products, q), pagination.New(q.Page, q.PerPage)), nil
}

// Create adds a product. Admin only.
func (s *Service) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := s.requireAdmin(); err != nil {
		return domain.Product{}, err
	}
	if err := validator.Validate(p); err != nil {
		return domain.Product{}, err
	}
	created, err := s.products.Create(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "product created",
		slog.Int64("product_id", created.ProductID),
		slog.String("name", created.ProductName),
	)
	return created, nil
}

// Update replaces a product. Admin only.
func (s *Service) Update(ctx context.Context, id int64, p domain.Product) (domain.Product, error) {
	if err := s.requireAdmin(); err != nil {
		return domain.Product{}, err
	}
	if err := validator.Validate(p); err != nil {
		return domain.Product{}, err
	}
	updated, err := s.products.Update(ctx, id, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "product updated", slog.Int64("product_id", id))
	return updated, nil
}

// Delete removes a product. Admin only.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "product deleted", slog.Int64("product_id", id))
	return nil
}

func (s *Service) requireAdmin() error {
	c := s.session.Current()
	if !c.IsAuthenticated() {
		return apperrors.AuthRequired("sign in as an administrator")
	}
	if !c.IsAdmin() {
		return apperrors.Forbidden("admin role required")
	}
	return nil
}
