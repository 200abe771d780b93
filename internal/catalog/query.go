package catalog

import (
	"sort"
	"strings"

	"github.com/teamcoffee/storefront/internal/domain"
)

// Sort options for catalog listings.
const (
	SortDefault   = ""
	SortName      = "name"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortPopular   = "popular"
	SortNewest    = "newest"
)

// ValidSortOptions returns the list of valid sort options.
func ValidSortOptions() []string {
	return []string{SortName, SortPriceAsc, SortPriceDesc, SortPopular, SortNewest}
}

// IsValidSort checks whether the given sort string is a valid sort option.
// The empty string keeps backend order.
func IsValidSort(s string) bool {
	if s == SortDefault {
		return true
	}
	for _, v := range ValidSortOptions() {
		if v == s {
			return true
		}
	}
	return false
}

// Query narrows and orders a product list.
type Query struct {
	Search      string
	MinPrice    *int64
	MaxPrice    *int64
	InStockOnly bool
	Sort        string
	Page        int
	PerPage     int
}

// Filter returns the products matching q in q.Sort order. The input slice is
// not modified.
func Filter(products []domain.Product, q Query) []domain.Product {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if matches(p, q, needle) {
			out = append(out, p)
		}
	}
	sortProducts(out, q.Sort)
	return out
}

func matches(p domain.Product, q Query, needle string) bool {
	if needle != "" &&
		!strings.Contains(strings.ToLower(p.ProductName), needle) &&
		!strings.Contains(strings.ToLower(p.Description), needle) {
		return false
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	if q.InStockOnly && !p.InStock() {
		return false
	}
	return true
}

func sortProducts(products []domain.Product, by string) {
	switch by {
	case SortName:
		sort.SliceStable(products, func(i, j int) bool {
			return strings.ToLower(products[i].ProductName) < strings.ToLower(products[j].ProductName)
		})
	case SortPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case SortPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	case SortPopular:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].OrderCount > products[j].OrderCount
		})
	case SortNewest:
		// Undated products sink to the end.
		sort.SliceStable(products, func(i, j int) bool {
			ti, okI := products[i].Created()
			tj, okJ := products[j].Created()
			if okI != okJ {
				return okI
			}
			return ti.After(tj)
		})
	}
}
