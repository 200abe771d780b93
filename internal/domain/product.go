package domain

import "time"

// Product is a catalog item.
type Product struct {
	ProductID    int64  `json:"productId"`
	ProductName  string `json:"productName" validate:"required"`
	Price        int64  `json:"price" validate:"gte=0"`
	Description  string `json:"description"`
	OrderCount   int    `json:"orderCount"`
	ProductImage string `json:"productImage"`
	Stock        int    `json:"stock" validate:"gte=0"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Created parses CreatedAt. The backend sends local date-times without a zone.
func (p Product) Created() (time.Time, bool) {
	return ParseTimestamp(p.CreatedAt)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the date-time spellings the backend emits.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
