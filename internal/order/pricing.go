package order

import "github.com/teamcoffee/storefront/internal/domain"

// Pricing constants, in KRW.
const (
	ShippingFee           int64 = 3000
	FreeShippingThreshold int64 = 30000
	TaxPercent            int64 = 10
)

// Quote is the checkout summary shown before an order is placed.
type Quote struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
	Items    int   `json:"items"`
}

// QuoteFor prices a set of wishlist entries. An empty set costs nothing,
// shipping included.
func QuoteFor(entries []domain.WishlistEntry) Quote {
	var q Quote
	for _, e := range entries {
		q.Subtotal += e.LineTotal()
		q.Items += e.Quantity
	}
	if q.Items == 0 {
		return Quote{}
	}
	if q.Subtotal < FreeShippingThreshold {
		q.Shipping = ShippingFee
	}
	q.Tax = roundedPercent(q.Subtotal, TaxPercent)
	q.Total = q.Subtotal + q.Shipping + q.Tax
	return q
}

// QuoteProduct prices quantity units of a single product.
func QuoteProduct(p domain.Product, quantity int) Quote {
	return QuoteFor([]domain.WishlistEntry{{ProductID: p.ProductID, Price: p.Price, Quantity: quantity}})
}

// roundedPercent is amount*pct/100 rounded half away from zero.
func roundedPercent(amount, pct int64) int64 {
	n := amount * pct
	if n >= 0 {
		return (n + 50) / 100
	}
	return (n - 50) / 100
}
