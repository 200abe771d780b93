package domain

import "encoding/json"

// WishlistEntry is one row of a user's wishlist, which doubles as the cart.
type WishlistEntry struct {
	WishID       int64  `json:"wishId"`
	ProductID    int64  `json:"productId"`
	ProductName  string `json:"productName"`
	Price        int64  `json:"price"`
	ProductImage string `json:"productImage,omitempty"`
	Quantity     int    `json:"quantity"`
}

// LineTotal is price times quantity.
func (e WishlistEntry) LineTotal() int64 {
	return e.Price * int64(e.Quantity)
}

// UnmarshalJSON accepts both "price" and the backend's "productPrice".
// A missing quantity is read as 1.
func (e *WishlistEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		WishID       int64  `json:"wishId"`
		ProductID    int64  `json:"productId"`
		ProductName  string `json:"productName"`
		Price        *int64 `json:"price"`
		ProductPrice *int64 `json:"productPrice"`
		ProductImage string `json:"productImage"`
		Quantity     *int   `json:"quantity"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*e = WishlistEntry{
		WishID:       raw.WishID,
		ProductID:    raw.ProductID,
		ProductName:  raw.ProductName,
		ProductImage: raw.ProductImage,
		Quantity:     1,
	}
	switch {
	case raw.Price != nil:
		e.Price = *raw.Price
	case raw.ProductPrice != nil:
		e.Price = *raw.ProductPrice
	}
	if raw.Quantity != nil && *raw.Quantity > 0 {
		e.Quantity = *raw.Quantity
	}
	return nil
}

// AddWishlistRequest is the body of the create call.
type AddWishlistRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1"`
}

// UpdateWishlistRequest is the body of the quantity update call.
type UpdateWishlistRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}
