package domain

import (
	"encoding/json"
	"strconv"
)

// OrderStatus values used by the admin console.
const (
	OrderPending    = "PENDING"
	OrderProcessing = "PROCESSING"
	OrderCompleted  = "COMPLETED"
	OrderCancelled  = "CANCELLED"
)

// LineItem is one product of an order request.
type LineItem struct {
	ProductID int64 `validate:"gt=0"`
	Quantity  int   `validate:"gte=1"`
}

// OrderRequest is assembled from a single product or the whole wishlist.
type OrderRequest struct {
	UserEmail       string     `validate:"required,email"`
	DeliveryAddress string     `validate:"required"`
	LineItems       []LineItem `validate:"required,min=1,dive"`
}

type wireProduct struct {
	ProductID    string `json:"productId"`
	ProductCount int    `json:"productCount"`
}

type wireOrderRequest struct {
	UserEmail string        `json:"userEmail"`
	Address   string        `json:"address"`
	Products  []wireProduct `json:"products"`
}

// MarshalJSON emits the backend's order body. Product ids travel as strings.
func (r OrderRequest) MarshalJSON() ([]byte, error) {
	w := wireOrderRequest{
		UserEmail: r.UserEmail,
		Address:   r.DeliveryAddress,
		Products:  make([]wireProduct, 0, len(r.LineItems)),
	}
	for _, li := range r.LineItems {
		w.Products = append(w.Products, wireProduct{
			ProductID:    strconv.FormatInt(li.ProductID, 10),
			ProductCount: li.Quantity,
		})
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the backend's order body.
func (r *OrderRequest) UnmarshalJSON(b []byte) error {
	var w wireOrderRequest
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = OrderRequest{UserEmail: w.UserEmail, DeliveryAddress: w.Address}
	for _, p := range w.Products {
		id, err := strconv.ParseInt(p.ProductID, 10, 64)
		if err != nil {
			return err
		}
		r.LineItems = append(r.LineItems, LineItem{ProductID: id, Quantity: p.ProductCount})
	}
	return nil
}

// OrderItem is a line of a placed order.
type OrderItem struct {
	OrderItemID  int64 `json:"orderItemId"`
	OrderCount   int   `json:"orderCount"`
	ProductPrice int64 `json:"productPrice"`
	TotalPrice   int64 `json:"totalPrice"`
}

// Order is a placed order as reported by the backend.
type Order struct {
	OrderID        int64       `json:"orderId"`
	User           string      `json:"user"`
	Email          string      `json:"email"`
	ProductName    string      `json:"productName"`
	OrderCount     int         `json:"orderCount"`
	TotalPrice     int64       `json:"totalPrice"`
	Address        string      `json:"address"`
	OrderStatus    string      `json:"orderStatus"`
	DeliveryStatus bool        `json:"deliveryStatus"`
	CreateDate     string      `json:"createDate,omitempty"`
	ModifiedDate   string      `json:"modifiedDate,omitempty"`
	OrderItems     []OrderItem `json:"orderItems,omitempty"`
}

// StatusUpdate is the body of the admin status change.
type StatusUpdate struct {
	OrderID     int64  `json:"orderId" validate:"gt=0"`
	OrderStatus string `json:"orderStatus" validate:"required,orderstatus"`
}
