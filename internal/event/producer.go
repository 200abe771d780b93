// Package event publishes storefront client events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teamcoffee/storefront/internal/domain"
	pkgkafka "github.com/teamcoffee/storefront/pkg/kafka"
	"github.com/teamcoffee/storefront/pkg/logger"
)

// Kafka topics for storefront client events.
var (
	TopicUserLoggedIn    = pkgkafka.Topic("user", "logged_in")
	TopicUserLoggedOut   = pkgkafka.Topic("user", "logged_out")
	TopicWishlistChanged = pkgkafka.Topic("wishlist", "changed")
	TopicOrderSubmitted  = pkgkafka.Topic("order", "submitted")
)

// SourceStorefrontClient identifies events originating from this client.
const SourceStorefrontClient = "storefront-client"

// Wishlist change actions.
const (
	ActionAdded    = "added"
	ActionRemoved  = "removed"
	ActionQuantity = "quantity"
)

// UserData is the payload of the login and logout events.
type UserData struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role,omitempty"`
}

// WishlistChangedData is the payload for a wishlist.changed event.
type WishlistChangedData struct {
	Email     string `json:"email"`
	Action    string `json:"action"`
	WishID    int64  `json:"wish_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	ItemCount int    `json:"item_count"`
}

// OrderSubmittedData is the payload for an order.submitted event.
type OrderSubmittedData struct {
	Email      string  `json:"email"`
	Origin     string  `json:"origin"`
	OrderIDs   []int64 `json:"order_ids"`
	TotalPrice int64   `json:"total_price"`
}

// Producer publishes storefront events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, key string, data any) error {
	event, err := pkgkafka.NewEvent(topic, key, SourceStorefrontClient, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published storefront event",
		slog.String("topic", topic),
		slog.String("key", key),
	)
	return nil
}

// UserLoggedIn publishes a user.logged_in event.
func (p *Producer) UserLoggedIn(ctx context.Context, s domain.Session) error {
	return p.publish(ctx, TopicUserLoggedIn, s.UserEmail, UserData{Email: s.UserEmail, Role: s.Role})
}

// UserLoggedOut publishes a user.logged_out event.
func (p *Producer) UserLoggedOut(ctx context.Context, email string) error {
	return p.publish(ctx, TopicUserLoggedOut, email, UserData{Email: email})
}

// WishlistChanged publishes a wishlist.changed event.
func (p *Producer) WishlistChanged(ctx context.Context, data WishlistChangedData) error {
	return p.publish(ctx, TopicWishlistChanged, data.Email, data)
}

// OrderSubmitted publishes an order.submitted event.
func (p *Producer) OrderSubmitted(ctx context.Context, email, origin string, orders []domain.Order) error {
	data := OrderSubmittedData{Email: email, Origin: origin}
	for _, o := range orders {
		data.OrderIDs = append(data.OrderIDs, o.OrderID)
		data.TotalPrice += o.TotalPrice
	}
	return p.publish(ctx, TopicOrderSubmitted, email, data)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.kafka.Close()
}
