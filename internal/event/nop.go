package event

import (
	"context"

	"github.com/teamcoffee/storefront/internal/domain"
)

// Nop discards every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) UserLoggedIn(context.Context, domain.Session) error                 { return nil }
func (Nop) UserLoggedOut(context.Context, string) error                        { return nil }
func (Nop) WishlistChanged(context.Context, WishlistChangedData) error         { return nil }
func (Nop) OrderSubmitted(context.Context, string, string, []domain.Order) error { return nil }
func (Nop) Close() error                                                       { return nil }
