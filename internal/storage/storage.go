// Package storage persists the session between runs of the client.
package storage

import (
	"context"
	"fmt"

	apperrors "github.com/teamcoffee/storefront/pkg/errors"
)

// Fixed keys of the persisted session.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// SessionKeys lists every key the session writes.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Store is durable key/value storage for the session.
type Store interface {
	// Get returns the value of key, or an error matching errors.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

func notFound(key string) error {
	return fmt.Errorf("storage key %q: %w", key, apperrors.ErrNotFound)
}
