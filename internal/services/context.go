package services

import (
	"context"

	"shopdesk-realtime/internal/domain/user"
)

type ctxKey string

var identityKey ctxKey = "identity"

// WithIdentity stores the authenticated identity resolved by the auth
// middleware.
func WithIdentity(ctx context.Context, p user.Profile) context.Context {
	return context.WithValue(ctx, identityKey, p)
}

func IdentityFromContext(ctx context.Context) (user.Profile, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return user.Profile{}, false
	}
	p, ok := value.(user.Profile)
	return p, ok
}
