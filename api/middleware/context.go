package middleware

import (
	"context"
	"time"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Identity is what Auth learned about the caller from the bearer token.
type Identity struct {
	UserID    string
	Role      enums.UserRole
	AccessID  string
	ExpiresAt time.Time
}

type identityKey struct{}

// WithIdentity stores id for downstream handlers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller identity, if Auth ran.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func identity(ctx context.Context) Identity {
	id, _ := IdentityFromContext(ctx)
	return id
}

func UserIDFromContext(ctx context.Context) string { return identity(ctx).UserID }

func RoleFromContext(ctx context.Context) string { return string(identity(ctx).Role) }

// AccessIDFromContext returns the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string { return identity(ctx).AccessID }

// AccessExpiryFromContext returns the expiry of the token that authenticated the request.
func AccessExpiryFromContext(ctx context.Context) time.Time { return identity(ctx).ExpiresAt }

// WithUserID sets the caller's user id, keeping the rest of the identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	id := identity(ctx)
	id.UserID = userID
	return WithIdentity(ctx, id)
}

// WithRole sets the caller's role, keeping the rest of the identity.
func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	id := identity(ctx)
	id.Role = role
	return WithIdentity(ctx, id)
}
