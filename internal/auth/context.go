package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	Role        domain.UserRole
	// ClientID is set for client-portal accounts and scopes their queries
	ClientID *uuid.UUID
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// IsAdmin checks if the user holds the admin role
func (u *UserContext) IsAdmin() bool {
	return u.Role == domain.RoleAdmin
}

// IsStaff checks if the user works the back office (admin or staff)
func (u *UserContext) IsStaff() bool {
	return u.Role == domain.RoleAdmin || u.Role == domain.RoleStaff
}

// CanAccessClient checks if the user may read data belonging to a client.
// Back-office users see everything; portal accounts only their own client.
func (u *UserContext) CanAccessClient(clientID uuid.UUID) bool {
	if u.IsStaff() {
		return true
	}
	return u.ClientID != nil && *u.ClientID == clientID
}

// ClientFilter returns the client ID to scope queries by.
// Returns nil for back-office users (no filtering needed).
func (u *UserContext) ClientFilter() *uuid.UUID {
	if u.IsStaff() {
		return nil
	}
	return u.ClientID
}
