package auth

import (
	"context"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	Role        domain.UserRoleType
	BranchID    uuid.UUID
}

type contextKey string

const userContextKey contextKey = "userContext"
const branchFilterKey contextKey = "branchFilter"

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

// HasRole checks if the user has a specific role
func (u *UserContext) HasRole(role domain.UserRoleType) bool {
	return u.Role == role
}

// HasAnyRole checks if the user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRoleType) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// IsAdmin checks if the user is an admin or the API service identity
func (u *UserContext) IsAdmin() bool {
	return u.HasAnyRole(domain.RoleAdmin, domain.RoleAPIService)
}

// GetBranchFilter returns the branch ID to scope queries by. Nil means no
// filtering (the API service identity without an explicit branch).
func (u *UserContext) GetBranchFilter() *uuid.UUID {
	if u.Role == domain.RoleAPIService && u.BranchID == uuid.Nil {
		return nil
	}
	id := u.BranchID
	return &id
}

// BranchFilter is the effective branch scope for queries. Set by middleware
// from the user context and, for API service callers, the X-Branch-ID header.
type BranchFilter struct {
	// BranchID is the branch to filter by (nil means no filter)
	BranchID *uuid.UUID
}

// WithBranchFilter adds a branch filter to the context
func WithBranchFilter(ctx context.Context, filter *BranchFilter) context.Context {
	return context.WithValue(ctx, branchFilterKey, filter)
}

// BranchFilterFromContext extracts the branch filter from the context
func BranchFilterFromContext(ctx context.Context) (*BranchFilter, bool) {
	filter, ok := ctx.Value(branchFilterKey).(*BranchFilter)
	return filter, ok
}

// GetEffectiveBranchFilter returns the branch ID repositories must scope
// queries by. Returns nil only when no filtering should be applied.
func GetEffectiveBranchFilter(ctx context.Context) *uuid.UUID {
	if filter, ok := BranchFilterFromContext(ctx); ok && filter != nil {
		return filter.BranchID
	}

	if userCtx, ok := FromContext(ctx); ok {
		return userCtx.GetBranchFilter()
	}

	return nil
}
