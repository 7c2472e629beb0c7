package auth

import (
	"context"

	"github.com/dukerupert/chorewheel/internal/model"
)

type contextKey struct{}

// Context carries the authenticated user's identity and role, resolved once
// per request by the auth middleware.
type Context struct {
	UserID int64
	Role   model.Role
}

func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(Context)
	return ac, ok
}

func (c Context) IsParent() bool {
	return c.Role == model.RoleParent
}

func (c Context) IsChild() bool {
	return c.Role == model.RoleChild
}
