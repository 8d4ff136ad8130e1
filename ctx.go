package prolink

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var profileCtxKey = &contextKey{"profile"}

// Router locals keys the guard middleware stashes the identity under.
const (
	LocalUserKey    = "user"
	LocalProfileKey = "profile"
)

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithProfileContext sets the Profile in the given context
func WithProfileContext(r context.Context, profile *Profile) context.Context {
	return context.WithValue(r, profileCtxKey, profile)
}

// ProfileFromContext finds the profile from the context.
func ProfileFromContext(ctx context.Context) (*Profile, bool) {
	raw, ok := ctx.Value(profileCtxKey).(*Profile)
	return raw, ok
}

// GetRouterUser extracts the User from the router context
func GetRouterUser(ctx router.Context, key string) (*User, bool) {
	if key == "" {
		key = LocalUserKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	user, ok := raw.(*User)
	return user, ok
}

// GetRouterProfile extracts the Profile from the router context
func GetRouterProfile(ctx router.Context, key string) (*Profile, bool) {
	if key == "" {
		key = LocalProfileKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	profile, ok := raw.(*Profile)
	return profile, ok
}

// HasRole is a convenience function to check the signed-in profile's
// role directly from the standard context.
func HasRole(ctx context.Context, role Role) bool {
	profile, ok := ProfileFromContext(ctx)
	if !ok || profile == nil {
		return false
	}
	return profile.Role == role
}

// HasRoleFromRouter is a convenience function to check the signed-in
// profile's role directly from the router context.
func HasRoleFromRouter(ctx router.Context, role Role) bool {
	profile, ok := GetRouterProfile(ctx, "")
	if !ok || profile == nil {
		return false
	}
	return profile.Role == role
}
