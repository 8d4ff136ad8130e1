package prolink

import (
	"context"
	"net/http"
	"net/url"

	"github.com/goliatone/go-router"
)

// GuardState is the outcome of evaluating a navigation against the
// current auth state.
type GuardState int

const (
	// GuardResolving: initial auth state still settling; render a
	// loading indicator, make no redirect decision yet.
	GuardResolving GuardState = iota
	// GuardUnauthenticated: no user; redirect to login carrying the
	// requested path as a return-to parameter.
	GuardUnauthenticated
	// GuardProfilePending: user present, profile absent; trigger a
	// profile refresh and stay in a loading state.
	GuardProfilePending
	// GuardRoleMismatch: profile present but its role is outside the
	// required set; redirect to the profile's own dashboard, never an
	// error page.
	GuardRoleMismatch
	// GuardAuthorized: render the requested subtree.
	GuardAuthorized
)

func (s GuardState) String() string {
	switch s {
	case GuardResolving:
		return "resolving"
	case GuardUnauthenticated:
		return "unauthenticated"
	case GuardProfilePending:
		return "profile-pending"
	case GuardRoleMismatch:
		return "role-mismatch"
	case GuardAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// GuardDecision pairs the state with the redirect target, when one
// applies.
type GuardDecision struct {
	State    GuardState
	Redirect string
}

// EvaluateGuard is the guard's decision function: pure in
// {resolving flag, user, profile, required role set} plus the
// requested path used to build the login return-to target. It must be
// re-evaluated on every navigation and every auth state change, never
// cached. An empty required set only demands authentication.
func EvaluateGuard(state AuthState, requestedPath string, required ...Role) GuardDecision {
	if state.Resolving {
		return GuardDecision{State: GuardResolving}
	}

	if state.User == nil {
		return GuardDecision{
			State:    GuardUnauthenticated,
			Redirect: LoginRedirect(requestedPath),
		}
	}

	if len(required) == 0 {
		return GuardDecision{State: GuardAuthorized}
	}

	if state.Profile == nil {
		return GuardDecision{State: GuardProfilePending}
	}

	if !roleSetContains(required, state.Profile.Role) {
		return GuardDecision{
			State:    GuardRoleMismatch,
			Redirect: state.Profile.Role.DashboardPath(),
		}
	}

	return GuardDecision{State: GuardAuthorized}
}

// LoginRedirect builds the login path carrying the originally
// requested path, so a successful sign-in can return the user there.
func LoginRedirect(requestedPath string) string {
	if requestedPath == "" || requestedPath == PathLogin {
		return PathLogin
	}
	return PathLogin + "?redirect=" + url.QueryEscape(requestedPath)
}

// RouteGuard gates access to role-specific subtrees of the navigation
// hierarchy using live auth context state.
type RouteGuard struct {
	auth   *AuthContext
	logger Logger
}

type RouteGuardOption func(*RouteGuard)

// WithGuardLogger overrides the guard's logger.
func WithGuardLogger(l Logger) RouteGuardOption {
	return func(g *RouteGuard) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewRouteGuard builds a guard over the given auth context.
func NewRouteGuard(auth *AuthContext, opts ...RouteGuardOption) *RouteGuard {
	g := &RouteGuard{
		auth:   auth,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Check evaluates the guard for requestedPath. A pending profile
// triggers a refresh through the auth context (bounded by the
// loader's retry budget) and the decision is re-evaluated once, so
// callers see ProfilePending only when the profile is confirmed
// absent after the refresh.
func (g *RouteGuard) Check(ctx context.Context, requestedPath string, required ...Role) GuardDecision {
	decision := EvaluateGuard(g.auth.State(), requestedPath, required...)

	if decision.State == GuardProfilePending {
		if user := g.auth.CurrentUser(); user != nil {
			g.auth.RefreshProfile(ctx, user.ID)
		}
		decision = EvaluateGuard(g.auth.State(), requestedPath, required...)
	}

	g.logger.Debug("route guard %s -> %s", requestedPath, decision.State)
	return decision
}

// Middleware wraps a protected subtree. Unauthenticated requests are
// redirected to login with the return-to parameter; a signed-in user
// with the wrong role is sent to their own dashboard. Authorized
// requests reach the handler with the user and profile stashed in the
// router locals and in the request context.
func (g *RouteGuard) Middleware(required ...Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			decision := g.Check(c.Context(), c.Path(), required...)

			switch decision.State {
			case GuardAuthorized:
				// Stash the identity where downstream handlers look for
				// it: router locals and the standard context.
				state := g.auth.State()
				c.Locals(LocalUserKey, state.User)
				c.Locals(LocalProfileKey, state.Profile)
				c.SetContext(WithProfileContext(WithContext(c.Context(), state.User), state.Profile))
				return next(c)
			case GuardUnauthenticated, GuardRoleMismatch:
				return c.Redirect(decision.Redirect, http.StatusFound)
			default:
				// Resolving or a profile that never materialized:
				// keep the loading surface, matching the client app.
				return c.JSON(http.StatusAccepted, map[string]string{
					"state": decision.State.String(),
				})
			}
		}
	}
}
