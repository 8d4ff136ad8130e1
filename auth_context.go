package prolink

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// AuthState is a consistent snapshot of "who is signed in and as
// what role". Resolving is true from Start until the first of the
// explicit session check or an auth-state event has settled.
type AuthState struct {
	Session   *Session
	User      *User
	Profile   *Profile
	Resolving bool
}

// AuthContext composes the session mirror and the profile loader into
// the single source of truth for authentication state. It is the only
// component that mutates Session/User/Profile; consumers read
// snapshots. Safe for concurrent use.
type AuthContext struct {
	backend  Backend
	loader   *ProfileLoader
	nav      Navigator
	notifier Notifier
	logger   Logger

	mu          sync.RWMutex
	session     *Session
	user        *User
	profile     *Profile
	resolving   bool
	generation  uint64
	fetchingFor string

	// explicitAuth counts in-flight SignIn/SignUp backend calls. Events
	// the SDK emits during those calls must not schedule a deferred
	// profile fetch; the explicit call fetches the profile itself.
	explicitAuth int

	runCtx    context.Context
	runCancel context.CancelFunc

	unsubscribe func()
	tasks       chan func()
	done        chan struct{}
	startOnce   sync.Once
	closeOnce   sync.Once
}

type AuthContextOption func(*AuthContext)

// WithLogger overrides the context's logger.
func WithLogger(l Logger) AuthContextOption {
	return func(ac *AuthContext) {
		if l != nil {
			ac.logger = l
		}
	}
}

// WithNavigator wires the navigation sink that receives post-auth
// destinations.
func WithNavigator(n Navigator) AuthContextOption {
	return func(ac *AuthContext) {
		if n != nil {
			ac.nav = n
		}
	}
}

// WithNotifier wires the user-facing notification sink.
func WithNotifier(n Notifier) AuthContextOption {
	return func(ac *AuthContext) {
		if n != nil {
			ac.notifier = n
		}
	}
}

// WithProfileLoader replaces the default loader, mostly to shrink the
// retry budget in tests.
func WithProfileLoader(pl *ProfileLoader) AuthContextOption {
	return func(ac *AuthContext) {
		if pl != nil {
			ac.loader = pl
		}
	}
}

// NewAuthContext builds an auth context over the given backend. Call
// Start to register the auth-state listener and restore any existing
// session, and Close to tear the subscription down.
func NewAuthContext(backend Backend, opts ...AuthContextOption) *AuthContext {
	ac := &AuthContext{
		backend:   backend,
		nav:       noopNavigator{},
		notifier:  noopNotifier{},
		logger:    defLogger{},
		resolving: true,
		tasks:     make(chan func(), 64),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ac)
		}
	}

	if ac.loader == nil {
		ac.loader = NewProfileLoader(backend.Data(), WithLoaderLogger(ac.logger))
	}

	return ac
}

// Start registers the auth-state change listener and then performs the
// one-shot current-session check. The listener MUST be registered
// first so no event is missed between the two; both paths converge to
// the same state without duplicating profile fetches.
func (ac *AuthContext) Start(ctx context.Context) error {
	var err error
	ac.startOnce.Do(func() {
		ac.runCtx, ac.runCancel = context.WithCancel(context.WithoutCancel(ctx))

		go ac.dispatchLoop()

		ac.unsubscribe = ac.backend.Auth().OnAuthChange(ac.handleAuthChange)

		// Restore a session established before the listener existed
		// (initial page load).
		session, serr := ac.backend.Auth().CurrentSession(ctx)
		if serr != nil {
			ac.logger.Error("current session check failed: %v", serr)
			ac.mu.Lock()
			ac.resolving = false
			ac.mu.Unlock()
			err = goerrors.Wrap(serr, ErrBackendUnavailable.Category, ErrBackendUnavailable.Message).
				WithTextCode(ErrBackendUnavailable.TextCode)
			return
		}

		ac.mu.Lock()
		// An auth event may have raced ahead of the one-shot check; if
		// so the listener already owns the state and the restored copy
		// is stale.
		if ac.generation == 0 {
			ac.session = session
			if session != nil {
				ac.user = session.User
			}
		}
		ac.resolving = false
		fetchID := ac.pendingFetchLocked()
		ac.mu.Unlock()

		if fetchID != "" {
			ac.schedule(func() { ac.completeProfileFetch(fetchID) })
		}
	})
	return err
}

// Close tears down the listener and stops the dispatch goroutine.
func (ac *AuthContext) Close() {
	ac.closeOnce.Do(func() {
		if ac.unsubscribe != nil {
			ac.unsubscribe()
		}
		if ac.runCancel != nil {
			ac.runCancel()
		}
		close(ac.done)
	})
}

// State returns a snapshot of the current auth state.
func (ac *AuthContext) State() AuthState {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return AuthState{
		Session:   ac.session,
		User:      ac.user,
		Profile:   ac.profile,
		Resolving: ac.resolving,
	}
}

// CurrentUser returns the signed-in identity, or nil.
func (ac *AuthContext) CurrentUser() *User {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.user
}

// CurrentProfile returns the cached profile, or nil when it has not
// resolved yet.
func (ac *AuthContext) CurrentProfile() *Profile {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.profile
}

// CurrentSession returns the mirrored session, or nil.
func (ac *AuthContext) CurrentSession() *Session {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.session
}

// Resolving reports whether the initial auth state is still settling.
func (ac *AuthContext) Resolving() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.resolving
}

// SignUp creates an account. The role-seeded profile row is created by
// a backend trigger after the auth record exists, so the post-auth
// profile fetch rides the loader's retry budget. Returns the chosen
// destination path; no navigation happens when account creation fails.
func (ac *AuthContext) SignUp(ctx context.Context, email, password string, metadata SignUpMetadata) (string, error) {
	ac.beginExplicitAuth()
	session, err := ac.backend.Auth().SignUp(ctx, email, password, metadata)
	ac.endExplicitAuth()
	if err != nil {
		ac.notifier.Error("Registration failed", userMessage(err))
		// Duplicate email, weak password and friends: the backend's
		// message is surfaced verbatim for the form. Anything else is an
		// outage, not a form problem.
		if IsValidationError(err) || IsAuthenticationError(err) {
			return "", err
		}
		return "", goerrors.Wrap(err, ErrBackendUnavailable.Category, "sign up failed").
			WithTextCode(ErrBackendUnavailable.TextCode)
	}

	ac.notifier.Success("Registration successful", "Please check your email for verification link.")

	dest := metadata.Role.DashboardPath()
	if !metadata.Role.IsValid() {
		dest = PathHome
	}

	if session != nil {
		ac.applyAuthChange(AuthEventSignedIn, session, false)
		// Navigation waits for the profile fetch (bounded by the
		// loader's retry budget) so it never routes on a stale role.
		if profile := ac.RefreshProfile(ctx, session.UserID()); profile != nil {
			dest = profile.Role.DashboardPath()
		}
	}

	ac.nav.NavigateTo(dest)
	return dest, nil
}

// SignIn authenticates with email and password, fetches the profile,
// and picks the destination from the profile role: client and
// professional land on their dashboards, an unknown or missing role
// falls back to returnTo (the page the user was bounced from), or the
// home path when there is none. Local session state is untouched on
// failure.
func (ac *AuthContext) SignIn(ctx context.Context, email, password, returnTo string) (string, error) {
	ac.beginExplicitAuth()
	session, err := ac.backend.Auth().SignInWithPassword(ctx, email, password)
	ac.endExplicitAuth()
	if err != nil {
		ac.notifier.Error("Login failed", userMessage(err))
		// Rejected credentials keep their auth category; an unreachable
		// backend must not masquerade as one.
		if IsAuthenticationError(err) || IsValidationError(err) {
			return "", err
		}
		return "", goerrors.Wrap(err, ErrBackendUnavailable.Category, "sign in failed").
			WithTextCode(ErrBackendUnavailable.TextCode)
	}

	ac.applyAuthChange(AuthEventSignedIn, session, false)
	ac.notifier.Success("Login successful", "Welcome back!")

	profile := ac.RefreshProfile(ctx, session.UserID())

	dest := returnTo
	if profile != nil && profile.Role.IsValid() {
		dest = profile.Role.DashboardPath()
	}
	if dest == "" {
		dest = PathHome
	}

	ac.nav.NavigateTo(dest)
	return dest, nil
}

// SignOut invalidates the backend session and only then clears local
// state; a failed backend call leaves the user authenticated with an
// error notice.
func (ac *AuthContext) SignOut(ctx context.Context) (string, error) {
	if err := ac.backend.Auth().SignOut(ctx); err != nil {
		ac.notifier.Error("Error", userMessage(err))
		return "", goerrors.Wrap(err, ErrBackendUnavailable.Category, "sign out failed").
			WithTextCode(ErrBackendUnavailable.TextCode)
	}

	ac.applyAuthChange(AuthEventSignedOut, nil, false)
	ac.notifier.Success("Logged out", "You have been successfully logged out.")
	ac.nav.NavigateTo(PathHome)
	return PathHome, nil
}

// UpdateProfile applies a partial update to the signed-in user's own
// profile row and refreshes the cached copy. With no user present it
// returns ErrNotAuthenticated without touching the backend.
func (ac *AuthContext) UpdateProfile(ctx context.Context, fields map[string]any) error {
	user := ac.CurrentUser()
	if user == nil {
		ac.notifier.Error("Not signed in", userMessage(ErrNotAuthenticated))
		return ErrNotAuthenticated
	}

	if _, ok := fields["role"]; ok {
		err := goerrors.New("profile role cannot be changed", goerrors.CategoryValidation).
			WithTextCode("ROLE_IMMUTABLE")
		ac.notifier.Error("Error updating profile", userMessage(err))
		return err
	}
	// Scrub the row key on a copy; the caller's map stays untouched.
	scrubbed := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		scrubbed[k] = v
	}

	if err := ac.backend.Data().Update(ctx, TableProfiles, map[string]any{"id": user.ID}, scrubbed); err != nil {
		ac.notifier.Error("Error updating profile", userMessage(err))
		return goerrors.Wrap(err, ErrBackendUnavailable.Category, "profile update failed").
			WithTextCode(ErrBackendUnavailable.TextCode)
	}

	ac.RefreshProfile(ctx, user.ID)
	ac.notifier.Success("Profile updated", "Your profile has been successfully updated.")
	return nil
}

// RefreshProfile re-runs the profile loader for userID and caches the
// result when that user still owns the session. Consumers that detect
// a stale or missing profile (the route guard) call this directly.
func (ac *AuthContext) RefreshProfile(ctx context.Context, userID string) *Profile {
	if userID == "" {
		return nil
	}

	ac.mu.Lock()
	ac.fetchingFor = userID
	ac.mu.Unlock()

	profile := ac.loader.Load(ctx, userID)
	return ac.storeProfile(userID, profile)
}

// handleAuthChange mirrors a backend auth-state event into local
// state. It runs on the SDK's dispatch goroutine, so it must not call
// back into the backend synchronously.
func (ac *AuthContext) handleAuthChange(event AuthEventKind, session *Session) {
	ac.applyAuthChange(event, session, true)
}

func (ac *AuthContext) applyAuthChange(event AuthEventKind, session *Session, deferFetch bool) {
	ac.mu.Lock()
	ac.generation++
	ac.session = session
	if session != nil {
		ac.user = session.User
	} else {
		ac.user = nil
	}
	if ac.user == nil {
		ac.profile = nil
		ac.fetchingFor = ""
	} else if ac.profile != nil && ac.profile.ID.String() != ac.user.ID {
		ac.profile = nil
	}
	ac.resolving = false

	var fetchID string
	if deferFetch && ac.explicitAuth == 0 {
		fetchID = ac.pendingFetchLocked()
	}
	ac.mu.Unlock()

	ac.logger.Debug("auth state changed: %s user=%s", event, session.UserID())

	if fetchID != "" {
		// The profile fetch must not run inside the SDK's event
		// callback: the SDK dispatches events while holding its
		// internal lock and a synchronous call back into it can
		// deadlock. Hand the fetch to the dispatch goroutine so it
		// runs on a later turn.
		ac.schedule(func() { ac.completeProfileFetch(fetchID) })
	}
}

func (ac *AuthContext) beginExplicitAuth() {
	ac.mu.Lock()
	ac.explicitAuth++
	ac.mu.Unlock()
}

func (ac *AuthContext) endExplicitAuth() {
	ac.mu.Lock()
	ac.explicitAuth--
	ac.mu.Unlock()
}

// pendingFetchLocked marks and returns the user id needing a profile
// fetch, or "" when none is needed or one is already in flight.
func (ac *AuthContext) pendingFetchLocked() string {
	if ac.user == nil || ac.profile != nil {
		return ""
	}
	if ac.fetchingFor == ac.user.ID {
		return ""
	}
	ac.fetchingFor = ac.user.ID
	return ac.user.ID
}

func (ac *AuthContext) completeProfileFetch(userID string) {
	profile := ac.loader.Load(ac.runCtx, userID)
	ac.storeProfile(userID, profile)
}

// storeProfile caches the fetch result only while userID still owns
// the session, so a fetch raced by sign-out or a different sign-in is
// discarded: the last auth event always wins.
func (ac *AuthContext) storeProfile(userID string, profile *Profile) *Profile {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.fetchingFor == userID {
		ac.fetchingFor = ""
	}
	if ac.user == nil || ac.user.ID != userID {
		return profile
	}
	ac.profile = profile
	return profile
}

func (ac *AuthContext) schedule(task func()) {
	select {
	case <-ac.done:
		return
	case ac.tasks <- task:
	default:
		// Queue full; run on a fresh goroutine rather than block the
		// caller, which may be the SDK's dispatch goroutine.
		go task()
	}
}

func (ac *AuthContext) dispatchLoop() {
	for {
		select {
		case <-ac.done:
			return
		case task := <-ac.tasks:
			task()
		}
	}
}
