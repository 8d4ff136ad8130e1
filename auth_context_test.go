package prolink_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prolink/prolink-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sessionFor(userID uuid.UUID, email string) *prolink.Session {
	return &prolink.Session{
		AccessToken: "token-" + userID.String(),
		TokenType:   "bearer",
		User: &prolink.User{
			ID:    userID.String(),
			Email: email,
		},
	}
}

func profileData(userID uuid.UUID, role prolink.Role) *MockDataAPI {
	data := &MockDataAPI{}
	data.On("SelectOne", mock.Anything, prolink.TableProfiles, map[string]any{"id": userID.String()}, mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(3).(*prolink.Profile)
			dest.ID = userID
			dest.Role = role
		}).
		Return(nil)
	return data
}

func newTestAuthContext(t *testing.T, backend *fakeBackend, opts ...prolink.AuthContextOption) (*prolink.AuthContext, *memoryNavigator, *memoryNotifier) {
	t.Helper()

	nav := &memoryNavigator{}
	notifier := &memoryNotifier{}
	sleeper := &recordingSleeper{}

	base := []prolink.AuthContextOption{
		prolink.WithNavigator(nav),
		prolink.WithNotifier(notifier),
		prolink.WithProfileLoader(prolink.NewProfileLoader(backend.Data(), prolink.WithLoaderSleeper(sleeper.sleep))),
	}
	ac := prolink.NewAuthContext(backend, append(base, opts...)...)
	t.Cleanup(ac.Close)
	return ac, nav, notifier
}

func TestStartRegistersListenerBeforeSessionCheck(t *testing.T) {
	backend := newFakeBackend(&MockDataAPI{})
	ac, _, _ := newTestAuthContext(t, backend)

	require.NoError(t, ac.Start(context.Background()))

	assert.Equal(t, []string{"on-auth-change", "current-session"}, backend.auth.callOrder())
	assert.False(t, ac.Resolving())
	assert.Nil(t, ac.CurrentUser())
}

func TestStartRestoresExistingSession(t *testing.T) {
	userID := uuid.New()
	backend := newFakeBackend(profileData(userID, prolink.RoleClient))
	backend.auth.restored = sessionFor(userID, "back@example.com")

	ac, _, _ := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	assert.Equal(t, userID.String(), ac.CurrentUser().ID)
	assert.False(t, ac.Resolving())

	// The profile fetch runs off the startup path.
	assert.Eventually(t, func() bool {
		return ac.CurrentProfile() != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, prolink.RoleClient, ac.CurrentProfile().Role)
}

func TestStartSurfacesSessionCheckFailure(t *testing.T) {
	backend := newFakeBackend(&MockDataAPI{})
	backend.auth.restoredErr = prolink.ErrBackendUnavailable

	ac, _, _ := newTestAuthContext(t, backend)
	err := ac.Start(context.Background())

	assert.Error(t, err)
	// Resolving still settles so the UI is not stuck on a spinner.
	assert.False(t, ac.Resolving())
	assert.Nil(t, ac.CurrentUser())
}

func TestResolvingUntilStart(t *testing.T) {
	backend := newFakeBackend(&MockDataAPI{})
	ac, _, _ := newTestAuthContext(t, backend)

	assert.True(t, ac.Resolving())
}

func TestSignInNavigatesToRoleDashboard(t *testing.T) {
	userID := uuid.New()
	backend := newFakeBackend(profileData(userID, prolink.RoleProfessional))
	backend.auth.signInSession = sessionFor(userID, "pro@example.com")

	ac, nav, notifier := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	dest, err := ac.SignIn(context.Background(), "pro@example.com", "hunter2pass", "")

	require.NoError(t, err)
	assert.Equal(t, prolink.PathProfessionalDashboard, dest)
	assert.Equal(t, []string{prolink.PathProfessionalDashboard}, nav.visited())
	assert.Equal(t, 1, notifier.successCount())
	assert.Equal(t, userID.String(), ac.CurrentUser().ID)
	assert.NotNil(t, ac.CurrentProfile())
}

func TestSignInWithMissingProfileFallsBackToReturnTo(t *testing.T) {
	userID := uuid.New()
	data := &MockDataAPI{}
	data.On("SelectOne", mock.Anything, prolink.TableProfiles, mock.Anything, mock.Anything).
		Return(prolink.ErrProfileNotFound)

	backend := newFakeBackend(data)
	backend.auth.signInSession = sessionFor(userID, "new@example.com")

	ac, nav, _ := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	dest, err := ac.SignIn(context.Background(), "new@example.com", "hunter2pass", "/jobs/42")

	require.NoError(t, err)
	assert.Equal(t, "/jobs/42", dest)
	assert.Equal(t, []string{"/jobs/42"}, nav.visited())
	assert.Nil(t, ac.CurrentProfile())
}

func TestSignInFailureLeavesStateUntouched(t *testing.T) {
	backend := newFakeBackend(&MockDataAPI{})
	backend.auth.signInErr = prolink.ErrInvalidCredentials

	ac, nav, notifier := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	dest, err := ac.SignIn(context.Background(), "who@example.com", "wrong", "")

	assert.Error(t, err)
	assert.True(t, prolink.IsAuthenticationError(err))
	assert.Empty(t, dest)
	assert.Nil(t, ac.CurrentSession())
	assert.Nil(t, ac.CurrentUser())
	assert.Empty(t, nav.visited())
	assert.Equal(t, 1, notifier.errorCount())
	assert.Equal(t, 0, notifier.successCount())
}

func TestSignInOutageSurfacesAsBackendFailure(t *testing.T) {
	backend := newFakeBackend(&MockDataAPI{})
	backend.auth.signInErr = prolink.ErrBackendUnavailable

	ac, nav, notifier := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	_, err := ac.SignIn(context.Background(), "c@example.com", "hunter2pass", "")

	require.Error(t, err)
	// An unreachable backend is not a credentials problem.
	assert.ErrorIs(t, err, prolink.ErrBackendUnavailable)
	assert.False(t, prolink.IsAuthenticationError(err))
	assert.False(t, prolink.IsValidationError(err))
	assert.Empty(t, nav.visited())
	assert.Equal(t, 1, notifier.errorCount())
}

func TestSignUpNavigatesBySeededRole(t *testing.T) {
	backend := newFakeBackend(&MockDataAPI{})
	// Email confirmation flow: account created, no session returned.
	backend.auth.signUpSession = nil

	ac, nav, notifier := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	dest, err := ac.SignUp(context.Background(), "new@example.com", "hunter2pass", prolink.SignUpMetadata{
		FirstName: "Dana",
		LastName:  "Fox",
		Role:      prolink.RoleClient,
	})

	require.NoError(t, err)
	assert.Equal(t, prolink.PathClientDashboard, dest)
	assert.Equal(t, []string{prolink.PathClientDashboard}, nav.visited())
	assert.Equal(t, 1, notifier.successCount())
}

func TestSignUpSurfacesBackendRejectionVerbatim(t *testing.T) {
	backend := newFakeBackend(&MockDataAPI{})
	backend.auth.signUpErr = prolink.NewValidationError("an account with this email already exists")

	ac, nav, notifier := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	_, err := ac.SignUp(context.Background(), "dupe@example.com", "hunter2pass", prolink.SignUpMetadata{Role: prolink.RoleClient})

	require.Error(t, err)
	assert.True(t, prolink.IsValidationError(err))
	assert.Contains(t, err.Error(), "already exists")
	assert.Empty(t, nav.visited())
	assert.Equal(t, 1, notifier.errorCount())
}

func TestSignUpOutageSurfacesAsBackendFailure(t *testing.T) {
	backend := newFakeBackend(&MockDataAPI{})
	backend.auth.signUpErr = prolink.ErrBackendUnavailable

	ac, nav, notifier := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	_, err := ac.SignUp(context.Background(), "new@example.com", "hunter2pass", prolink.SignUpMetadata{Role: prolink.RoleClient})

	require.Error(t, err)
	assert.ErrorIs(t, err, prolink.ErrBackendUnavailable)
	assert.False(t, prolink.IsValidationError(err))
	assert.Empty(t, nav.visited())
	assert.Equal(t, 1, notifier.errorCount())
}

func TestSignOutClearsStateAndNavigatesHome(t *testing.T) {
	userID := uuid.New()
	backend := newFakeBackend(profileData(userID, prolink.RoleClient))
	backend.auth.signInSession = sessionFor(userID, "c@example.com")

	ac, nav, _ := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))
	_, err := ac.SignIn(context.Background(), "c@example.com", "hunter2pass", "")
	require.NoError(t, err)

	dest, err := ac.SignOut(context.Background())

	require.NoError(t, err)
	assert.Equal(t, prolink.PathHome, dest)
	assert.Nil(t, ac.CurrentSession())
	assert.Nil(t, ac.CurrentUser())
	assert.Nil(t, ac.CurrentProfile())
	assert.Equal(t, prolink.PathHome, nav.visited()[len(nav.visited())-1])
}

func TestSignOutBackendFailureKeepsLocalState(t *testing.T) {
	userID := uuid.New()
	backend := newFakeBackend(profileData(userID, prolink.RoleClient))
	backend.auth.signInSession = sessionFor(userID, "c@example.com")

	ac, _, notifier := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))
	_, err := ac.SignIn(context.Background(), "c@example.com", "hunter2pass", "")
	require.NoError(t, err)

	backend.auth.signOutErr = prolink.ErrBackendUnavailable
	_, err = ac.SignOut(context.Background())

	assert.Error(t, err)
	assert.NotNil(t, ac.CurrentUser())
	assert.NotNil(t, ac.CurrentProfile())
	assert.Equal(t, 1, notifier.errorCount())
}

func TestUpdateProfileRequiresUser(t *testing.T) {
	data := &MockDataAPI{}
	backend := newFakeBackend(data)

	ac, _, notifier := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	err := ac.UpdateProfile(context.Background(), map[string]any{"bio": "hi"})

	assert.ErrorIs(t, err, prolink.ErrNotAuthenticated)
	assert.Equal(t, 1, notifier.errorCount())
	data.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProfileRejectsRoleChange(t *testing.T) {
	userID := uuid.New()
	data := profileData(userID, prolink.RoleClient)
	backend := newFakeBackend(data)
	backend.auth.signInSession = sessionFor(userID, "c@example.com")

	ac, _, _ := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))
	_, err := ac.SignIn(context.Background(), "c@example.com", "hunter2pass", "")
	require.NoError(t, err)

	err = ac.UpdateProfile(context.Background(), map[string]any{"role": "professional"})

	assert.Error(t, err)
	assert.True(t, prolink.IsValidationError(err))
	data.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProfileScopesToOwnRow(t *testing.T) {
	userID := uuid.New()
	data := profileData(userID, prolink.RoleClient)
	data.On("Update", mock.Anything, prolink.TableProfiles, map[string]any{"id": userID.String()},
		mock.MatchedBy(func(fields map[string]any) bool {
			_, hasID := fields["id"]
			return !hasID
		})).
		Return(nil).
		Once()

	backend := newFakeBackend(data)
	backend.auth.signInSession = sessionFor(userID, "c@example.com")

	ac, _, notifier := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))
	_, err := ac.SignIn(context.Background(), "c@example.com", "hunter2pass", "")
	require.NoError(t, err)

	fields := map[string]any{
		"bio": "Tiling and bathrooms",
		"id":  "spoofed",
	}
	err = ac.UpdateProfile(context.Background(), fields)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, notifier.successCount(), 2)
	// The caller's map is not scrubbed in place.
	assert.Equal(t, "spoofed", fields["id"])
	data.AssertExpectations(t)
}

func TestSignInWithEventStreamFetchesProfileOnce(t *testing.T) {
	userID := uuid.New()

	var fetches int32
	data := &MockDataAPI{}
	data.On("SelectOne", mock.Anything, prolink.TableProfiles, map[string]any{"id": userID.String()}, mock.Anything).
		Run(func(args mock.Arguments) {
			atomic.AddInt32(&fetches, 1)
			dest := args.Get(3).(*prolink.Profile)
			dest.ID = userID
			dest.Role = prolink.RoleClient
		}).
		Return(nil)

	backend := newFakeBackend(data)
	backend.auth.signInSession = sessionFor(userID, "c@example.com")
	// The hosted SDK announces SIGNED_IN from inside the sign-in call;
	// that event must not double the explicit fetch.
	backend.auth.emitOnSignIn = true

	ac, _, _ := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	_, err := ac.SignIn(context.Background(), "c@example.com", "hunter2pass", "")
	require.NoError(t, err)
	require.NotNil(t, ac.CurrentProfile())

	assert.Never(t, func() bool {
		return atomic.LoadInt32(&fetches) > 1
	}, 150*time.Millisecond, 10*time.Millisecond)
}

func TestAuthEventsMirrorIntoState(t *testing.T) {
	userID := uuid.New()
	backend := newFakeBackend(profileData(userID, prolink.RoleClient))

	ac, _, _ := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	backend.auth.emit(prolink.AuthEventSignedIn, sessionFor(userID, "c@example.com"))

	assert.Equal(t, userID.String(), ac.CurrentUser().ID)
	assert.Eventually(t, func() bool {
		return ac.CurrentProfile() != nil
	}, time.Second, 5*time.Millisecond)

	backend.auth.emit(prolink.AuthEventSignedOut, nil)

	assert.Nil(t, ac.CurrentUser())
	assert.Nil(t, ac.CurrentProfile())
}

func TestRapidSignInSignOutEndsSignedOut(t *testing.T) {
	userID := uuid.New()

	release := make(chan struct{})
	data := &MockDataAPI{}
	data.On("SelectOne", mock.Anything, prolink.TableProfiles, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-release
			dest := args.Get(3).(*prolink.Profile)
			dest.ID = userID
			dest.Role = prolink.RoleClient
		}).
		Return(nil).
		Maybe()

	backend := newFakeBackend(data)
	ac, _, _ := newTestAuthContext(t, backend)
	require.NoError(t, ac.Start(context.Background()))

	// Sign-in event schedules a profile fetch that is still in flight
	// when the sign-out event lands.
	backend.auth.emit(prolink.AuthEventSignedIn, sessionFor(userID, "c@example.com"))
	backend.auth.emit(prolink.AuthEventSignedOut, nil)
	close(release)

	assert.Nil(t, ac.CurrentUser())
	// The late fetch result must be discarded: the last event wins.
	assert.Never(t, func() bool {
		return ac.CurrentProfile() != nil
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestCloseUnsubscribesListener(t *testing.T) {
	backend := newFakeBackend(&MockDataAPI{})
	ac := prolink.NewAuthContext(backend)
	require.NoError(t, ac.Start(context.Background()))
	require.Equal(t, 1, backend.auth.handlerCount())

	ac.Close()

	assert.Equal(t, 0, backend.auth.handlerCount())
}
