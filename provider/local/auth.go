package local

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/prolink/prolink-go"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// localUser is the auth-side account record, separate from the profile
// row the trigger writes later.
type localUser struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID  `bun:"id,pk,type:uuid"`
	Email        string     `bun:"email,notnull,unique"`
	PasswordHash string     `bun:"password_hash,notnull"`
	FirstName    string     `bun:"first_name"`
	LastName     string     `bun:"last_name"`
	Role         string     `bun:"role"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// authAPI emulates the hosted auth surface.
type authAPI struct {
	backend *Backend
}

var _ prolink.AuthAPI = (*authAPI)(nil)

func (a *authAPI) SignUp(ctx context.Context, email, password string, metadata prolink.SignUpMetadata) (*prolink.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, prolink.NewValidationError("a valid email address is required")
	}
	if len(password) < 8 {
		return nil, prolink.NewValidationError("password must be at least 8 characters")
	}
	if !metadata.Role.IsValid() {
		return nil, prolink.NewValidationError("role must be client or professional")
	}

	exists, err := a.backend.db.NewSelect().Model((*localUser)(nil)).
		Where("email = ?", email).
		Exists(ctx)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	if exists {
		return nil, prolink.NewValidationError("an account with this email already exists")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	// Deterministic id from the email so repeated seeds of the same
	// account land on the same row across emulator restarts.
	id, err := hashid.NewUUID(email)
	if err != nil {
		id = uuid.New()
	}

	user := &localUser{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		FirstName:    metadata.FirstName,
		LastName:     metadata.LastName,
		Role:         string(metadata.Role),
	}
	if _, err := a.backend.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, wrapUnavailable(err)
	}

	a.scheduleProfileTrigger(user)

	session, err := a.mintSession(user)
	if err != nil {
		return nil, err
	}
	a.backend.setSession(session)
	a.backend.emit(prolink.AuthEventSignedIn, session)
	return session, nil
}

// scheduleProfileTrigger mimics the hosted service's profiles trigger:
// the row appears after a delay, not with the auth record, so clients
// must tolerate the gap.
func (a *authAPI) scheduleProfileTrigger(user *localUser) {
	a.backend.triggers.Add(1)
	go func() {
		defer a.backend.triggers.Done()

		if a.backend.profileDelay > 0 {
			time.Sleep(a.backend.profileDelay)
		}

		profile := &prolink.Profile{
			ID:        user.ID,
			Role:      prolink.Role(user.Role),
			FirstName: user.FirstName,
			LastName:  user.LastName,
		}

		ctx := context.Background()
		if _, err := a.backend.db.NewInsert().Model(profile).Exec(ctx); err != nil {
			a.backend.logger.Error("profiles trigger failed for %s: %v", user.ID, err)
			return
		}
		a.backend.hub.publish(prolink.ChangeEvent{
			Table:  prolink.TableProfiles,
			Kind:   prolink.ChangeInsert,
			Record: recordOf(profile),
		})
	}()
}

func (a *authAPI) SignInWithPassword(ctx context.Context, email, password string) (*prolink.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user := &localUser{}
	err := a.backend.db.NewSelect().Model(user).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, prolink.ErrInvalidCredentials
		}
		return nil, wrapUnavailable(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, prolink.ErrInvalidCredentials
	}

	session, err := a.mintSession(user)
	if err != nil {
		return nil, err
	}
	a.backend.setSession(session)
	a.backend.emit(prolink.AuthEventSignedIn, session)
	return session, nil
}

func (a *authAPI) SignOut(ctx context.Context) error {
	if a.backend.currentSession() == nil {
		return nil
	}
	a.backend.setSession(nil)
	a.backend.emit(prolink.AuthEventSignedOut, nil)
	return nil
}

func (a *authAPI) CurrentSession(ctx context.Context) (*prolink.Session, error) {
	session := a.backend.currentSession()
	if session == nil || session.Expired(time.Now()) {
		return nil, nil
	}
	return session, nil
}

func (a *authAPI) OnAuthChange(handler prolink.AuthChangeHandler) func() {
	return a.backend.onAuthChange(handler)
}

// mintSession issues an HS256 access token carrying the identity and
// the sign-up role seed.
func (a *authAPI) mintSession(user *localUser) (*prolink.Session, error) {
	now := time.Now()
	expires := now.Add(a.backend.tokenTTL)

	claims := jwt.MapClaims{
		"iss":   "prolink-local",
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(expires),
		"user_metadata": map[string]any{
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"role":       user.Role,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.backend.signingKey)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	return &prolink.Session{
		AccessToken:  signed,
		TokenType:    "bearer",
		RefreshToken: uuid.NewString(),
		ExpiresAt:    &expires,
		User: &prolink.User{
			ID:             user.ID.String(),
			Email:          user.Email,
			EmailConfirmed: true,
			CreatedAt:      user.CreatedAt,
			Metadata: map[string]any{
				"first_name": user.FirstName,
				"last_name":  user.LastName,
				"role":       user.Role,
			},
		},
	}, nil
}

// hashPassword generates a password hash.
func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

func wrapUnavailable(err error) error {
	return goerrors.Wrap(prolink.ErrBackendUnavailable, goerrors.CategoryOperation, "database failure").
		WithMetadata(map[string]any{"cause": err.Error()})
}
