package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/prolink/prolink-go"
)

// authAPI is the GoTrue surface: password sign-up, password grant,
// logout and the auth-change stream.
type authAPI struct {
	client *Client
}

var _ prolink.AuthAPI = (*authAPI)(nil)

// sessionResponse is the GoTrue token envelope.
type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

type userResponse struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	CreatedAt        *time.Time     `json:"created_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

func (r *sessionResponse) toSession() *prolink.Session {
	if r == nil || r.AccessToken == "" {
		return nil
	}
	s := &prolink.Session{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		User:         r.User.toUser(),
	}
	if r.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
		s.ExpiresAt = &exp
	}
	return s
}

func (u *userResponse) toUser() *prolink.User {
	if u == nil {
		return nil
	}
	return &prolink.User{
		ID:             u.ID,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmedAt != nil,
		CreatedAt:      u.CreatedAt,
		Metadata:       u.UserMetadata,
	}
}

func (a *authAPI) SignUp(ctx context.Context, email, password string, metadata prolink.SignUpMetadata) (*prolink.Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}

	var res sessionResponse
	if err := a.post(ctx, "/auth/v1/signup", payload, &res, mapAuthError); err != nil {
		return nil, err
	}

	// Projects with email confirmation enabled return a user but no
	// tokens; the caller treats a nil session as "check your inbox".
	session := res.toSession()
	if session != nil {
		a.client.setSession(session)
		a.client.emit(prolink.AuthEventSignedIn, session)
	}
	return session, nil
}

func (a *authAPI) SignInWithPassword(ctx context.Context, email, password string) (*prolink.Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
	}

	var res sessionResponse
	if err := a.post(ctx, "/auth/v1/token?grant_type=password", payload, &res, mapAuthError); err != nil {
		return nil, err
	}

	session := res.toSession()
	if session == nil {
		return nil, wrapUnavailable(http.StatusOK, "token response missing access token")
	}

	a.client.setSession(session)
	a.client.emit(prolink.AuthEventSignedIn, session)
	return session, nil
}

// RefreshSession exchanges the stored refresh token for a new session
// and announces it as TOKEN_REFRESHED.
func (a *authAPI) RefreshSession(ctx context.Context) (*prolink.Session, error) {
	current := a.client.currentSession()
	if current == nil || current.RefreshToken == "" {
		return nil, prolink.ErrNotAuthenticated
	}

	payload := map[string]any{"refresh_token": current.RefreshToken}

	var res sessionResponse
	if err := a.post(ctx, "/auth/v1/token?grant_type=refresh_token", payload, &res, mapAuthError); err != nil {
		return nil, err
	}

	session := res.toSession()
	if session == nil {
		return nil, wrapUnavailable(http.StatusOK, "refresh response missing access token")
	}

	a.client.setSession(session)
	a.client.emit(prolink.AuthEventTokenRefreshed, session)
	return session, nil
}

func (a *authAPI) SignOut(ctx context.Context) error {
	session := a.client.currentSession()
	if session == nil {
		return nil
	}

	// Sign-out is only confirmed by the service; a failed revocation
	// keeps the session so the caller stays authenticated.
	if err := a.post(ctx, "/auth/v1/logout", nil, nil, mapAuthError); err != nil {
		return err
	}

	a.client.setSession(nil)
	a.client.emit(prolink.AuthEventSignedOut, nil)
	return nil
}

func (a *authAPI) CurrentSession(ctx context.Context) (*prolink.Session, error) {
	session := a.client.currentSession()
	if session == nil {
		return nil, nil
	}
	if session.Expired(time.Now()) {
		return a.RefreshSession(ctx)
	}
	return session, nil
}

func (a *authAPI) OnAuthChange(handler prolink.AuthChangeHandler) func() {
	return a.client.onAuthChange(handler)
}

// post issues an authenticated JSON request against the auth surface.
func (a *authAPI) post(ctx context.Context, path string, payload, dest any, mapErr func(int, []byte) error) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.config.baseURL()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", a.client.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+a.client.accessToken())

	res, err := a.client.config.httpClient().Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return wrapTransport(err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return mapErr(res.StatusCode, raw)
	}

	if dest != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			return wrapUnavailable(res.StatusCode, "malformed response body")
		}
	}
	return nil
}
