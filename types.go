package prolink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// AuthEventKind identifies the kind of auth-state change reported by
// the backend's change stream.
type AuthEventKind string

const (
	AuthEventInitialSession AuthEventKind = "INITIAL_SESSION"
	AuthEventSignedIn       AuthEventKind = "SIGNED_IN"
	AuthEventSignedOut      AuthEventKind = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthChangeHandler receives auth-state change events. The session is
// nil for sign-out and expiry events.
type AuthChangeHandler func(event AuthEventKind, session *Session)

// SignUpMetadata is the profile seed attached to account creation. The
// backend's profiles trigger consumes it asynchronously after the auth
// record exists.
type SignUpMetadata struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}

// AuthAPI is the authentication surface of the backend collaborator.
type AuthAPI interface {
	SignUp(ctx context.Context, email, password string, metadata SignUpMetadata) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error

	// CurrentSession returns the session the backend SDK already holds,
	// or nil when none was restored. It must not block on network I/O
	// beyond what session restoration requires.
	CurrentSession(ctx context.Context) (*Session, error)

	// OnAuthChange registers a handler on the backend's auth-state
	// change stream and returns the matching unsubscribe function.
	// Handlers may be invoked from the SDK's internal dispatch
	// goroutine and must not call back into the SDK synchronously.
	OnAuthChange(handler AuthChangeHandler) (unsubscribe func())
}

// Query narrows a table read. Match entries are ANDed equality
// filters; each AnyOf entry is a group of equality filters ORed with
// the other groups.
type Query struct {
	Match      map[string]any
	AnyOf      []map[string]any
	OrderBy    string
	Descending bool
	Limit      int
}

// DataAPI is the relational surface of the backend collaborator.
// Implementations must return a not-found error distinguishable via
// IsNotFound from every other failure kind.
type DataAPI interface {
	SelectOne(ctx context.Context, table string, match map[string]any, dest any) error
	Select(ctx context.Context, table string, q Query, dest any) error
	Insert(ctx context.Context, table string, record, dest any) error
	Update(ctx context.Context, table string, match map[string]any, fields map[string]any) error
	Delete(ctx context.Context, table string, match map[string]any) error
}

// ChangeEvent is a single row change reported by the realtime feed.
type ChangeEvent struct {
	Table  string
	Kind   ChangeKind
	Record map[string]any
}

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// Subscription selects the change feed slice a consumer wants.
// Filter uses column=eq.value syntax, matching the hosted service.
type Subscription struct {
	Table  string
	Kinds  []ChangeKind
	Filter string
}

// RealtimeAPI is the change-feed surface of the backend collaborator.
type RealtimeAPI interface {
	Subscribe(ctx context.Context, sub Subscription, handler func(ChangeEvent)) (unsubscribe func(), err error)
}

// ObjectRef points at a stored object.
type ObjectRef struct {
	Bucket    string
	Path      string
	PublicURL string
}

// UploadOptions carries content metadata for an object upload.
type UploadOptions struct {
	ContentType string
	Size        int64
}

// StorageAPI is the object-storage surface of the backend collaborator.
type StorageAPI interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, opts UploadOptions) (*ObjectRef, error)
	Remove(ctx context.Context, bucket string, paths []string) error
	PublicURL(bucket, path string) string
}

// Backend is the full contract of the hosted backend collaborator.
type Backend interface {
	Auth() AuthAPI
	Data() DataAPI
	Realtime() RealtimeAPI
	Storage() StorageAPI
}

// Navigator receives the navigation decisions the auth context makes
// after sign-in, sign-up and sign-out. Embedders that own routing
// implement it; the default is a no-op.
type Navigator interface {
	NavigateTo(path string)
}

// Notifier surfaces user-facing notices (the toast equivalent).
// Operations report through it and still return the error to the
// caller so forms can keep their own submitting state accurate.
type Notifier interface {
	Success(title, detail string)
	Error(title, detail string)
}

type noopNavigator struct{}

func (noopNavigator) NavigateTo(string) {}

type noopNotifier struct{}

func (noopNotifier) Success(string, string) {}
func (noopNotifier) Error(string, string)   {}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] PROLINK "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] PROLINK "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] PROLINK "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] PROLINK "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// decodeRecord maps a change-event record onto a typed row through its
// json tags.
func decodeRecord[T any](record map[string]any) (T, bool) {
	var out T
	raw, err := json.Marshal(record)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}
