package local

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/prolink/prolink-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Backend is the embedded emulator. It implements prolink.Backend.
type Backend struct {
	db     *bun.DB
	logger prolink.Logger

	signingKey   []byte
	tokenTTL     time.Duration
	profileDelay time.Duration

	auth    *authAPI
	data    *dataAPI
	hub     *hub
	storage *memStorage

	mu       sync.RWMutex
	session  *prolink.Session
	handlers map[int]prolink.AuthChangeHandler
	nextID   int

	// emitMu serializes auth event dispatch, mirroring the hosted
	// SDK's single dispatch goroutine.
	emitMu sync.Mutex

	triggers sync.WaitGroup
}

type Option func(*Backend)

// WithLogger overrides the backend logger.
func WithLogger(l prolink.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSigningKey sets the HS256 key used to mint access tokens.
func WithSigningKey(key []byte) Option {
	return func(b *Backend) {
		if len(key) > 0 {
			b.signingKey = key
		}
	}
}

// WithTokenTTL sets the access token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		if ttl > 0 {
			b.tokenTTL = ttl
		}
	}
}

// WithProfileDelay sets how long the simulated profiles trigger waits
// before writing the profile row. Zero writes it synchronously, which
// sidesteps the retry path in tests that do not exercise it.
func WithProfileDelay(d time.Duration) Option {
	return func(b *Backend) {
		b.profileDelay = d
	}
}

// New opens an in-memory database and prepares the schema.
func New(opts ...Option) (*Backend, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("local: open database: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	b := &Backend{
		db:           db,
		logger:       noopLogger{},
		signingKey:   []byte("local-dev-signing-key"),
		tokenTTL:     time.Hour,
		profileDelay: 50 * time.Millisecond,
		handlers:     map[int]prolink.AuthChangeHandler{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	b.hub = newHub()
	b.storage = newMemStorage()
	b.data = &dataAPI{backend: b}
	b.auth = &authAPI{backend: b}

	if err := b.createSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) Auth() prolink.AuthAPI         { return b.auth }
func (b *Backend) Data() prolink.DataAPI         { return b.data }
func (b *Backend) Realtime() prolink.RealtimeAPI { return b.hub }
func (b *Backend) Storage() prolink.StorageAPI   { return b.storage }

var _ prolink.Backend = (*Backend)(nil)

// WaitForTriggers blocks until every pending profile trigger has run.
// Test helper; production callers rely on the loader's retry budget.
func (b *Backend) WaitForTriggers() {
	b.triggers.Wait()
}

// Close tears down the database.
func (b *Backend) Close() error {
	b.triggers.Wait()
	return b.db.Close()
}

func (b *Backend) createSchema(ctx context.Context) error {
	models := []any{
		(*localUser)(nil),
		(*prolink.Profile)(nil),
		(*prolink.Job)(nil),
		(*prolink.Proposal)(nil),
		(*prolink.Message)(nil),
		(*prolink.Notification)(nil),
	}
	for _, model := range models {
		if _, err := b.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("local: create schema: %w", err)
		}
	}
	return nil
}

func (b *Backend) currentSession() *prolink.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

func (b *Backend) setSession(session *prolink.Session) {
	b.mu.Lock()
	b.session = session
	b.mu.Unlock()
}

func (b *Backend) onAuthChange(handler prolink.AuthChangeHandler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *Backend) emit(event prolink.AuthEventKind, session *prolink.Session) {
	b.mu.RLock()
	handlers := make([]prolink.AuthChangeHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.emitMu.Lock()
	defer b.emitMu.Unlock()
	for _, h := range handlers {
		h(event, session)
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
