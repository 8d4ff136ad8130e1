package supabase

import (
	"sync"

	"github.com/prolink/prolink-go"
)

// Client is the project connection. It implements prolink.Backend and
// owns the session the auth surface hands out.
type Client struct {
	config Config
	logger prolink.Logger

	auth     *authAPI
	data     *dataAPI
	realtime *realtimeAPI
	storage  *storageAPI

	mu       sync.RWMutex
	session  *prolink.Session
	handlers map[int]prolink.AuthChangeHandler
	nextID   int

	// emitMu serializes event dispatch; handlers that call back into
	// the client synchronously will deadlock on it, which is why the
	// auth context defers its profile fetch off the event path.
	emitMu sync.Mutex
}

// NewClient connects to the project described by cfg.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	c := &Client{
		config:   cfg,
		logger:   logger,
		handlers: map[int]prolink.AuthChangeHandler{},
	}
	c.auth = &authAPI{client: c}
	c.data = &dataAPI{client: c}
	c.realtime = newRealtimeAPI(c)
	c.storage = &storageAPI{client: c}
	return c, nil
}

func (c *Client) Auth() prolink.AuthAPI         { return c.auth }
func (c *Client) Data() prolink.DataAPI         { return c.data }
func (c *Client) Realtime() prolink.RealtimeAPI { return c.realtime }
func (c *Client) Storage() prolink.StorageAPI   { return c.storage }

// RestoreSession seeds a previously persisted session, e.g. from a
// cookie, and announces it on the change stream.
func (c *Client) RestoreSession(session *prolink.Session) {
	c.setSession(session)
	if session != nil {
		c.emit(prolink.AuthEventInitialSession, session)
	}
}

func (c *Client) currentSession() *prolink.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) setSession(session *prolink.Session) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
}

// accessToken returns the bearer for authenticated requests, falling
// back to the anon key for public access.
func (c *Client) accessToken() string {
	if s := c.currentSession(); s != nil && s.AccessToken != "" {
		return s.AccessToken
	}
	return c.config.AnonKey
}

func (c *Client) onAuthChange(handler prolink.AuthChangeHandler) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[id] = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// emit delivers an auth event to every registered handler, in
// registration order not guaranteed. Dispatch is serialized.
func (c *Client) emit(event prolink.AuthEventKind, session *prolink.Session) {
	c.mu.RLock()
	handlers := make([]prolink.AuthChangeHandler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	for _, h := range handlers {
		h(event, session)
	}
}

// Close shuts down the realtime socket, if one was opened.
func (c *Client) Close() error {
	return c.realtime.close()
}

var _ prolink.Backend = (*Client)(nil)

type defLogger struct{}

func (defLogger) Debug(string, ...any) {}
func (defLogger) Info(string, ...any)  {}
func (defLogger) Warn(string, ...any)  {}
func (defLogger) Error(string, ...any) {}
