package prolink_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/prolink/prolink-go"
	"github.com/stretchr/testify/mock"
)

// MockDataAPI implements prolink.DataAPI
type MockDataAPI struct {
	mock.Mock
}

func (m *MockDataAPI) SelectOne(ctx context.Context, table string, match map[string]any, dest any) error {
	args := m.Called(ctx, table, match, dest)
	return args.Error(0)
}

func (m *MockDataAPI) Select(ctx context.Context, table string, q prolink.Query, dest any) error {
	args := m.Called(ctx, table, q, dest)
	return args.Error(0)
}

func (m *MockDataAPI) Insert(ctx context.Context, table string, record, dest any) error {
	args := m.Called(ctx, table, record, dest)
	return args.Error(0)
}

func (m *MockDataAPI) Update(ctx context.Context, table string, match map[string]any, fields map[string]any) error {
	args := m.Called(ctx, table, match, fields)
	return args.Error(0)
}

func (m *MockDataAPI) Delete(ctx context.Context, table string, match map[string]any) error {
	args := m.Called(ctx, table, match)
	return args.Error(0)
}

// MockStorageAPI implements prolink.StorageAPI
type MockStorageAPI struct {
	mock.Mock
}

func (m *MockStorageAPI) Upload(ctx context.Context, bucket, path string, body io.Reader, opts prolink.UploadOptions) (*prolink.ObjectRef, error) {
	args := m.Called(ctx, bucket, path, body, opts)
	ref, _ := args.Get(0).(*prolink.ObjectRef)
	return ref, args.Error(1)
}

func (m *MockStorageAPI) Remove(ctx context.Context, bucket string, paths []string) error {
	args := m.Called(ctx, bucket, paths)
	return args.Error(0)
}

func (m *MockStorageAPI) PublicURL(bucket, path string) string {
	args := m.Called(bucket, path)
	return args.String(0)
}

// MockRealtimeAPI implements prolink.RealtimeAPI
type MockRealtimeAPI struct {
	mock.Mock
}

func (m *MockRealtimeAPI) Subscribe(ctx context.Context, sub prolink.Subscription, handler func(prolink.ChangeEvent)) (func(), error) {
	args := m.Called(ctx, sub, handler)
	fn, _ := args.Get(0).(func())
	return fn, args.Error(1)
}

// fakeAuthAPI is a scripted auth surface: SignUp/SignIn return what the
// test configures and the emit helper drives the change stream the way
// the hosted SDK would.
type fakeAuthAPI struct {
	mu sync.Mutex

	signUpSession *prolink.Session
	signUpErr     error
	signInSession *prolink.Session
	signInErr     error
	signOutErr    error
	restored      *prolink.Session
	restoredErr   error

	// emitOnSignIn announces SIGNED_IN from inside a successful
	// SignInWithPassword call, the way the hosted SDK does.
	emitOnSignIn bool

	signUpCalls  int
	signInCalls  int
	signOutCalls int

	// calls records the order of listener registration vs the one-shot
	// session check.
	calls []string

	handlers map[int]prolink.AuthChangeHandler
	nextID   int
}

func newFakeAuthAPI() *fakeAuthAPI {
	return &fakeAuthAPI{handlers: map[int]prolink.AuthChangeHandler{}}
}

func (f *fakeAuthAPI) SignUp(ctx context.Context, email, password string, metadata prolink.SignUpMetadata) (*prolink.Session, error) {
	f.mu.Lock()
	f.signUpCalls++
	session, err := f.signUpSession, f.signUpErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (f *fakeAuthAPI) SignInWithPassword(ctx context.Context, email, password string) (*prolink.Session, error) {
	f.mu.Lock()
	f.signInCalls++
	session, err := f.signInSession, f.signInErr
	emit := f.emitOnSignIn
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if emit {
		f.emit(prolink.AuthEventSignedIn, session)
	}
	return session, nil
}

func (f *fakeAuthAPI) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return f.signOutErr
}

func (f *fakeAuthAPI) CurrentSession(ctx context.Context) (*prolink.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "current-session")
	return f.restored, f.restoredErr
}

func (f *fakeAuthAPI) OnAuthChange(handler prolink.AuthChangeHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "on-auth-change")
	f.nextID++
	id := f.nextID
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeAuthAPI) emit(event prolink.AuthEventKind, session *prolink.Session) {
	f.mu.Lock()
	handlers := make([]prolink.AuthChangeHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(event, session)
	}
}

func (f *fakeAuthAPI) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAuthAPI) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// fakeBackend bundles the fakes into a prolink.Backend.
type fakeBackend struct {
	auth     *fakeAuthAPI
	data     prolink.DataAPI
	realtime prolink.RealtimeAPI
	storage  prolink.StorageAPI
}

func newFakeBackend(data prolink.DataAPI) *fakeBackend {
	return &fakeBackend{
		auth: newFakeAuthAPI(),
		data: data,
	}
}

func (f *fakeBackend) Auth() prolink.AuthAPI         { return f.auth }
func (f *fakeBackend) Data() prolink.DataAPI         { return f.data }
func (f *fakeBackend) Realtime() prolink.RealtimeAPI { return f.realtime }
func (f *fakeBackend) Storage() prolink.StorageAPI   { return f.storage }

// memoryNavigator records navigation decisions.
type memoryNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *memoryNavigator) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *memoryNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.paths))
	copy(out, n.paths)
	return out
}

// memoryNotifier records user-facing notices.
type memoryNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *memoryNotifier) Success(title, detail string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, title+": "+detail)
}

func (n *memoryNotifier) Error(title, detail string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, title+": "+detail)
}

func (n *memoryNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

func (n *memoryNotifier) successCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes)
}

// recordingSleeper captures requested pauses without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.pauses = append(s.pauses, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.pauses))
	copy(out, s.pauses)
	return out
}
