package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thehub/storefront/internal/backend"
	"github.com/thehub/storefront/internal/httpx"
	"github.com/thehub/storefront/internal/session"
	"github.com/thehub/storefront/internal/state"
)

type fakeAuth struct {
	mu       sync.Mutex
	meCalls  int32
	meStatus int
	meBody   string
	meDelay  time.Duration
	loginOK  bool
}

func (f *fakeAuth) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login", "/auth/signup":
			f.mu.Lock()
			ok := f.loginOK
			f.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"Invalid credentials"}`))
				return
			}
			w.Write([]byte(`{"authToken":"fresh-token"}`))
		case "/auth/me":
			atomic.AddInt32(&f.meCalls, 1)
			f.mu.Lock()
			status, body, delay := f.meStatus, f.meBody, f.meDelay
			f.mu.Unlock()
			time.Sleep(delay)
			if status != 0 && status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
			w.Write([]byte(body))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeAuth) set(status int, body string) {
	f.mu.Lock()
	f.meStatus = status
	f.meBody = body
	f.mu.Unlock()
}

type fixture struct {
	fake    *fakeAuth
	tokens  *session.TokenStore
	ctrl    *Controller
	visited []string
}

func newFixture(t *testing.T, opts Options) *fixture {
	fake := &fakeAuth{loginOK: true, meBody: `{"id":1,"name":"Ana","email":"ana@thehub.io","role":"admin"}`}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	store, err := state.Open(":memory:")
	require.NoError(t, err)
	tokens := session.NewTokenStore(store)

	fx := &fixture{fake: fake, tokens: tokens}
	if opts.Navigate == nil {
		opts.Navigate = func(path string) { fx.visited = append(fx.visited, path) }
	}
	api := backend.NewAuthAPI(httpx.NewClient(srv.URL, tokens))
	fx.ctrl = NewController(api, tokens, opts)
	t.Cleanup(fx.ctrl.Close)
	return fx
}

func TestBootWithoutToken(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.ctrl.Start(context.Background())
	require.Equal(t, StatusUnauthenticated, fx.ctrl.Status())
	require.Zero(t, atomic.LoadInt32(&fx.fake.meCalls))
}

func TestBootWithToken(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.tokens.Set("stored-token")

	fx.ctrl.Start(context.Background())
	require.Eventually(t, func() bool {
		return fx.ctrl.Status() == StatusAuthenticated
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "Ana", fx.ctrl.User().Name)
	require.True(t, fx.ctrl.IsAdmin())
}

func TestLoadMeSingleFlight(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.tokens.Set("stored-token")
	fx.fake.meDelay = 100 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]*backend.Profile, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.ctrl.LoadMe(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&fx.fake.meCalls))
	for _, p := range results {
		require.Same(t, results[0], p)
	}
}

func TestRateLimitedFetchKeepsSession(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.tokens.Set("stored-token")

	_, err := fx.ctrl.LoadMe(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusAuthenticated, fx.ctrl.Status())
	known := fx.ctrl.User()

	fx.fake.set(http.StatusTooManyRequests, "")
	p, err := fx.ctrl.LoadMe(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusAuthenticated, fx.ctrl.Status())
	require.Same(t, known, p)
	require.Same(t, known, fx.ctrl.User())
	require.NotEmpty(t, fx.tokens.Get())
	require.Empty(t, fx.visited)
}

func TestUnauthorizedFetchEvictsSession(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.tokens.Set("stored-token")
	fx.fake.set(http.StatusUnauthorized, "")

	_, err := fx.ctrl.LoadMe(context.Background())
	require.Error(t, err)
	require.Equal(t, StatusUnauthenticated, fx.ctrl.Status())
	require.Nil(t, fx.ctrl.User())
	require.Equal(t, "", fx.tokens.Get())
	require.Contains(t, fx.visited, "/login")
}

func TestLoginSuccess(t *testing.T) {
	fx := newFixture(t, Options{})

	profile, err := fx.ctrl.Login(context.Background(), backend.Credentials{
		Email: "ana@thehub.io", Password: "secret",
	})
	require.NoError(t, err)
	require.Equal(t, StatusAuthenticated, fx.ctrl.Status())
	require.Equal(t, "Ana", profile.Name)
	require.Equal(t, "fresh-token", fx.tokens.Get())
}

func TestLoginFailureRollsBack(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.fake.loginOK = false

	_, err := fx.ctrl.Login(context.Background(), backend.Credentials{
		Email: "ana@thehub.io", Password: "wrong",
	})
	require.Error(t, err)
	require.Equal(t, StatusUnauthenticated, fx.ctrl.Status())
	require.Equal(t, "", fx.tokens.Get())
	require.Equal(t, "Invalid credentials", fx.ctrl.Err())
}

func TestLogout(t *testing.T) {
	fx := newFixture(t, Options{})
	_, err := fx.ctrl.Login(context.Background(), backend.Credentials{Email: "a", Password: "b"})
	require.NoError(t, err)

	fx.ctrl.Logout()
	require.Equal(t, StatusUnauthenticated, fx.ctrl.Status())
	require.Nil(t, fx.ctrl.User())
	require.Equal(t, "", fx.tokens.Get())
	require.Contains(t, fx.visited, "/login")
}

func TestCheckingTimeoutResolvesOptimistically(t *testing.T) {
	fx := newFixture(t, Options{CheckTimeout: 50 * time.Millisecond})
	fx.tokens.Set("stored-token")
	fx.fake.meDelay = 2 * time.Second

	fx.ctrl.Start(context.Background())
	require.Equal(t, StatusChecking, fx.ctrl.Status())

	require.Eventually(t, func() bool {
		return fx.ctrl.Status() == StatusAuthenticated
	}, time.Second, 10*time.Millisecond)
}

func TestStatusObserversAndUnsubscribe(t *testing.T) {
	fx := newFixture(t, Options{})

	var seen []Status
	unsub := fx.ctrl.OnStatusChange(func(s Status) { seen = append(seen, s) })

	_, err := fx.ctrl.Login(context.Background(), backend.Credentials{Email: "a", Password: "b"})
	require.NoError(t, err)
	require.Equal(t, []Status{StatusChecking, StatusAuthenticated}, seen)

	unsub()
	fx.ctrl.Logout()
	require.Equal(t, []Status{StatusChecking, StatusAuthenticated}, seen)
}
