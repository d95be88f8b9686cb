// Package auth owns the authentication session: status, the current
// profile, and the policy for what each failure class does to them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/thehub/storefront/internal/backend"
	"github.com/thehub/storefront/internal/httpx"
	"github.com/thehub/storefront/internal/session"
)

// Status is the session state machine. Checking is transient and always
// resolves to one of the stable states within the safety timeout.
type Status int

const (
	StatusChecking Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Stable reports whether s is one of the two resting states.
func (s Status) Stable() bool {
	return s == StatusAuthenticated || s == StatusUnauthenticated
}

const (
	msgSessionExpired = "Your session expired. Please sign in again."
	msgLoginFailed    = "We couldn't sign you in. Check your credentials."
	msgSignupFailed   = "We couldn't create your account. Please try again."

	defaultCheckTimeout = 4 * time.Second
)

type Options struct {
	// CheckTimeout bounds how long the controller may stay in Checking.
	CheckTimeout time.Duration
	// Navigate is the redirect intent signal; called with the target path
	// when the session is evicted. May be nil.
	Navigate func(path string)
	Logger   *slog.Logger
}

type Controller struct {
	api    *backend.AuthAPI
	tokens *session.TokenStore
	log    *slog.Logger

	checkTimeout time.Duration
	navigate     func(string)

	sf singleflight.Group

	mu         sync.Mutex
	status     Status
	user       *backend.Profile
	lastErr    string
	lastCode   int
	checkTimer *time.Timer
	subs       map[int]func(Status)
	nextSub    int

	unsubToken func()
}

func NewController(api *backend.AuthAPI, tokens *session.TokenStore, opts Options) *Controller {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = defaultCheckTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		api:          api,
		tokens:       tokens,
		log:          opts.Logger.With("component", "auth"),
		checkTimeout: opts.CheckTimeout,
		navigate:     opts.Navigate,
		status:       StatusUnauthenticated,
		subs:         make(map[int]func(Status)),
	}
	if tokens.Get() != "" {
		c.status = StatusChecking
	}

	c.unsubToken = tokens.OnUnauthorized(func(code int) {
		if code != http.StatusUnauthorized {
			return
		}
		c.setError(msgSessionExpired, code)
		c.applyLogout()
		c.goTo("/login")
	})
	return c
}

// Start resolves the boot state: no stored token settles Unauthenticated
// immediately, otherwise a profile fetch runs in the background while the
// safety timer guards against an indefinite Checking.
func (c *Controller) Start(ctx context.Context) {
	if c.tokens.Get() == "" {
		c.setStatus(StatusUnauthenticated)
		return
	}
	c.enterChecking()
	go func() {
		if _, err := c.LoadMe(ctx); err != nil {
			c.log.Warn("boot profile fetch failed", "error", err)
		}
	}()
}

// LoadMe fetches the profile. Single-flight: concurrent callers share one
// request. 429 degrades gracefully, keeping the session and the previously
// known profile; any other failure evicts the session.
func (c *Controller) LoadMe(ctx context.Context) (*backend.Profile, error) {
	v, err, _ := c.sf.Do("me", func() (any, error) {
		return c.loadMe(ctx)
	})
	profile, _ := v.(*backend.Profile)
	return profile, err
}

func (c *Controller) loadMe(ctx context.Context) (*backend.Profile, error) {
	if c.tokens.Get() == "" {
		c.mu.Lock()
		c.user = nil
		c.lastCode = 0
		c.mu.Unlock()
		c.setStatus(StatusUnauthenticated)
		return nil, nil
	}

	profile, err := c.api.Me(ctx)
	if err == nil {
		c.mu.Lock()
		c.user = profile
		c.lastErr = ""
		c.lastCode = 0
		c.mu.Unlock()
		c.setStatus(StatusAuthenticated)
		return profile, nil
	}

	code := httpx.StatusCode(err)
	if code == http.StatusTooManyRequests {
		// rate limited: don't evict a working session over backend pressure
		c.mu.Lock()
		c.lastCode = code
		prev := c.user
		c.mu.Unlock()
		c.setStatus(StatusAuthenticated)
		c.log.Warn("profile fetch rate limited, keeping session")
		return prev, nil
	}

	c.setError(httpx.Message(err, msgSessionExpired), code)
	c.applyLogout()
	if code == http.StatusUnauthorized {
		c.goTo("/login")
	}
	return nil, err
}

func (c *Controller) Login(ctx context.Context, creds backend.Credentials) (*backend.Profile, error) {
	return c.authenticate(ctx, msgLoginFailed, func() (string, error) {
		return c.api.Login(ctx, creds)
	})
}

func (c *Controller) Signup(ctx context.Context, payload backend.SignupPayload) (*backend.Profile, error) {
	return c.authenticate(ctx, msgSignupFailed, func() (string, error) {
		return c.api.Signup(ctx, payload)
	})
}

func (c *Controller) authenticate(ctx context.Context, fallback string, obtain func() (string, error)) (*backend.Profile, error) {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
	c.enterChecking()

	token, err := obtain()
	if err != nil {
		msg := httpx.Message(err, fallback)
		c.setError(msg, httpx.StatusCode(err))
		c.applyLogout()
		return nil, fmt.Errorf("%s: %w", msg, err)
	}

	c.tokens.Set(token)
	profile, err := c.LoadMe(ctx)
	if err != nil {
		msg := httpx.Message(err, fallback)
		c.setError(msg, httpx.StatusCode(err))
		c.applyLogout()
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	return profile, nil
}

// Logout unconditionally clears the session and signals navigation to the
// login surface. The backend holds no server-side session to revoke.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.lastErr = ""
	c.lastCode = 0
	c.mu.Unlock()
	c.applyLogout()
	c.goTo("/login")
}

// Close detaches the controller from the token store's unauthorized bus.
func (c *Controller) Close() {
	if c.unsubToken != nil {
		c.unsubToken()
	}
	c.mu.Lock()
	if c.checkTimer != nil {
		c.checkTimer.Stop()
		c.checkTimer = nil
	}
	c.mu.Unlock()
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) User() *backend.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Controller) IsAuthenticated() bool {
	return c.Status() == StatusAuthenticated
}

// Role is derived from the profile at the normalization boundary and only
// read back here, never recomputed from raw fields.
func (c *Controller) Role() string {
	if u := c.User(); u != nil {
		return u.Role
	}
	return ""
}

func (c *Controller) IsAdmin() bool {
	return c.User().IsAdmin()
}

func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) LastCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCode
}

// OnStatusChange registers an observer, returning its unsubscribe function.
// Observers see every transition, including into Checking.
func (c *Controller) OnStatusChange(fn func(Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) applyLogout() {
	c.tokens.Clear()
	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()
	c.setStatus(StatusUnauthenticated)
}

func (c *Controller) enterChecking() {
	c.setStatus(StatusChecking)
	c.mu.Lock()
	if c.checkTimer != nil {
		c.checkTimer.Stop()
	}
	c.checkTimer = time.AfterFunc(c.checkTimeout, c.resolveStall)
	c.mu.Unlock()
}

// resolveStall forces the way out of Checking when the profile fetch never
// settles: with a token present the session is optimistically usable and a
// later failed request corrects it, without one it is simply absent.
func (c *Controller) resolveStall() {
	c.mu.Lock()
	stuck := c.status == StatusChecking
	c.mu.Unlock()
	if !stuck {
		return
	}
	if c.tokens.Get() != "" {
		c.log.Warn("profile check stalled, optimistically keeping session")
		c.setStatus(StatusAuthenticated)
		return
	}
	c.setStatus(StatusUnauthenticated)
}

func (c *Controller) setStatus(next Status) {
	c.mu.Lock()
	if c.status == next {
		c.mu.Unlock()
		return
	}
	c.status = next
	if next != StatusChecking && c.checkTimer != nil {
		c.checkTimer.Stop()
		c.checkTimer = nil
	}
	fns := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

func (c *Controller) setError(msg string, code int) {
	c.mu.Lock()
	c.lastErr = msg
	c.lastCode = code
	c.mu.Unlock()
}

func (c *Controller) goTo(path string) {
	if c.navigate != nil {
		c.navigate(path)
	}
}

// ErrNotAdmin is returned by surfaces that require back-office rights.
var ErrNotAdmin = errors.New("admin access required")
