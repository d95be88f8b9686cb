// Package session owns the bearer credential and the global unauthorized
// notification bus shared by every remote client.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thehub/storefront/internal/state"
)

// TokenStore persists the bearer token across restarts and fans out
// authorization failures to its subscribers. The auth controller is the sole
// writer; everything else only reads.
type TokenStore struct {
	mu     sync.Mutex
	store  *state.Store
	token  string
	subs   map[int]func(status int)
	nextID int
}

func NewTokenStore(store *state.Store) *TokenStore {
	return &TokenStore{
		store: store,
		token: store.Get(state.KeyToken),
		subs:  make(map[int]func(status int)),
	}
}

func (t *TokenStore) Set(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
	if token == "" {
		t.store.Delete(state.KeyToken)
		return
	}
	t.store.Set(state.KeyToken, token)
}

// Get returns the current token, or "" when none is stored. The backend
// issues JWTs, so a credential whose exp claim has already passed is treated
// as absent rather than sent to certain rejection. Tokens that do not parse
// as JWTs are returned as-is; the credential is otherwise opaque.
func (t *TokenStore) Get() string {
	t.mu.Lock()
	token := t.token
	t.mu.Unlock()
	if token == "" {
		return ""
	}
	if expired(token) {
		return ""
	}
	return token
}

func (t *TokenStore) Clear() {
	t.Set("")
}

// OnUnauthorized registers a listener for authorization failures and returns
// its unsubscribe function.
func (t *TokenStore) OnUnauthorized(fn func(status int)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// NotifyUnauthorized fans an authorization failure out to every subscriber.
func (t *TokenStore) NotifyUnauthorized(status int) {
	t.mu.Lock()
	fns := make([]func(int), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(status)
	}
}

func expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
