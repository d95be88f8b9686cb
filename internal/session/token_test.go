package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/thehub/storefront/internal/state"
)

func newStore(t *testing.T) *state.Store {
	s, err := state.Open(":memory:")
	require.NoError(t, err)
	return s
}

func TestTokenRoundTrip(t *testing.T) {
	store := newStore(t)
	tokens := NewTokenStore(store)

	require.Equal(t, "", tokens.Get())

	tokens.Set("opaque-credential")
	require.Equal(t, "opaque-credential", tokens.Get())

	// a fresh store over the same backing table sees the persisted value
	require.Equal(t, "opaque-credential", NewTokenStore(store).Get())

	tokens.Clear()
	require.Equal(t, "", tokens.Get())
	require.Equal(t, "", NewTokenStore(store).Get())
}

func TestExpiredJWTTreatedAsAbsent(t *testing.T) {
	tokens := NewTokenStore(newStore(t))

	sign := func(exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": 1, "exp": exp.Unix(),
		})
		s, err := tok.SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}

	tokens.Set(sign(time.Now().Add(-time.Minute)))
	require.Equal(t, "", tokens.Get())

	live := sign(time.Now().Add(time.Hour))
	tokens.Set(live)
	require.Equal(t, live, tokens.Get())
}

func TestUnauthorizedFanOut(t *testing.T) {
	tokens := NewTokenStore(newStore(t))

	var first, second []int
	unsub := tokens.OnUnauthorized(func(status int) { first = append(first, status) })
	tokens.OnUnauthorized(func(status int) { second = append(second, status) })

	tokens.NotifyUnauthorized(401)
	require.Equal(t, []int{401}, first)
	require.Equal(t, []int{401}, second)

	unsub()
	tokens.NotifyUnauthorized(401)
	require.Equal(t, []int{401}, first)
	require.Equal(t, []int{401, 401}, second)
}
