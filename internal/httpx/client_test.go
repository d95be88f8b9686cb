package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thehub/storefront/internal/session"
	"github.com/thehub/storefront/internal/state"
)

func newTokens(t *testing.T) *session.TokenStore {
	store, err := state.Open(":memory:")
	require.NoError(t, err)
	return session.NewTokenStore(store)
}

func TestBearerInjectionAndContentType(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(r.Context())
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := newTokens(t)
	tokens.Set("tok-123")
	c := NewClient(srv.URL, tokens)

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.DoJSON(context.Background(), Config{
		Method: http.MethodPost,
		Path:   "/product",
		Body:   map[string]any{"name": "x"},
		Params: url.Values{"page": {"1"}},
	}, &out)
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Equal(t, "Bearer tok-123", got.Header.Get("Authorization"))
	require.Equal(t, "application/json", got.Header.Get("Content-Type"))
	require.NotEmpty(t, got.Header.Get("X-Request-ID"))
	require.Equal(t, "1", got.URL.Query().Get("page"))
}

func TestCallerAuthorizationWins(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	tokens := newTokens(t)
	tokens.Set("stored")
	c := NewClient(srv.URL, tokens)

	_, err := c.Do(context.Background(), Config{
		Method:  http.MethodGet,
		Path:    "/me",
		Headers: http.Header{"Authorization": {"Bearer explicit"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer explicit", auth)
}

func TestUnauthorizedClearsTokenAndNotifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := newTokens(t)
	tokens.Set("dead")
	c := NewClient(srv.URL, tokens)

	var notified []int
	tokens.OnUnauthorized(func(status int) { notified = append(notified, status) })

	_, err := c.Do(context.Background(), Config{Method: http.MethodGet, Path: "/me"})
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, StatusCode(err))
	require.Equal(t, []int{http.StatusUnauthorized}, notified)
	require.Equal(t, "", tokens.Get())
}

func TestErrorCarriesStatusBodyAndConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"quantity must be positive"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newTokens(t))
	_, err := c.Do(context.Background(), Config{Method: http.MethodPost, Path: "/cart_item"})
	require.Error(t, err)

	var he *Error
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusUnprocessableEntity, he.Status)
	require.Equal(t, "/cart_item", he.Config.Path)
	require.Equal(t, "quantity must be positive", Message(err, "fallback"))
}

func TestInterceptors(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Storefront")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newTokens(t))
	c.UseRequest(func(cfg *Config) error {
		cfg.Headers.Set("X-Storefront", "v1")
		return nil
	})
	var seen int
	c.UseResponse(func(resp *Response) error {
		seen = resp.Status
		return nil
	})

	resp, err := c.Do(context.Background(), Config{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.Equal(t, "v1", gotHeader)
	require.Equal(t, http.StatusOK, seen)
	require.Equal(t, []byte("ok"), resp.Body)
}
