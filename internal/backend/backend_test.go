package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thehub/storefront/internal/httpx"
	"github.com/thehub/storefront/internal/session"
	"github.com/thehub/storefront/internal/state"
)

func newClient(t *testing.T, srv *httptest.Server) *httpx.Client {
	store, err := state.Open(":memory:")
	require.NoError(t, err)
	return httpx.NewClient(srv.URL, session.NewTokenStore(store))
}

func TestLoginTokenKeys(t *testing.T) {
	for _, body := range []string{
		`{"authToken":"t1"}`,
		`{"auth_token":"t1"}`,
		`{"token":"t1"}`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/login", r.URL.Path)
			w.Write([]byte(body))
		}))
		api := NewAuthAPI(newClient(t, srv))
		tok, err := api.Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
		require.NoError(t, err, body)
		require.Equal(t, "t1", tok)
		srv.Close()
	}
}

func TestLoginNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewAuthAPI(newClient(t, srv)).Login(context.Background(), Credentials{})
	require.ErrorIs(t, err, ErrNoToken)
}

func TestRoleDerivation(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		role  string
		admin bool
	}{
		{"bool flag", `{"id":1,"is_admin":true}`, "admin", true},
		{"role string", `{"id":1,"role":"Administrator"}`, "administrator", true},
		{"role object", `{"id":1,"role":{"name":"Admin"}}`, "admin", true},
		{"user_type", `{"id":1,"user_type":"Cliente"}`, "cliente", false},
		{"type", `{"id":1,"type":"admin"}`, "admin", true},
		{"roles array", `{"id":1,"roles":["editor","ADMIN"]}`, "admin", true},
		{"roles csv", `{"id":1,"roles":"editor,admin"}`, "admin", true},
		{"no role", `{"id":1,"name":"x"}`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p Profile
			require.NoError(t, json.Unmarshal([]byte(tc.body), &p))
			require.Equal(t, tc.role, p.Role)
			require.Equal(t, tc.admin, p.IsAdmin())
		})
	}
}

func TestProductListShapes(t *testing.T) {
	for _, body := range []string{
		`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`,
		`{"items":[{"id":1,"name":"a"},{"id":2,"name":"b"}]}`,
		`{"data":[{"id":1,"name":"a"},{"id":2,"name":"b"}]}`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "new", r.URL.Query().Get("sort"))
			require.Equal(t, "cargadores", r.URL.Query().Get("category"))
			w.Write([]byte(body))
		}))
		api := NewProductsAPI(newClient(t, srv))
		products, err := api.List(context.Background(), ListFilters{
			Limit: 100, Page: 1, Sort: "new", Category: " Cargadores ",
		})
		require.NoError(t, err, body)
		require.Len(t, products, 2)
		srv.Close()
	}
}

func TestCreateWithImagesHappyPath(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/product":
			body, _ := io.ReadAll(r.Body)
			require.Contains(t, string(body), `"image_url":[]`)
			w.Write([]byte(`{"id":7,"name":"Cargador"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/upload/image":
			require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
			require.NoError(t, r.ParseMultipartForm(1<<20))
			require.Len(t, r.MultipartForm.File["content[]"], 2)
			w.Write([]byte(`[{"url":"a.png"},{"url":"b.png"}]`))
		case r.Method == http.MethodPatch && r.URL.Path == "/product/7":
			w.Write([]byte(`{"id":7,"name":"Cargador","image_url":["a.png","b.png"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	api := NewProductsAPI(newClient(t, srv))
	product, err := api.CreateWithImages(context.Background(),
		ProductInput{Name: " Cargador ", Price: 10, Category: "Cargadores"},
		[]Upload{{Name: "a.png", Content: []byte("a")}, {Name: "b.png", Content: []byte("b")}},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"POST /product", "POST /upload/image", "PATCH /product/7"}, calls)
	require.Equal(t, []string{"a.png", "b.png"}, product.Images)
}

func TestCreateWithImagesPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/product":
			w.Write([]byte(`{"id":9,"name":"Funda"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	api := NewProductsAPI(newClient(t, srv))
	product, err := api.CreateWithImages(context.Background(),
		ProductInput{Name: "Funda"},
		[]Upload{{Name: "a.png", Content: []byte("a")}},
	)

	// the record exists without images; the caller sees both facts
	require.Error(t, err)
	require.NotNil(t, product)
	require.Equal(t, int64(9), product.ID)
	require.Empty(t, product.Images)
}

func TestUsersListFilters(t *testing.T) {
	active := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "admin", q.Get("role"))
		require.Equal(t, "true", q.Get("active"))
		require.Equal(t, "ana", q.Get("q"))
		w.Write([]byte(`{"items":[{"id":1,"name":"Ana","is_admin":true}]}`))
	}))
	defer srv.Close()

	users, err := NewUsersAPI(newClient(t, srv)).List(context.Background(), UserFilters{
		Page: 1, Limit: 50, Query: "ana", Role: "Admin", Active: &active,
	})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "admin", users[0].Role)
	require.True(t, users[0].Active)
}
