package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/thehub/storefront/internal/httpx"
	"github.com/thehub/storefront/internal/normalize"
)

// User is a back-office listing row. Role goes through the same derivation
// as the session profile.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return err
	}
	var aux struct {
		Active *bool `json:"active"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.ID = profile.ID
	u.Name = profile.Name
	u.Email = profile.Email
	u.Role = profile.Role
	u.Active = aux.Active == nil || *aux.Active
	return nil
}

type UsersAPI struct {
	http *httpx.Client
}

func NewUsersAPI(c *httpx.Client) *UsersAPI {
	return &UsersAPI{http: c}
}

type UserFilters struct {
	Page   int
	Limit  int
	Query  string
	Role   string
	Active *bool
}

func (f UserFilters) values() url.Values {
	v := url.Values{}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		v.Set("q", q)
	}
	if r := normalize.Category(f.Role); r != "" && r != "todos" {
		v.Set("role", r)
	}
	if f.Active != nil {
		v.Set("active", strconv.FormatBool(*f.Active))
	}
	return v
}

func (u *UsersAPI) List(ctx context.Context, filters UserFilters) ([]User, error) {
	resp, err := u.http.Do(ctx, httpx.Config{
		Method: http.MethodGet,
		Path:   "/users",
		Params: filters.values(),
	})
	if err != nil {
		return nil, err
	}

	items := normalize.Items(resp.Body)
	users := make([]User, 0, len(items))
	for _, raw := range items {
		var user User
		if json.Unmarshal(raw, &user) != nil {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (u *UsersAPI) Patch(ctx context.Context, id int64, patch map[string]any) (*User, error) {
	var user User
	if err := u.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/users/%d", id),
		Body:   patch,
	}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *UsersAPI) Delete(ctx context.Context, id int64) error {
	return u.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/users/%d", id),
	}, nil)
}
