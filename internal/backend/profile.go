package backend

import (
	"encoding/json"
	"strings"

	"github.com/thehub/storefront/internal/normalize"
)

// Profile is the canonical authenticated user. Role is resolved once here,
// at the normalization boundary; nothing downstream re-derives it.
type Profile struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && (p.Role == "admin" || p.Role == "administrator")
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID       int64           `json:"id"`
		Name     string          `json:"name"`
		Email    string          `json:"email"`
		IsAdmin  *bool           `json:"is_admin"`
		Admin    *bool           `json:"admin"`
		Role     json.RawMessage `json:"role"`
		UserType string          `json:"user_type"`
		Type     string          `json:"type"`
		Roles    json.RawMessage `json:"roles"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.ID = aux.ID
	p.Name = aux.Name
	p.Email = aux.Email
	p.Role = deriveRole(aux.IsAdmin, aux.Admin, aux.Role, aux.UserType, aux.Type, aux.Roles)
	return nil
}

// deriveRole checks, in order: an explicit boolean admin flag, the
// role/user_type/type fields (role may be a string or an object with a
// name), then membership of "admin" in a roles list (array or CSV string).
// The result is always lowercase.
func deriveRole(isAdmin, admin *bool, role json.RawMessage, userType, typ string, roles json.RawMessage) string {
	if (isAdmin != nil && *isAdmin) || (admin != nil && *admin) {
		return "admin"
	}

	if r := roleString(role); r != "" {
		return r
	}
	if r := normalize.Category(userType); r != "" {
		return r
	}
	if r := normalize.Category(typ); r != "" {
		return r
	}

	for _, r := range rolesList(roles) {
		if normalize.Category(r) == "admin" {
			return "admin"
		}
	}
	return ""
}

func roleString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return normalize.Category(s)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return normalize.Category(obj.Name)
	}
	return ""
}

func rolesList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var csv string
	if json.Unmarshal(raw, &csv) == nil {
		return strings.Split(csv, ",")
	}
	return nil
}
