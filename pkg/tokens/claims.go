package tokens

import "github.com/golang-jwt/jwt/v5"

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Principal is the authenticated identity embedded into tokens.
type Principal struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
}

type AccessClaims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) Principal() Principal {
	return Principal{ID: c.Subject, Role: c.Role, DisplayName: c.Name}
}

func (c *AccessClaims) tokenType() string { return c.Type }

type RefreshClaims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *RefreshClaims) Principal() Principal {
	return Principal{ID: c.Subject, Role: c.Role, DisplayName: c.Name}
}

func (c *RefreshClaims) tokenType() string { return c.Type }

type typedClaims interface {
	jwt.Claims
	tokenType() string
}
