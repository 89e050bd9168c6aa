package transport

import (
	"net/http"
)

type authKind int

const (
	authNone authKind = iota
	authBearer
	authBasic
)

// Auth holds the credentials attached to every request. Exactly one variant
// is active: none, bearer token or basic credentials. The zero value is NoAuth.
type Auth struct {
	kind     authKind
	token    string
	username string
	password string
}

// NoAuth sends requests without an Authorization header.
func NoAuth() Auth {
	return Auth{kind: authNone}
}

// BearerToken sends "Authorization: Bearer <token>".
func BearerToken(token string) Auth {
	return Auth{kind: authBearer, token: token}
}

// BasicAuth sends HTTP basic credentials.
func BasicAuth(username, password string) Auth {
	return Auth{kind: authBasic, username: username, password: password}
}

// ResolveAuth picks the variant for a set of optional credentials. A token
// wins over basic credentials, and basic credentials need both a username
// and a password.
func ResolveAuth(token, username, password string) Auth {
	switch {
	case token != "":
		return BearerToken(token)
	case username != "" && password != "":
		return BasicAuth(username, password)
	default:
		return NoAuth()
	}
}

// Scheme returns "none", "bearer" or "basic".
func (a Auth) Scheme() string {
	switch a.kind {
	case authBearer:
		return "bearer"
	case authBasic:
		return "basic"
	default:
		return "none"
	}
}

// String describes the variant without exposing secrets.
func (a Auth) String() string {
	if a.kind == authBasic {
		return "basic(" + a.username + ")"
	}
	return a.Scheme()
}

func (a Auth) apply(req *http.Request) {
	switch a.kind {
	case authBearer:
		req.Header.Set("Authorization", "Bearer "+a.token)
	case authBasic:
		req.SetBasicAuth(a.username, a.password)
	}
}
