package clustertest

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

// authMiddleware rejects requests whose credentials do not match the
// configured token or basic credentials. Rejected requests are still
// recorded, parts included.
func (c *Cluster) authMiddleware(next http.Handler) http.Handler {
	if c.cfg.Token == "" && c.cfg.Username == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}

		parts, _ := readParts(r)
		c.record(newRequest(r, parts))
		WriteError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (c *Cluster) authorized(r *http.Request) bool {
	if c.cfg.Token != "" && r.Header.Get("Authorization") == "Bearer "+c.cfg.Token {
		return true
	}

	if c.cfg.Username != "" {
		user, pass, ok := r.BasicAuth()
		if ok && user == c.cfg.Username && pass == c.cfg.Password {
			return true
		}
	}

	return false
}

// IsValidFileName reports whether name is acceptable as the filename of an
// added part. It checks that the name:
//   - is not empty, "." or "/"
//   - is relative and does not end with "/"
//   - has no empty, "." or ".." segments
//   - contains no backslash
//   - is valid UTF-8 without control characters
//
// Spaces are allowed.
func IsValidFileName(name string) bool {
	if name == "" || name == "." || name == "/" {
		return false
	}

	if name[0] == '/' || strings.HasSuffix(name, "/") {
		return false
	}

	if strings.Contains(name, `\`) || !utf8.ValidString(name) {
		return false
	}

	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}

	return true
}
