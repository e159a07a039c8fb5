// Package auth guards the ops HTTP surface with a bearer token whose bcrypt
// hash is configured out of band.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type Guard struct {
	hash []byte
}

// NewGuard returns a guard for the given bcrypt hash. An empty hash
// disables the check.
func NewGuard(hash string) (*Guard, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return &Guard{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, errors.Wrap(err, "invalid ops token hash")
	}
	return &Guard{hash: []byte(hash)}, nil
}

// NewToken returns a random token and its bcrypt hash.
func NewToken() (token, hash string, err error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return token, string(h), nil
}

func (g *Guard) Enabled() bool { return len(g.hash) > 0 }

func (g *Guard) Check(token string) bool {
	if !g.Enabled() {
		return true
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(token)) == nil
}

// Require rejects requests without a valid "Authorization: Bearer" header.
func (g *Guard) Require(next http.Handler) http.Handler {
	if !g.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !g.Check(token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="casualchat"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
