package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"finquest/core"

	"github.com/golang-jwt/jwt/v4"
)

// ErrNoIdentity is returned when a request carries no usable user identity.
var ErrNoIdentity = errors.New("no user identity")

// identifier resolves the calling user. With a secret it trusts only the sub
// claim of an HS256 token; without one it trusts the X-User-ID header.
type identifier struct {
	secret []byte
}

func (id identifier) user(r *http.Request) (core.UserID, error) {
	if len(id.secret) > 0 {
		tok := bearerToken(r)
		if tok == "" {
			// browsers cannot set headers on WebSocket upgrades
			tok = r.URL.Query().Get("access_token")
		}
		if tok == "" {
			return "", ErrNoIdentity
		}
		return id.subject(tok)
	}
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	if raw == "" {
		return "", ErrNoIdentity
	}
	user, err := core.NormalizeUserID(core.UserID(raw))
	if err != nil {
		return "", ErrNoIdentity
	}
	return user, nil
}

func (id identifier) subject(tok string) (core.UserID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return id.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	user, err := core.NormalizeUserID(core.UserID(claims.Subject))
	if err != nil {
		return "", ErrNoIdentity
	}
	return user, nil
}
