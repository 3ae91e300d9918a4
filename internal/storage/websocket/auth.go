package websocket

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "volley"
	tokenTTL    = time.Hour
)

// dialAuth decorates a dial with credentials. It runs on every dial so
// reconnects carry a fresh token.
type dialAuth func(u *url.URL, h http.Header) error

func authenticator(mode, secret string) (dialAuth, error) {
	switch mode {
	case "", AuthQuery:
		return func(u *url.URL, _ http.Header) error {
			q := u.Query()
			q.Set("secret", secret)
			u.RawQuery = q.Encode()
			return nil
		}, nil
	case AuthJWT:
		if secret == "" {
			return nil, fmt.Errorf("%s auth needs storage.websocket.secret", AuthJWT)
		}
		return func(_ *url.URL, h http.Header) error {
			token, err := signToken(secret, time.Now())
			if err != nil {
				return err
			}
			h.Set("Authorization", "Bearer "+token)
			return nil
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAuth, mode)
}

func signToken(secret string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing stream token: %w", err)
	}
	return token, nil
}
