package cronsync

import (
	"crypto/subtle"
	"errors"
	"net/http"
)

const (
	// SecretHeader carries the shared cron secret
	SecretHeader = "x-cron-secret"
	// SecretQueryParam is the query-string alternative to SecretHeader
	SecretQueryParam = "secret"
)

// ErrUnauthorized is returned when a trigger does not carry the configured secret
var ErrUnauthorized = errors.New("unauthorized")

// AuthMode decides whether a sync trigger may run.
// The zero value is AuthOpen.
type AuthMode struct {
	secret string
	closed bool
}

// AuthOpen lets every trigger through
func AuthOpen() AuthMode {
	return AuthMode{}
}

// AuthSecret requires triggers to present exactly the given secret
func AuthSecret(secret string) AuthMode {
	return AuthMode{secret: secret, closed: true}
}

// AuthFromSecret returns AuthOpen for an empty secret and AuthSecret otherwise
func AuthFromSecret(secret string) AuthMode {
	if secret == "" {
		return AuthOpen()
	}
	return AuthSecret(secret)
}

// IsOpen reports whether no secret is enforced
func (a AuthMode) IsOpen() bool {
	return !a.closed
}

// Secret returns the enforced secret, empty when open
func (a AuthMode) Secret() string {
	return a.secret
}

// Authorize checks a supplied secret
func (a AuthMode) Authorize(supplied string) error {
	if !a.closed {
		return nil
	}
	if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(a.secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// SecretFromRequest extracts the trigger secret, preferring the header over the query string
func SecretFromRequest(r *http.Request) string {
	if v := r.Header.Get(SecretHeader); v != "" {
		return v
	}
	return r.URL.Query().Get(SecretQueryParam)
}
