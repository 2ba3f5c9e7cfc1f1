package gateway

import (
	"context"

	"github.com/PlayerYK/TweetSift/internal/errors"
)

// Credentials are the session cookies the remote expects.
type Credentials struct {
	CSRFToken string // ct0 cookie
	AuthToken string // auth_token cookie
}

// Valid reports whether both tokens are present.
func (c Credentials) Valid() bool {
	return c.CSRFToken != "" && c.AuthToken != ""
}

// CookieHeader renders the credentials as a Cookie header value.
func (c Credentials) CookieHeader() string {
	return "ct0=" + c.CSRFToken + "; auth_token=" + c.AuthToken
}

// CredentialSource reads the current session credentials.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials serves fixed tokens, e.g. from configuration.
type StaticCredentials Credentials

// Credentials implements CredentialSource.
func (s StaticCredentials) Credentials(context.Context) (Credentials, error) {
	c := Credentials(s)
	if !c.Valid() {
		return Credentials{}, errors.NewNotAuthenticated()
	}
	return c, nil
}

// FirstValid tries each source in order and returns the first valid
// credentials. NOT_AUTHENTICATED when none has any.
type FirstValid []CredentialSource

// Credentials implements CredentialSource.
func (f FirstValid) Credentials(ctx context.Context) (Credentials, error) {
	var lastErr error = errors.NewNotAuthenticated()
	for _, src := range f {
		if src == nil {
			continue
		}
		c, err := src.Credentials(ctx)
		if err == nil && c.Valid() {
			return c, nil
		}
		if err != nil && !errors.Is(err, errors.ErrNotAuthenticated) {
			lastErr = err
		}
	}
	return Credentials{}, lastErr
}
