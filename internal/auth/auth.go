// Package auth injects credentials into outgoing requests for the Metasys API
// and for services protected by EntraSSO.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrLoginFailed is returned when a token cannot be obtained.
var ErrLoginFailed = errors.New("login failed")

// Authenticator adds credentials to a request, acquiring or refreshing a token first
// when needed.
type Authenticator interface {
	Authenticate(ctx context.Context, req *http.Request) error
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// token is the state shared by every scheme: a bearer value and its expiry.
type token struct {
	value   string
	expires time.Time
}

func (t token) remaining(now time.Time) time.Duration {
	return t.expires.Sub(now)
}

func setBearer(req *http.Request, value string) {
	req.Header.Set("Authorization", "Bearer "+value)
}

// readOK drains the body and returns it, or an error for any non-2xx status.
func readOK(resp *http.Response, what string) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", what, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrLoginFailed, what, resp.StatusCode)
	}
	return body, nil
}

// Static injects a fixed bearer token. Useful for tests and for tokens issued out of band.
type Static string

// Authenticate implements Authenticator.
func (s Static) Authenticate(_ context.Context, req *http.Request) error {
	setBearer(req, string(s))
	return nil
}
