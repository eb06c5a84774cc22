package auth

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/retry"
)

// EntraSSORenewWindow is the remaining lifetime below which a new application token is requested.
const EntraSSORenewWindow = 120 * time.Second

// epochMillisThreshold separates second and millisecond epoch values in the expires field.
const epochMillisThreshold = 1_000_000_000_000

// EntraSSO authenticates an application against the XML based EntraSSO service.
type EntraSSO struct {
	loginURL string
	appID    string
	appName  string
	secret   string
	client   Doer
	log      logger.Logger
	retry    retry.Config
	now      func() time.Time

	mu  sync.Mutex
	tok token
}

// EntraSSOOption configures an EntraSSO authenticator.
type EntraSSOOption func(*EntraSSO)

// WithEntraSSOClock overrides the clock.
func WithEntraSSOClock(now func() time.Time) EntraSSOOption {
	return func(e *EntraSSO) { e.now = now }
}

// WithEntraSSORetry overrides the retry policy for login.
func WithEntraSSORetry(cfg retry.Config) EntraSSOOption {
	return func(e *EntraSSO) { e.retry = cfg }
}

// NewEntraSSO creates the authenticator. Login requests go straight through client.
func NewEntraSSO(loginURL, appID, appName, secret string, client Doer, log logger.Logger, opts ...EntraSSOOption) *EntraSSO {
	e := &EntraSSO{
		loginURL: loginURL,
		appID:    appID,
		appName:  appName,
		secret:   secret,
		client:   client,
		log:      log.With(logger.Component("auth.entrasso")),
		retry:    retry.DefaultConfig(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type applicationCredential struct {
	XMLName xml.Name `xml:"applicationcredential"`
	Params  struct {
		ApplicationID     string `xml:"applicationID"`
		ApplicationName   string `xml:"applicationName"`
		ApplicationSecret string `xml:"applicationSecret"`
	} `xml:"params"`
}

type applicationToken struct {
	Params struct {
		TokenID string `xml:"applicationtokenID"`
		Expires string `xml:"expires"`
	} `xml:"params"`
}

// Authenticate implements Authenticator.
func (e *EntraSSO) Authenticate(ctx context.Context, req *http.Request) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := e.tok.remaining(e.now())
	if e.tok.value == "" || remaining < EntraSSORenewWindow {
		if e.tok.value != "" {
			e.log.Info("Application token about to expire, logging in again", logger.Duration("remaining", remaining))
		}
		if err := e.login(ctx); err != nil {
			if e.tok.value == "" || remaining <= 0 {
				return err
			}
			e.log.Warn("Application token renewal failed, keeping current token",
				logger.Duration("remaining", remaining),
				logger.Error(err),
			)
		}
	}
	setBearer(req, e.tok.value)
	return nil
}

func (e *EntraSSO) credential() (string, error) {
	var c applicationCredential
	c.Params.ApplicationID = e.appID
	c.Params.ApplicationName = e.appName
	c.Params.ApplicationSecret = e.secret

	out, err := xml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal application credential: %w", err)
	}
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + string(out), nil
}

func (e *EntraSSO) login(ctx context.Context) error {
	cred, err := e.credential()
	if err != nil {
		return err
	}
	form := url.Values{"applicationcredential": {cred}}.Encode()

	e.log.Info("Logging in", logger.String("app_name", e.appName), logger.String("app_id", e.appID))

	return retry.Do(ctx, e.retry, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, e.loginURL, bytes.NewBufferString(form))
		if reqErr != nil {
			return fmt.Errorf("create login request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, doErr := e.client.Do(req)
		if doErr != nil {
			return fmt.Errorf("login request: %w", doErr)
		}
		body, readErr := readOK(resp, "entrasso login")
		if readErr != nil {
			return readErr
		}

		tok, parseErr := parseApplicationToken(body)
		if parseErr != nil {
			return parseErr
		}
		e.tok = tok
		return nil
	})
}

func parseApplicationToken(body []byte) (token, error) {
	var at applicationToken
	if err := xml.Unmarshal(body, &at); err != nil {
		return token{}, fmt.Errorf("%w: decode application token: %w", ErrLoginFailed, err)
	}
	if at.Params.TokenID == "" {
		return token{}, fmt.Errorf("%w: no applicationtokenID in response", ErrLoginFailed)
	}

	exp, err := strconv.ParseInt(strings.TrimSpace(at.Params.Expires), 10, 64)
	if err != nil {
		return token{}, fmt.Errorf("%w: parse expires %q: %w", ErrLoginFailed, at.Params.Expires, err)
	}

	var expires time.Time
	if exp > epochMillisThreshold {
		expires = time.UnixMilli(exp)
	} else {
		expires = time.Unix(exp, 0)
	}
	return token{value: at.Params.TokenID, expires: expires}, nil
}
