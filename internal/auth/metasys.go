package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/retry"
)

// MetasysRefreshWindow is how close to expiry a token may get before it is refreshed.
const MetasysRefreshWindow = 10 * time.Minute

// MetasysBearer logs in to the Metasys API with username and password and keeps the
// resulting bearer token fresh.
type MetasysBearer struct {
	baseURL  string
	username string
	password string
	client   Doer
	log      logger.Logger
	retry    retry.Config
	now      func() time.Time

	mu  sync.Mutex
	tok token
}

// MetasysOption configures a MetasysBearer.
type MetasysOption func(*MetasysBearer)

// WithMetasysClock overrides the clock.
func WithMetasysClock(now func() time.Time) MetasysOption {
	return func(m *MetasysBearer) { m.now = now }
}

// WithMetasysRetry overrides the retry policy for login.
func WithMetasysRetry(cfg retry.Config) MetasysOption {
	return func(m *MetasysBearer) { m.retry = cfg }
}

// NewMetasysBearer creates the authenticator. client must be a plain client: login and
// refresh requests are sent through it directly and never through Authenticate.
func NewMetasysBearer(baseURL, username, password string, client Doer, log logger.Logger, opts ...MetasysOption) *MetasysBearer {
	m := &MetasysBearer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   client,
		log:      log.With(logger.Component("auth.metasys")),
		retry:    retry.DefaultConfig(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type metasysTokenResponse struct {
	AccessToken string `json:"accessToken"`
	Expires     string `json:"expires"`
}

func (r metasysTokenResponse) token() (token, error) {
	if r.AccessToken == "" {
		return token{}, fmt.Errorf("%w: response has no accessToken", ErrLoginFailed)
	}
	exp, err := time.Parse(time.RFC3339Nano, r.Expires)
	if err != nil {
		return token{}, fmt.Errorf("%w: parse expires %q: %w", ErrLoginFailed, r.Expires, err)
	}
	return token{value: r.AccessToken, expires: exp}, nil
}

// Authenticate implements Authenticator.
func (m *MetasysBearer) Authenticate(ctx context.Context, req *http.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validate(ctx); err != nil {
		return err
	}
	setBearer(req, m.tok.value)
	return nil
}

// validate logs in when there is no token (or it has expired) and refreshes it when
// it is about to expire. Caller holds mu.
func (m *MetasysBearer) validate(ctx context.Context) error {
	now := m.now()
	if m.tok.value == "" || m.tok.remaining(now) <= 0 {
		m.log.Info("Logging in", logger.String("username", m.username))
		return m.login(ctx)
	}

	if remaining := m.tok.remaining(now); remaining < MetasysRefreshWindow {
		m.log.Debug("Refreshing token", logger.Duration("remaining", remaining))
		if err := m.refresh(ctx); err != nil {
			// The current token is still accepted; refresh is retried on the next call.
			m.log.Warn("Token refresh failed, keeping current token",
				logger.Duration("remaining", remaining),
				logger.Error(err),
			)
		}
	}
	return nil
}

func (m *MetasysBearer) login(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{"username": m.username, "password": m.password})
	if err != nil {
		return fmt.Errorf("marshal login: %w", err)
	}

	return retry.Do(ctx, m.retry, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/login", bytes.NewReader(payload))
		if reqErr != nil {
			return fmt.Errorf("create login request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		return m.exchange(req, "login")
	})
}

func (m *MetasysBearer) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/refreshToken", http.NoBody)
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}
	setBearer(req, m.tok.value)
	return m.exchange(req, "refresh")
}

func (m *MetasysBearer) exchange(req *http.Request, what string) error {
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", what, err)
	}
	body, err := readOK(resp, what)
	if err != nil {
		return err
	}

	var tr metasysTokenResponse
	if err = json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrLoginFailed, what, err)
	}
	tok, err := tr.token()
	if err != nil {
		return err
	}
	m.tok = tok
	return nil
}
