// Package auth manages the OAuth2 device-authorization session lifecycle.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tidarr/internal/domain/consts"
	"tidarr/internal/models"
	"tidarr/internal/net"
	"tidarr/internal/times"
	"tidarr/internal/utils/logging"
)

// State is the session manager's position in the authentication lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateDeviceCodeRequested
	StatePolling
	StateAuthenticated
	StateRefreshing
	StateFailed
)

// String returns a printable state name.
func (s State) String() string {
	switch s {
	case StateDeviceCodeRequested:
		return "device code requested"
	case StatePolling:
		return "polling"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "unauthenticated"
	}
}

// AuthError is a failed authentication step, carrying the provider's
// structured error fields when the server supplied them.
type AuthError struct {
	Op        string
	Message   string
	Status    int
	SubStatus int
	Err       error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth %s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("auth %s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SessionManager owns the session state machine, token lifecycle and
// persistence. Single-process use only; the session file is rewritten
// wholesale on every token-state change.
type SessionManager struct {
	client       *net.Client
	store        *SessionStore
	clock        times.Clock
	clientID     string
	clientSecret string

	// Endpoint URLs, overridable in tests.
	DeviceAuthURL string
	TokenURL      string

	state   State
	session *models.Session
}

// NewSessionManager builds a manager around the given transport and store.
func NewSessionManager(client *net.Client, store *SessionStore, clientID, clientSecret string) *SessionManager {
	return &SessionManager{
		client:       client,
		store:        store,
		clock:        times.Real(),
		clientID:     clientID,
		clientSecret: clientSecret,

		DeviceAuthURL: consts.DeviceAuthURL,
		TokenURL:      consts.TokenURL,

		session: &models.Session{},
	}
}

// SetClock swaps the wall clock, used by tests to avoid real delays.
func (m *SessionManager) SetClock(c times.Clock) { m.clock = c }

// State returns the current lifecycle state.
func (m *SessionManager) State() State { return m.state }

// Session returns the managed session value.
func (m *SessionManager) Session() *models.Session { return m.session }

// LoadOrCreate reads the persisted session and derives the initial state:
// a live access token starts Authenticated, a bare refresh token starts
// Refreshing, anything else starts Unauthenticated.
func (m *SessionManager) LoadOrCreate() {
	m.session = m.store.Load()

	switch {
	case m.IsAccessTokenValid():
		m.state = StateAuthenticated
	case m.session.HasRefreshToken():
		m.state = StateRefreshing
	default:
		m.state = StateUnauthenticated
	}
	logging.D(1, "Session loaded from %s, initial state: %s", m.store.Path, m.state)
}

// IsAccessTokenValid reports whether an access token is present and the
// current time is strictly before its expiry. No clock-skew margin beyond
// consts.TokenExpirySkew (zero) is applied.
func (m *SessionManager) IsAccessTokenValid() bool {
	if m.session == nil || m.session.AccessToken == "" {
		return false
	}
	return m.clock.Now().Before(m.session.ExpiresAt.Add(-consts.TokenExpirySkew))
}

// deviceCodeResponse is the device-authorization endpoint payload.
type deviceCodeResponse struct {
	DeviceCode              string  `json:"deviceCode"`
	UserCode                string  `json:"userCode"`
	VerificationURI         string  `json:"verificationUri"`
	VerificationURIComplete string  `json:"verificationUriComplete"`
	ExpiresIn               int64   `json:"expiresIn"`
	Interval                float64 `json:"interval"`
}

// tokenResponse is the token endpoint payload for both grant types.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		UserID      int64  `json:"userId"`
		CountryCode string `json:"countryCode"`
	} `json:"user"`
}

// authErrorBody is the provider's structured error payload.
type authErrorBody struct {
	Status      int    `json:"status"`
	SubStatus   int    `json:"sub_status"`
	ErrorCode   string `json:"error"`
	UserMessage string `json:"userMessage"`
}

// RequestDeviceCode starts the device-authorization flow and populates the
// session's device-flow fields.
func (m *SessionManager) RequestDeviceCode(ctx context.Context) error {
	form := url.Values{
		"client_id": {m.clientID},
		"scope":     {consts.OAuthScope},
	}

	resp, err := m.client.PostForm(ctx, m.DeviceAuthURL, form)
	if err != nil {
		m.state = StateFailed
		return &AuthError{Op: "device code request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.state = StateFailed
		return m.authErrorFrom("device code request", resp)
	}

	var dc deviceCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&dc); err != nil {
		m.state = StateFailed
		return &AuthError{Op: "device code request", Err: fmt.Errorf("malformed response: %w", err)}
	}

	m.session.DeviceCode = dc.DeviceCode
	m.session.UserCode = dc.UserCode
	m.session.VerificationURL = dc.VerificationURIComplete
	if m.session.VerificationURL == "" {
		m.session.VerificationURL = dc.VerificationURI
	}
	m.session.FlowExpiresAt = m.clock.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)
	m.session.PollInterval = time.Duration(dc.Interval * float64(time.Second))

	m.state = StateDeviceCodeRequested
	logging.D(1, "Device code obtained, user code %s, flow expires in %ds", dc.UserCode, dc.ExpiresIn)
	return nil
}

// PollForToken polls the token endpoint at the server-provided interval
// until the user approves, a terminal error arrives, or the flow expires.
func (m *SessionManager) PollForToken(ctx context.Context) error {
	if m.session.DeviceCode == "" {
		m.state = StateFailed
		return &AuthError{Op: "token poll", Message: "no device code requested"}
	}

	m.state = StatePolling
	for {
		if !m.clock.Now().Before(m.session.FlowExpiresAt) {
			m.session.ClearDeviceFlow()
			m.state = StateFailed
			return &AuthError{Op: "token poll", Message: "device authorization timed out"}
		}
		if err := ctx.Err(); err != nil {
			m.session.ClearDeviceFlow()
			m.state = StateFailed
			return err
		}

		tok, authErr, err := m.requestToken(ctx, url.Values{
			"client_id":     {m.clientID},
			"client_secret": {m.clientSecret},
			"device_code":   {m.session.DeviceCode},
			"grant_type":    {consts.DeviceGrant},
			"scope":         {consts.OAuthScope},
		})
		switch {
		case err != nil:
			m.session.ClearDeviceFlow()
			m.state = StateFailed
			return err
		case authErr != nil:
			if isAuthPending(authErr) {
				logging.D(2, "Authorization still pending, sleeping %v", m.session.PollInterval)
				m.clock.Sleep(m.session.PollInterval)
				continue
			}
			m.session.ClearDeviceFlow()
			m.state = StateFailed
			authErr.Op = "token poll"
			return authErr
		}

		m.applyToken(tok)
		m.session.ClearDeviceFlow()
		m.state = StateAuthenticated
		m.persist()
		logging.S("Authenticated as user %s (%s)", m.session.UserID, m.session.CountryCode)
		return nil
	}
}

// Refresh exchanges the refresh token for a new token pair. Failure wipes
// all token fields, persists the cleared state and drops to Unauthenticated.
func (m *SessionManager) Refresh(ctx context.Context) error {
	if !m.session.HasRefreshToken() {
		m.state = StateUnauthenticated
		return &AuthError{Op: "refresh", Message: "no refresh token"}
	}

	m.state = StateRefreshing
	tok, authErr, err := m.requestToken(ctx, url.Values{
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"refresh_token": {m.session.RefreshToken},
		"grant_type":    {consts.RefreshGrant},
		"scope":         {consts.OAuthScope},
	})
	if err != nil || authErr != nil {
		m.session.ClearTokens()
		m.persist()
		m.state = StateUnauthenticated
		if authErr != nil {
			authErr.Op = "refresh"
			return authErr
		}
		return &AuthError{Op: "refresh", Err: err}
	}

	m.applyToken(tok)
	m.state = StateAuthenticated
	m.persist()
	logging.D(1, "Access token refreshed, valid until %s", m.session.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Authenticate returns a session with a usable bearer token, trying the
// cheapest path first: existing token, then refresh, then the full device
// flow. onDeviceCode runs after a device code is obtained so the caller can
// show the verification link before polling blocks.
func (m *SessionManager) Authenticate(ctx context.Context, onDeviceCode func(userCode, verificationURL string)) (*models.Session, error) {
	if m.IsAccessTokenValid() {
		m.state = StateAuthenticated
		return m.session, nil
	}

	if m.session.HasRefreshToken() {
		if err := m.Refresh(ctx); err == nil {
			return m.session, nil
		} else {
			logging.W("Token refresh failed, falling back to device flow: %v", err)
		}
	}

	if err := m.RequestDeviceCode(ctx); err != nil {
		return nil, err
	}
	if onDeviceCode != nil {
		onDeviceCode(m.session.UserCode, m.session.VerificationURL)
	}
	if err := m.PollForToken(ctx); err != nil {
		return nil, err
	}
	return m.session, nil
}

// requestToken posts to the token endpoint. Exactly one of the three return
// values is meaningful: a token, a structured provider error, or a
// transport/decode error.
func (m *SessionManager) requestToken(ctx context.Context, form url.Values) (*tokenResponse, *AuthError, error) {
	resp, err := m.client.PostForm(ctx, m.TokenURL, form)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, m.authErrorFrom("token request", resp), nil
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, nil, fmt.Errorf("malformed token response: %w", err)
	}
	return &tok, nil, nil
}

// applyToken copies a token response into the session. A missing refresh
// token in the response keeps the existing one.
func (m *SessionManager) applyToken(tok *tokenResponse) {
	m.session.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		m.session.RefreshToken = tok.RefreshToken
	}
	m.session.ExpiresAt = m.clock.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.User.UserID != 0 {
		m.session.UserID = strconv.FormatInt(tok.User.UserID, 10)
	}
	if tok.User.CountryCode != "" {
		m.session.CountryCode = tok.User.CountryCode
	}
}

// persist writes the session file. Failure is logged, never fatal.
func (m *SessionManager) persist() {
	if err := m.store.Persist(m.session); err != nil {
		logging.E("Failed to persist session to %s: %v", m.store.Path, err)
	}
}

// authErrorFrom builds an AuthError from a non-200 response body.
func (m *SessionManager) authErrorFrom(op string, resp *http.Response) *AuthError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var eb authErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return &AuthError{
			Op:      op,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
			Status:  resp.StatusCode,
		}
	}

	msg := eb.UserMessage
	if msg == "" {
		msg = eb.ErrorCode
	}
	return &AuthError{
		Op:        op,
		Message:   msg,
		Status:    eb.Status,
		SubStatus: eb.SubStatus,
	}
}

// isAuthPending identifies the provider's "authorization pending" pair.
// The 400/1002 mapping is provider protocol knowledge, not a general rule.
func isAuthPending(e *AuthError) bool {
	return e.Status == consts.PendingStatus && e.SubStatus == consts.PendingSubStatus
}
