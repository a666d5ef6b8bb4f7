// Package oauth runs the Google authorization-code flow and token refreshes.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumenapp/lumen/internal/core"
)

const (
	authURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenURL = "https://oauth2.googleapis.com/token"

	// CallbackAddr is the fixed loopback endpoint registered as the OAuth
	// redirect URI. The port is exclusive: a second concurrent authorization
	// attempt fails to bind instead of racing.
	CallbackAddr = "127.0.0.1:18247"
	RedirectURL  = "http://localhost:18247"
)

var scopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/tasks",
	"https://www.googleapis.com/auth/userinfo.email",
}

// ErrCallbackMismatch is returned when the callback carries a state value
// that does not match the one issued for this attempt. CSRF defense; the
// authorization code is discarded.
var ErrCallbackMismatch = errors.New("oauth callback state mismatch")

// Session performs the three-legged flow for one provider. One authorization
// attempt may be in flight per process at a time.
type Session struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTP         *http.Client
}

// NewSession creates a session with the given OAuth client credentials.
func NewSession(clientID, clientSecret string) *Session {
	return &Session{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		HTTP:         &http.Client{Timeout: 30 * time.Second},
	}
}

// StartAuthFlow builds the authorization URL and a fresh CSRF token carried
// as the state parameter. access_type=offline and prompt=consent guarantee a
// refresh token is issued even on re-consent.
func (s *Session) StartAuthFlow() (authorizeURL, state string, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating state token: %w", err)
	}
	state = base64.RawURLEncoding.EncodeToString(buf)

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {s.ClientID},
		"redirect_uri":  {RedirectURL},
		"scope":         {strings.Join(scopes, " ")},
		"state":         {state},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}
	return authURL + "?" + q.Encode(), state, nil
}

// ListenForCode binds the fixed loopback port and blocks until exactly one
// callback request arrives or ctx is done. The state parameter must equal
// expectedState or the attempt fails with ErrCallbackMismatch. The browser
// gets a short confirmation or failure page either way.
func (s *Session) ListenForCode(ctx context.Context, expectedState string) (string, error) {
	ln, err := net.Listen("tcp", CallbackAddr)
	if err != nil {
		return "", fmt.Errorf("starting callback listener: %w", err)
	}

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			state := r.URL.Query().Get("state")

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			switch {
			case code == "" || state == "":
				fmt.Fprint(w, "<html><body>Authentication failed. No code received.</body></html>")
				done <- result{err: errors.New("oauth callback missing code or state")}
			case state != expectedState:
				fmt.Fprint(w, "<html><body>Authentication failed. State mismatch.</body></html>")
				done <- result{err: ErrCallbackMismatch}
			default:
				fmt.Fprint(w, "<html><body>Authentication successful! You can close this window now.</body></html>")
				done <- result{code: code}
			}
		}),
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case done <- result{err: err}:
			default:
			}
		}
	}()
	// Release the port no matter how we leave.
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case r := <-done:
		return r.code, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for oauth callback: %w", ctx.Err())
	}
}

// tokenEndpointResponse is the provider's token grant response.
type tokenEndpointResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

// ExchangeCode trades an authorization code for a token set. ExpiresAt is
// computed from the provider's expires_in.
func (s *Session) ExchangeCode(ctx context.Context, code string) (core.TokenSet, error) {
	return s.tokenGrant(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {RedirectURL},
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
	})
}

// RefreshAccessToken performs the refresh grant. The response may omit a new
// refresh token; callers must keep the previous one in that case.
func (s *Session) RefreshAccessToken(ctx context.Context, refreshToken string) (core.TokenSet, error) {
	return s.tokenGrant(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
	})
}

func (s *Session) tokenGrant(ctx context.Context, form url.Values) (core.TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("oauth: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("oauth: token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var out tokenEndpointResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return core.TokenSet{}, fmt.Errorf("oauth: decode token response: %w", err)
	}
	if out.Error != "" {
		return core.TokenSet{}, fmt.Errorf("oauth: token endpoint: %s: %s", out.Error, out.ErrorDesc)
	}
	if resp.StatusCode != http.StatusOK {
		return core.TokenSet{}, fmt.Errorf("oauth: token endpoint: HTTP %d: %s", resp.StatusCode, string(body))
	}
	if out.AccessToken == "" {
		return core.TokenSet{}, errors.New("oauth: token endpoint returned no access token")
	}

	tokens := core.TokenSet{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
	}
	if out.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
		tokens.ExpiresAt = &expiry
	}
	return tokens, nil
}
