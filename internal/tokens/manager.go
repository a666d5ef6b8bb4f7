// Package tokens hides token staleness and refresh from every call site that
// makes authenticated requests.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lumenapp/lumen/internal/core"
	"github.com/lumenapp/lumen/internal/crypto"
	"github.com/lumenapp/lumen/internal/oauth"
	"github.com/lumenapp/lumen/internal/store"
)

// expirySkew is subtracted from a token's lifetime so we refresh slightly
// before the provider would reject it.
const expirySkew = 5 * time.Minute

var (
	// ErrCredentialMissing means no token set is stored for the provider;
	// the user has not connected it yet.
	ErrCredentialMissing = errors.New("no stored credentials for provider")
	// ErrConfigMissing means the provider's client_id/client_secret
	// configuration cannot be located.
	ErrConfigMissing = errors.New("provider client configuration missing")
)

// refresher performs the refresh-token grant. *oauth.Session implements it.
type refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (core.TokenSet, error)
}

// Manager loads, validates, refreshes, and persists token sets. Safe for
// concurrent use by the interactive path and the background scheduler; the
// store serializes reads and writes, and a lost refresh race just means one
// redundant grant.
type Manager struct {
	DB     *store.DB
	Cipher *crypto.Cipher
	HTTP   *http.Client

	// newRefresher lets tests substitute the OAuth session.
	newRefresher func(clientID, clientSecret string) refresher
}

// NewManager wires a manager over the credential store and secret cipher.
func NewManager(db *store.DB, cipher *crypto.Cipher) *Manager {
	return &Manager{
		DB:     db,
		Cipher: cipher,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
		newRefresher: func(clientID, clientSecret string) refresher {
			return oauth.NewSession(clientID, clientSecret)
		},
	}
}

// isExpired treats a token with no expiry as always expired, forcing a
// refresh attempt before use.
func isExpired(tokens core.TokenSet) bool {
	if tokens.ExpiresAt == nil {
		return true
	}
	return !time.Now().Add(expirySkew).Before(*tokens.ExpiresAt)
}

// ValidToken returns a token set for provider that is safe to use right now,
// refreshing and persisting it first when stale.
func (m *Manager) ValidToken(ctx context.Context, provider string) (core.TokenSet, error) {
	tokens, err := m.loadTokens(ctx, provider)
	if err != nil {
		return core.TokenSet{}, err
	}
	if !isExpired(tokens) {
		return tokens, nil
	}
	return m.refresh(ctx, provider, tokens)
}

// ForceRefresh refreshes regardless of apparent validity. Used after a 401:
// clock skew or revocation can invalidate a token that still looks fresh.
func (m *Manager) ForceRefresh(ctx context.Context, provider string) (core.TokenSet, error) {
	tokens, err := m.loadTokens(ctx, provider)
	if err != nil {
		return core.TokenSet{}, err
	}
	return m.refresh(ctx, provider, tokens)
}

func (m *Manager) loadTokens(ctx context.Context, provider string) (core.TokenSet, error) {
	encrypted, ok, err := m.DB.GetToken(ctx, provider)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("loading credentials: %w", err)
	}
	if !ok {
		return core.TokenSet{}, fmt.Errorf("%w: %s", ErrCredentialMissing, provider)
	}
	plaintext, err := m.Cipher.Decrypt(encrypted)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("decrypting credentials for %s: %w", provider, err)
	}
	var tokens core.TokenSet
	if err := json.Unmarshal([]byte(plaintext), &tokens); err != nil {
		return core.TokenSet{}, fmt.Errorf("parsing credentials for %s: %w", provider, err)
	}
	return tokens, nil
}

func (m *Manager) refresh(ctx context.Context, provider string, current core.TokenSet) (core.TokenSet, error) {
	if current.RefreshToken == "" {
		return core.TokenSet{}, fmt.Errorf("%w: no refresh token for %s", ErrCredentialMissing, provider)
	}
	clientID, clientSecret, err := m.clientConfig(ctx, provider)
	if err != nil {
		return core.TokenSet{}, err
	}

	fresh, err := m.newRefresher(clientID, clientSecret).RefreshAccessToken(ctx, current.RefreshToken)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("refreshing %s token: %w", provider, err)
	}
	// Providers often omit the refresh token on refresh; keep the old one.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}

	if err := m.SaveTokens(ctx, provider, fresh); err != nil {
		return core.TokenSet{}, err
	}
	log.Printf("[TOKENS] Refreshed %s access token (expires %v)", provider, fresh.ExpiresAt)
	return fresh, nil
}

// SaveTokens encrypts and persists a token set for provider.
func (m *Manager) SaveTokens(ctx context.Context, provider string, tokens core.TokenSet) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}
	encrypted, err := m.Cipher.Encrypt(string(raw))
	if err != nil {
		return fmt.Errorf("encrypting tokens: %w", err)
	}
	if err := m.DB.PutToken(ctx, provider, encrypted); err != nil {
		return fmt.Errorf("persisting tokens: %w", err)
	}
	return nil
}

// clientConfig reads the OAuth client id/secret from the provider's
// integration config.
func (m *Manager) clientConfig(ctx context.Context, provider string) (string, string, error) {
	integration, err := m.DB.GetIntegration(ctx, provider)
	if err != nil {
		return "", "", fmt.Errorf("loading %s integration: %w", provider, err)
	}
	if integration == nil || integration.Config == "" {
		return "", "", fmt.Errorf("%w: %s", ErrConfigMissing, provider)
	}
	var cfg struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal([]byte(integration.Config), &cfg); err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrConfigMissing, provider, err)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return "", "", fmt.Errorf("%w: %s", ErrConfigMissing, provider)
	}
	return cfg.ClientID, cfg.ClientSecret, nil
}

// Do executes one authenticated request built by buildReq, which is called
// with a bearer token and must return a fresh request each time. On a 401 the
// token is force-refreshed and the request retried exactly once; any further
// failure is surfaced as-is. This bounds worst-case chatter at twice the
// request volume.
func (m *Manager) Do(ctx context.Context, provider string, buildReq func(accessToken string) (*http.Request, error)) (*http.Response, error) {
	tokens, err := m.ValidToken(ctx, provider)
	if err != nil {
		return nil, err
	}

	resp, err := m.send(tokens.AccessToken, buildReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	log.Printf("[TOKENS] %s request got 401; forcing refresh and retrying once", provider)
	tokens, err = m.ForceRefresh(ctx, provider)
	if err != nil {
		return nil, err
	}
	return m.send(tokens.AccessToken, buildReq)
}

func (m *Manager) send(accessToken string, buildReq func(string) (*http.Request, error)) (*http.Response, error) {
	req, err := buildReq(accessToken)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return m.HTTP.Do(req)
}
