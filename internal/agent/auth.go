package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lumenapp/lumen/internal/oauth"
	"github.com/lumenapp/lumen/internal/store"
	"github.com/lumenapp/lumen/internal/tokens"
)

// connectTimeout caps how long the callback listener waits for the user to
// finish consenting in the browser.
const connectTimeout = 5 * time.Minute

// Auth is the account-connection front door for the google provider.
type Auth struct {
	DB     *store.DB
	Tokens *tokens.Manager
}

type clientConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// SaveClientConfig stores the OAuth client credentials for the google
// integration, preserving its enabled flag if it already exists.
func (a *Auth) SaveClientConfig(ctx context.Context, clientID, clientSecret string) error {
	cfg, err := json.Marshal(clientConfig{ClientID: clientID, ClientSecret: clientSecret})
	if err != nil {
		return err
	}
	integration, err := a.DB.GetIntegration(ctx, "google")
	if err != nil {
		return err
	}
	if integration == nil {
		integration = &store.Integration{Name: "google", Status: "configured"}
	}
	integration.Config = string(cfg)
	return a.DB.SaveIntegration(ctx, integration)
}

// Connect runs the full authorization-code flow: it hands the authorize URL
// to openURL (typically a browser launcher or a REPL print), waits on the
// loopback listener for the redirect, exchanges the code, and persists the
// encrypted tokens. The listener gives up after connectTimeout.
func (a *Auth) Connect(ctx context.Context, openURL func(url string)) error {
	integration, err := a.DB.GetIntegration(ctx, "google")
	if err != nil {
		return err
	}
	if integration == nil || integration.Config == "" {
		return tokens.ErrConfigMissing
	}
	var cfg clientConfig
	if err := json.Unmarshal([]byte(integration.Config), &cfg); err != nil {
		return fmt.Errorf("%w: %v", tokens.ErrConfigMissing, err)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return tokens.ErrConfigMissing
	}

	session := oauth.NewSession(cfg.ClientID, cfg.ClientSecret)
	authorizeURL, state, err := session.StartAuthFlow()
	if err != nil {
		return fmt.Errorf("starting auth flow: %w", err)
	}
	openURL(authorizeURL)

	listenCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	code, err := session.ListenForCode(listenCtx, state)
	if err != nil {
		return fmt.Errorf("waiting for callback: %w", err)
	}

	tokenSet, err := session.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging code: %w", err)
	}
	if err := a.Tokens.SaveTokens(ctx, "google", tokenSet); err != nil {
		return fmt.Errorf("persisting tokens: %w", err)
	}

	integration.Enabled = true
	integration.Status = "connected"
	if err := a.DB.SaveIntegration(ctx, integration); err != nil {
		return err
	}
	log.Printf("[AUTH] google account connected")
	return nil
}

// Disconnect drops the stored tokens and marks the integration disabled. The
// client config is kept so the user can reconnect without re-entering it.
func (a *Auth) Disconnect(ctx context.Context) error {
	if err := a.DB.DeleteToken(ctx, "google"); err != nil {
		return err
	}
	integration, err := a.DB.GetIntegration(ctx, "google")
	if err != nil || integration == nil {
		return err
	}
	integration.Enabled = false
	integration.Status = "disconnected"
	return a.DB.SaveIntegration(ctx, integration)
}
