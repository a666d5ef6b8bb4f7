package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumenapp/lumen/internal/crypto"
	"github.com/lumenapp/lumen/internal/store"
	"github.com/lumenapp/lumen/internal/tokens"
)

func setupAuth(t *testing.T) *Auth {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(context.Background(), filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Auth{DB: db, Tokens: tokens.NewManager(db, crypto.NewCipher(filepath.Join(dir, "key")))}
}

func TestConnectWithoutConfigFails(t *testing.T) {
	a := setupAuth(t)
	err := a.Connect(context.Background(), func(string) {})
	if !errors.Is(err, tokens.ErrConfigMissing) {
		t.Fatalf("err = %v, want ErrConfigMissing", err)
	}
}

func TestSaveClientConfigRoundtrip(t *testing.T) {
	a := setupAuth(t)
	ctx := context.Background()

	if err := a.SaveClientConfig(ctx, "client-id", "client-secret"); err != nil {
		t.Fatalf("SaveClientConfig: %v", err)
	}
	integration, err := a.DB.GetIntegration(ctx, "google")
	if err != nil || integration == nil {
		t.Fatalf("integration not saved: %v", err)
	}
	if !strings.Contains(integration.Config, "client-id") {
		t.Errorf("config = %q", integration.Config)
	}

	// Re-saving must not clobber the enabled flag.
	integration.Enabled = true
	if err := a.DB.SaveIntegration(ctx, integration); err != nil {
		t.Fatal(err)
	}
	if err := a.SaveClientConfig(ctx, "client-id-2", "client-secret-2"); err != nil {
		t.Fatalf("SaveClientConfig: %v", err)
	}
	integration, _ = a.DB.GetIntegration(ctx, "google")
	if !integration.Enabled {
		t.Error("enabled flag lost on config update")
	}
	if !strings.Contains(integration.Config, "client-id-2") {
		t.Errorf("config not updated: %q", integration.Config)
	}
}

func TestDisconnectDropsTokensKeepsConfig(t *testing.T) {
	a := setupAuth(t)
	ctx := context.Background()

	if err := a.SaveClientConfig(ctx, "id", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := a.DB.PutToken(ctx, "google", "blob"); err != nil {
		t.Fatal(err)
	}

	if err := a.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	has, err := a.DB.HasToken(ctx, "google")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("tokens still present after disconnect")
	}
	integration, _ := a.DB.GetIntegration(ctx, "google")
	if integration == nil || integration.Config == "" {
		t.Error("client config should survive disconnect")
	}
	if integration.Status != "disconnected" || integration.Enabled {
		t.Errorf("integration state = %+v", integration)
	}
}
