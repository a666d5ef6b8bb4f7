package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime configuration. Secrets (the model API key, OAuth
// client credentials) live in the environment or the encrypted store; never
// committed.
type Config struct {
	// GeminiAPIKey is set from env GEMINI_API_KEY or from the config file.
	GeminiAPIKey string `json:"gemini_api_key"`
	// UserName personalizes the assistant's context block.
	UserName string `json:"user_name"`
	// VaultPath is the notes vault the file tools operate on.
	VaultPath string `json:"vault_path"`
	// ProactiveInterval is how often the background mail check runs.
	ProactiveInterval time.Duration `json:"-"`

	// ConfigDir is where config.json, the key file, and the DB live.
	ConfigDir string `json:"-"`
	// DBPath is the path to lumen.db.
	DBPath string `json:"-"`
	// KeyPath is the path to the cipher key file.
	KeyPath string `json:"-"`
}

// DefaultConfigDir returns ~/.config/lumen, or a project-local .lumen when one
// exists (handy for development).
func DefaultConfigDir() string {
	cwd, _ := os.Getwd()
	local := filepath.Join(cwd, ".lumen")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lumen")
}

// New builds config from env plus an optional config dir. Values from
// config.json in that dir overwrite env values.
func New(configDir string) *Config {
	if configDir == "" {
		if d := os.Getenv("LUMEN_CONFIG_DIR"); d != "" {
			configDir = d
		} else {
			configDir = DefaultConfigDir()
		}
	}

	vault := os.Getenv("LUMEN_VAULT_PATH")
	if vault == "" {
		home, _ := os.UserHomeDir()
		vault = filepath.Join(home, "vault")
	}

	cfg := &Config{
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		UserName:          os.Getenv("LUMEN_USER_NAME"),
		VaultPath:         vault,
		ProactiveInterval: 5 * time.Minute,
		ConfigDir:         configDir,
		DBPath:            filepath.Join(configDir, "lumen.db"),
		KeyPath:           filepath.Join(configDir, ".key"),
	}

	// Priority: env < config file. Keys missing from the JSON leave the
	// env-derived values untouched.
	configPath := filepath.Join(configDir, "config.json")
	if data, err := os.ReadFile(configPath); err == nil {
		_ = json.Unmarshal(data, cfg)
	}

	return cfg
}
