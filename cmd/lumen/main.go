// Lumen is a desktop AI sidekick engine: a Gemini-backed conversation loop
// with tools for the user's notes vault, reminders, clipboard, and Google
// account (calendar, mail, tasks), plus a proactive mail-triage loop. The
// console REPL is one interface; a desktop shell can attach the same way.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lumenapp/lumen/internal/agent"
	"github.com/lumenapp/lumen/internal/config"
	"github.com/lumenapp/lumen/internal/crypto"
	"github.com/lumenapp/lumen/internal/gemini"
	"github.com/lumenapp/lumen/internal/integrations"
	"github.com/lumenapp/lumen/internal/notify"
	"github.com/lumenapp/lumen/internal/scheduler"
	"github.com/lumenapp/lumen/internal/store"
	"github.com/lumenapp/lumen/internal/tokens"
	"github.com/lumenapp/lumen/internal/tools"
)

func main() {
	cfg := config.New("")
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	if err := os.MkdirAll(cfg.ConfigDir, 0700); err != nil {
		return fmt.Errorf("config dir: %w", err)
	}
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	cipher := crypto.NewCipher(cfg.KeyPath)
	manager := tokens.NewManager(db, cipher)

	apiKey, err := resolveAPIKey(ctx, cfg, db, cipher)
	if err != nil {
		return err
	}
	if apiKey == "" {
		return fmt.Errorf("Gemini API key not set: set GEMINI_API_KEY or use /key")
	}
	client := gemini.NewClient(apiKey)

	gmail := integrations.NewGmail(manager)
	calendar := integrations.NewCalendar(manager)
	taskList := integrations.NewTasks(manager)
	weather := integrations.NewWeather()

	executor, err := tools.NewExecutor(cfg.VaultPath, db, gmail, calendar, taskList, weather, nil)
	if err != nil {
		return fmt.Errorf("building executor: %w", err)
	}

	service := &agent.Service{
		DB: db,
		Orchestrator: &agent.Orchestrator{
			Client:   client,
			Executor: executor,
			Tools:    tools.Declarations(),
		},
		UserName: cfg.UserName,
		VaultDir: cfg.VaultPath,
	}
	auth := &agent.Auth{DB: db, Tokens: manager}

	runner := scheduler.NewRunner(db, gmail, client, notify.LogSink{})
	runner.Interval = cfg.ProactiveInterval
	runner.Start()
	defer runner.Stop()

	return repl(ctx, service, auth, db, cipher)
}

// resolveAPIKey prefers the env/config value and falls back to the encrypted
// store, so a key entered once with /key survives restarts.
func resolveAPIKey(ctx context.Context, cfg *config.Config, db *store.DB, cipher *crypto.Cipher) (string, error) {
	if cfg.GeminiAPIKey != "" {
		return cfg.GeminiAPIKey, nil
	}
	blob, ok, err := db.GetToken(ctx, "gemini")
	if err != nil || !ok {
		return "", err
	}
	key, err := cipher.Decrypt(blob)
	if err != nil {
		return "", fmt.Errorf("stored API key unreadable: %w", err)
	}
	return key, nil
}

func repl(ctx context.Context, service *agent.Service, auth *agent.Auth, db *store.DB, cipher *crypto.Cipher) error {
	session := agent.NewSessionID()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Println("Lumen ready. /setup <client-id> <client-secret>, /connect, /disconnect, /key <api-key>, /clear, /quit")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return nil

		case line == "/clear":
			if err := service.ClearHistory(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "clear: %v\n", err)
				continue
			}
			session = agent.NewSessionID()
			fmt.Println("History cleared.")

		case strings.HasPrefix(line, "/setup "):
			fields := strings.Fields(line)
			if len(fields) != 3 {
				fmt.Println("usage: /setup <client-id> <client-secret>")
				continue
			}
			if err := auth.SaveClientConfig(ctx, fields[1], fields[2]); err != nil {
				fmt.Fprintf(os.Stderr, "setup: %v\n", err)
				continue
			}
			fmt.Println("Google client configured. Run /connect to sign in.")

		case line == "/connect":
			err := auth.Connect(ctx, func(url string) {
				fmt.Println("Open this URL in your browser:")
				fmt.Println("  " + url)
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "connect: %v\n", err)
				continue
			}
			fmt.Println("Google account connected.")

		case line == "/disconnect":
			if err := auth.Disconnect(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "disconnect: %v\n", err)
				continue
			}
			fmt.Println("Google account disconnected.")

		case strings.HasPrefix(line, "/key "):
			key := strings.TrimSpace(strings.TrimPrefix(line, "/key "))
			blob, err := cipher.Encrypt(key)
			if err != nil {
				fmt.Fprintf(os.Stderr, "key: %v\n", err)
				continue
			}
			if err := db.PutAPIKey(ctx, "gemini", blob); err != nil {
				fmt.Fprintf(os.Stderr, "key: %v\n", err)
				continue
			}
			fmt.Println("API key saved. Restart to use it.")

		default:
			reply, err := service.Chat(ctx, session, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "chat: %v\n", err)
				continue
			}
			fmt.Println(reply)
		}
	}
}
