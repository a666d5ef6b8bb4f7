package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lumenapp/lumen/internal/core"
	"github.com/lumenapp/lumen/internal/integrations"
	"github.com/lumenapp/lumen/internal/store"
)

const (
	defaultInterval = 5 * time.Minute
	mailBatchSize   = 5
)

const triagePrompt = `You triage incoming email for a busy user. Given one email's sender, subject, and snippet, decide whether it deserves an immediate desktop notification. Newsletters, promotions, and automated notices do not. Personal messages, time-sensitive requests, and anything from a real human usually do. Reply with exactly YES or NO.`

// mailSource is the slice of the Gmail client the runner needs.
type mailSource interface {
	FetchRecent(ctx context.Context, maxResults int) ([]integrations.GmailMessage, error)
}

// Runner is the proactive background loop: on a timer it checks for new
// unread mail, triages it with a one-shot model call, and surfaces the
// interesting ones as notifications. Everything it has already seen is
// remembered in the notifications ledger so restarts do not re-notify.
type Runner struct {
	DB       *store.DB
	Mail     mailSource
	Client   core.ModelClient
	Notifier core.Notifier
	Interval time.Duration
	stop     chan struct{}
}

func NewRunner(db *store.DB, mail *integrations.Gmail, client core.ModelClient, notifier core.Notifier) *Runner {
	return &Runner{
		DB:       db,
		Mail:     mail,
		Client:   client,
		Notifier: notifier,
		Interval: defaultInterval,
		stop:     make(chan struct{}),
	}
}

// Start begins the background loop. Tick errors are logged and swallowed; the
// loop only exits on Stop.
func (r *Runner) Start() {
	go func() {
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()

		log.Println("[SCHEDULER] Started, checking every", r.Interval)

		for {
			select {
			case <-ticker.C:
				if err := r.CheckMail(context.Background()); err != nil {
					log.Printf("[SCHEDULER] Mail check failed: %v", err)
				}
			case <-r.stop:
				log.Println("[SCHEDULER] Stopped")
				return
			}
		}
	}()
}

// Stop halts the loop.
func (r *Runner) Stop() {
	close(r.stop)
}

// CheckMail runs one proactive pass. It is a no-op while the google
// integration is disabled or not yet connected.
func (r *Runner) CheckMail(ctx context.Context) error {
	integration, err := r.DB.GetIntegration(ctx, "google")
	if err != nil {
		return fmt.Errorf("loading integration: %w", err)
	}
	if integration == nil || !integration.Enabled {
		return nil
	}

	msgs, err := r.Mail.FetchRecent(ctx, mailBatchSize)
	if err != nil {
		return fmt.Errorf("fetching mail: %w", err)
	}

	for _, msg := range msgs {
		seen, err := r.DB.HasNotified(ctx, msg.ID, "gmail")
		if err != nil {
			log.Printf("[SCHEDULER] Ledger lookup for %s failed: %v", msg.ID, err)
			continue
		}
		if seen {
			continue
		}

		notify, err := r.triage(ctx, msg)
		if err != nil {
			// Leave the message out of the ledger so the next tick
			// retries it.
			log.Printf("[SCHEDULER] Triage for %s failed: %v", msg.ID, err)
			continue
		}

		if notify {
			title := "New email from " + msg.From
			r.Notifier.Notify(title, msg.Subject)
			if err := r.DB.RecordNotification(ctx, msg.ID, "gmail", title); err != nil {
				log.Printf("[SCHEDULER] Recording notification for %s: %v", msg.ID, err)
			}
		} else {
			if err := r.DB.RecordNotification(ctx, msg.ID, "gmail", "SKIPPED"); err != nil {
				log.Printf("[SCHEDULER] Recording skip for %s: %v", msg.ID, err)
			}
		}
	}
	return nil
}

// triage asks the model for a one-shot YES/NO verdict on a single message.
func (r *Runner) triage(ctx context.Context, msg integrations.GmailMessage) (bool, error) {
	body := fmt.Sprintf("From: %s\nSubject: %s\nSnippet: %s", msg.From, msg.Subject, msg.Snippet)
	turns := []core.Turn{{Role: "user", Parts: []core.Part{core.TextPart(body)}}}

	parts, err := r.Client.SendChat(ctx, turns, triagePrompt, nil)
	if err != nil {
		return false, err
	}
	var answer string
	for _, p := range parts {
		answer += p.Text
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(answer)), "YES"), nil
}
