// Package notify provides the default notification sink. Desktop rendering
// belongs to the shell embedding the engine; this sink just logs.
package notify

import "log"

// LogSink implements core.Notifier by writing to the process log.
type LogSink struct{}

func (LogSink) Notify(title, body string) {
	log.Printf("[NOTIFY] %s: %s", title, body)
}
