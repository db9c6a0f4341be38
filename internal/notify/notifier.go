// Package notify delivers (title, body) notification events raised by
// the queue engine. Delivery is fire-and-forget: an unreachable or
// misconfigured receiver never affects the engine.
package notify

import "log"

type Notifier interface {
	Notify(title, body string)
}

// LogNotifier writes notifications to the process log. It is the
// fallback when no webhook receiver is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(title, body string) {
	log.Printf("[notify] %s: %s", title, body)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(title, body string) {}
