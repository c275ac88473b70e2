// Package notify delivers short user-facing messages (toasts) produced by the
// cart and wishlist stores.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long a message stays visible before it is dropped.
const DefaultTTL = 3 * time.Second

// Notifier receives user-facing messages.
type Notifier interface {
	Notify(message string)
}

// Func adapts a function to Notifier.
type Func func(message string)

// Notify calls f.
func (f Func) Notify(message string) { f(message) }

// Discard drops every message.
var Discard Notifier = Func(func(string) {})

// Log writes every message to a zap logger.
type Log struct {
	lg *zap.Logger
}

// NewLog returns a Notifier logging through lg.
func NewLog(lg *zap.Logger) *Log {
	return &Log{lg: lg}
}

// Notify logs message at info level.
func (l *Log) Notify(message string) {
	l.lg.Info("Notification", zap.String("message", message))
}

// Message is a single toast.
type Message struct {
	Text      string
	CreatedAt time.Time
}

// Feed buffers messages until they are drained or expire.
// Each message is delivered at most once.
type Feed struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	msgs []Message
}

// NewFeed returns a Feed whose messages expire after ttl.
// A non-positive ttl uses DefaultTTL.
func NewFeed(ttl time.Duration) *Feed {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Feed{ttl: ttl, now: time.Now}
}

// Notify appends message to the feed.
func (f *Feed) Notify(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.msgs = append(f.msgs, Message{Text: message, CreatedAt: f.now()})
}

// Drain returns the unexpired messages in arrival order and empties the feed.
func (f *Feed) Drain() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	out := make([]Message, 0, len(f.msgs))
	for _, m := range f.msgs {
		if now.Sub(m.CreatedAt) < f.ttl {
			out = append(out, m)
		}
	}
	f.msgs = nil
	return out
}

// Fanout forwards every message to each of its notifiers in order.
type Fanout []Notifier

// Notify forwards message.
func (f Fanout) Notify(message string) {
	for _, n := range f {
		if n != nil {
			n.Notify(message)
		}
	}
}
