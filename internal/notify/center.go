// Package notify surfaces asynchronous outcomes to the user without blocking
// the flow that produced them.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind is the severity of a notification
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notifier is implemented by anything that can show a notification.
// Notify must not block the caller.
type Notifier interface {
	Notify(kind Kind, message string)
}

// Notification is one toast
type Notification struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Center keeps the visible notifications of one workspace, dismisses them after
// a fixed interval and fans them out to live subscribers in order.
type Center struct {
	dismissAfter time.Duration
	buffer       int
	logger       *zap.Logger

	mu      sync.Mutex
	seq     uint64
	visible []Notification
	timers  map[string]*time.Timer
	subs    map[chan Notification]struct{}
	closed  bool
}

// NewCenter creates a notification center
func NewCenter(dismissAfter time.Duration, buffer int, logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Center{
		dismissAfter: dismissAfter,
		buffer:       buffer,
		logger:       logger,
		timers:       make(map[string]*time.Timer),
		subs:         make(map[chan Notification]struct{}),
	}
}

// Notify records a notification and schedules its dismissal
func (c *Center) Notify(kind Kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.seq++
	n := Notification{
		ID:        uuid.New().String(),
		Seq:       c.seq,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
	}
	c.visible = append(c.visible, n)
	if c.dismissAfter > 0 {
		id := n.ID
		c.timers[id] = time.AfterFunc(c.dismissAfter, func() { c.Dismiss(id) })
	}

	for ch := range c.subs {
		select {
		case ch <- n:
		default:
			c.logger.Warn("Dropping notification for slow subscriber", zap.Uint64("seq", n.Seq))
		}
	}

	c.logger.Debug("Notification",
		zap.String("kind", string(kind)),
		zap.String("message", message),
		zap.Uint64("seq", n.Seq),
	)
}

// Dismiss removes a visible notification. It reports whether it was visible.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, n := range c.visible {
		if n.ID == id {
			c.visible = append(c.visible[:i], c.visible[i+1:]...)
			return true
		}
	}
	return false
}

// Visible returns the visible notifications, oldest first
func (c *Center) Visible() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, len(c.visible))
	copy(out, c.visible)
	return out
}

// Subscribe returns a channel receiving every notification raised after the
// call, and a function that ends the subscription.
func (c *Center) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, c.buffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

// Close stops pending dismissal timers and ends all subscriptions
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
}
