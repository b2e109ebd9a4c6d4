package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/gradestats/pkg/logger"
	"github.com/okian/gradestats/pkg/metrics"
)

const defaultCooldown = 15 * time.Minute

var (
	// ErrRateLimited is returned, possibly wrapped, by a Sender when the
	// provider refuses more messages for now.
	ErrRateLimited = errors.New("notification rate limited")
	// ErrSuppressed is returned by Gate.Notify while the rate-limit flag is raised.
	ErrSuppressed = errors.New("notification suppressed")
)

// Sender delivers one message to one student.
type Sender interface {
	Send(ctx context.Context, studentID, message string) error
}

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithCooldown sets how long notifications stay suppressed after a
// rate-limit failure.
func WithCooldown(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithFlag shares a rate-limit flag between gates.
func WithFlag(f *Flag) Option {
	return func(g *Gate) {
		if f != nil {
			g.flag = f
		}
	}
}

// Gate forwards notifications to a Sender unless the provider is known
// to be rate limiting.
type Gate struct {
	sender   Sender
	flag     *Flag
	cooldown time.Duration
	now      func() time.Time
}

// NewGate creates a Gate in front of sender.
func NewGate(sender Sender, opts ...Option) *Gate {
	g := &Gate{
		sender:   sender,
		flag:     &Flag{},
		cooldown: defaultCooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Flag returns the rate-limit flag of the gate.
func (g *Gate) Flag() *Flag {
	return g.flag
}

// Notify sends message to studentID. It returns ErrSuppressed without
// calling the sender while the flag is raised. A sender error wrapping
// ErrRateLimited raises the flag for the cooldown.
func (g *Gate) Notify(ctx context.Context, studentID, message string) error {
	if g.flag.Active(g.now()) {
		metrics.RecordNotification("suppressed")
		return ErrSuppressed
	}

	err := g.sender.Send(ctx, studentID, message)
	switch {
	case err == nil:
		metrics.RecordNotification("sent")
		return nil
	case errors.Is(err, ErrRateLimited):
		g.flag.Set(g.now().Add(g.cooldown))
		metrics.RecordNotification("rate_limited")
	default:
		metrics.RecordNotification("failed")
	}
	return fmt.Errorf("notify %s: %w", studentID, err)
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	log logger.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(l logger.Logger) *LogSender {
	return &LogSender{log: l}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, studentID, message string) error {
	s.log.Info(ctx, "notification", logger.String("student_id", studentID), logger.String("message", message))
	return nil
}
