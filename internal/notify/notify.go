package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi sends to every notifier and returns all failures combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Log writes notifications to the service log. It is always part of the
// fan-out so an alert is never silent when no channel is configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, title, text string) error {
	l.Logger.Warn("notification", zap.String("title", title), zap.String("text", text))
	return nil
}

// Kind distinguishes an outage alert from the all-clear that follows it.
type Kind int

const (
	Down Kind = iota
	Recovered
)

// Alert describes one notification about the monitored endpoint.
type Alert struct {
	Kind     Kind
	Target   string
	Failures int
	At       time.Time
	Since    time.Time
	Context  string
}

// FormatAlert renders a as a title and plain-text body.
func FormatAlert(a Alert) (title, text string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\n", a.Target)
	switch a.Kind {
	case Recovered:
		title = "🟢 " + a.Target + " recovered"
		fmt.Fprintf(&b, "Failed probes before recovery: %d\n", a.Failures)
	default:
		title = "🔴 " + a.Target + " unreachable"
		fmt.Fprintf(&b, "Consecutive failures: %d\n", a.Failures)
	}
	if !a.Since.IsZero() {
		fmt.Fprintf(&b, "Since: %s\n", a.Since.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&b, "Checked: %s", a.At.Format("2006-01-02 15:04:05 MST"))
	if a.Context != "" {
		b.WriteString("\n")
		b.WriteString(a.Context)
	}
	return title, b.String()
}

// Build assembles the configured channels behind a Log notifier. Channels
// left unconfigured are omitted.
func Build(log *zap.Logger, slackWebhook string, smtp SMTPConfig) Multi {
	m := Multi{Log{Logger: log}}
	if s := NewSlack(slackWebhook); s != nil {
		m = append(m, s)
	}
	if e := NewEmail(smtp); e != nil {
		m = append(m, e)
	}
	return m
}
