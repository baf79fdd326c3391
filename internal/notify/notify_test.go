package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/mail.v2"
)

type recorder struct {
	titles []string
	err    error
}

func (r *recorder) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func TestMulti_SendsToAllAndCombinesErrors(t *testing.T) {
	a := &recorder{err: errors.New("a down")}
	b := &recorder{}
	c := &recorder{err: errors.New("c down")}

	err := Multi{a, nil, b, c}.Send(context.Background(), "T", "x")
	if len(a.titles) != 1 || len(b.titles) != 1 || len(c.titles) != 1 {
		t.Fatalf("every notifier must be called once")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 combined errors, got %d (%v)", got, err)
	}
}

func TestLog_WritesWarn(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	if err := (Log{Logger: zap.New(core)}).Send(context.Background(), "title", "body"); err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessage("notification").Len() != 1 {
		t.Fatalf("expected one notification log entry")
	}
}

func TestBuild_OmitsUnconfigured(t *testing.T) {
	m := Build(zap.NewNop(), "", SMTPConfig{})
	if len(m) != 1 {
		t.Fatalf("expected only the log notifier, got %d", len(m))
	}
	m = Build(zap.NewNop(), "http://hook", SMTPConfig{Host: "smtp.example", To: []string{"ops@example"}})
	if len(m) != 3 {
		t.Fatalf("expected log+slack+email, got %d", len(m))
	}
}

func TestFormatAlert(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 9, 0, time.UTC)
	title, text := FormatAlert(Alert{
		Target:   "10.0.0.1:443",
		Failures: 10,
		At:       at,
		Since:    at.Add(-9 * time.Second),
		Context:  "dns=IP_LITERAL",
	})
	if !strings.Contains(title, "10.0.0.1:443 unreachable") {
		t.Fatalf("title: %q", title)
	}
	for _, want := range []string{"Consecutive failures: 10", "Since: 2025-06-01 12:00:00 UTC", "dns=IP_LITERAL"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text missing %q:\n%s", want, text)
		}
	}

	title, _ = FormatAlert(Alert{Kind: Recovered, Target: "h:1", At: at})
	if !strings.Contains(title, "recovered") {
		t.Fatalf("recovery title: %q", title)
	}
}

func TestEmail_SendBuildsMessage(t *testing.T) {
	e := NewEmail(SMTPConfig{Host: "smtp.example", Username: "bot@example", To: []string{"a@example", "b@example"}})
	if e == nil {
		t.Fatal("expected email notifier")
	}
	if e.cfg.Port != 587 || e.cfg.From != "bot@example" {
		t.Fatalf("defaults not applied: %+v", e.cfg)
	}
	var got *mail.Message
	e.send = func(m *mail.Message) error { got = m; return nil }

	if err := e.Send(context.Background(), "Subject line", "body"); err != nil {
		t.Fatal(err)
	}
	if got == nil || got.GetHeader("Subject")[0] != "Subject line" || len(got.GetHeader("To")) != 2 {
		t.Fatalf("unexpected message headers")
	}
}

func TestEmail_ContextCancelled(t *testing.T) {
	e := NewEmail(SMTPConfig{Host: "smtp.example", To: []string{"a@example"}})
	block := make(chan struct{})
	defer close(block)
	e.send = func(*mail.Message) error { <-block; return nil }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Send(ctx, "t", "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestEmail_DisabledWithoutRecipients(t *testing.T) {
	if NewEmail(SMTPConfig{Host: "smtp.example"}) != nil {
		t.Fatal("expected nil without recipients")
	}
}
