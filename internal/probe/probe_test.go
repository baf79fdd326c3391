package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

func listen(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	h, p, _ := net.SplitHostPort(ln.Addr().String())
	n, _ := strconv.Atoi(p)
	return h, n
}

func TestTCPProber_Success(t *testing.T) {
	host, port := listen(t)
	p := NewTCPProber(host, port, time.Second)

	out := p.Probe(context.Background())
	if out.Status != domain.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if out.LatencyMS == nil || *out.LatencyMS <= 0 {
		t.Fatalf("want positive latency, got %v", out.LatencyMS)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("invalid result: %v", err)
	}
}

func TestTCPProber_RefusedIsFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close() // nothing listens any more

	p := NewTCPProber("127.0.0.1", addr.Port, time.Second)
	out := p.Probe(context.Background())
	if out.Status != domain.Failure || out.LatencyMS != nil {
		t.Fatalf("want failure without latency, got %+v", out)
	}
}

func TestTCPProber_TimeoutIsFailure(t *testing.T) {
	p := NewTCPProber("example.invalid", 80, 30*time.Millisecond)
	p.dial = func(ctx context.Context, _, _ string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	out := p.Probe(context.Background())
	if out.Status != domain.Failure || out.LatencyMS != nil {
		t.Fatalf("want failure, got %+v", out)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("probe did not honour timeout")
	}
}

type trackedConn struct {
	net.Conn
	closed *atomic.Int32
}

func (c trackedConn) Close() error {
	c.closed.Add(1)
	return nil
}

func TestTCPProber_LateHandshakeStaysFailureAndCloses(t *testing.T) {
	var closed atomic.Int32
	release := make(chan struct{})

	p := NewTCPProber("example.invalid", 80, 20*time.Millisecond)
	p.dial = func(ctx context.Context, _, _ string) (net.Conn, error) {
		<-release
		return trackedConn{closed: &closed}, nil
	}

	out := p.Probe(context.Background())
	if out.Status != domain.Failure {
		t.Fatalf("timeout must win over late handshake, got %+v", out)
	}
	close(release)

	deadline := time.Now().Add(time.Second)
	for closed.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if closed.Load() != 1 {
		t.Fatalf("late connection was not closed")
	}
}

func TestAttempt_FirstSettleWins(t *testing.T) {
	a := newAttempt()
	if !a.settle(domain.NewFailure()) {
		t.Fatalf("first settle should win")
	}
	if a.settle(domain.NewSuccess(time.Millisecond)) {
		t.Fatalf("second settle must be ignored")
	}
	if got := a.result(); got.Status != domain.Failure {
		t.Fatalf("result = %+v", got)
	}
}

func TestTCPProber_CancelledContext(t *testing.T) {
	p := NewTCPProber("example.invalid", 80, time.Minute)
	p.dial = func(ctx context.Context, _, _ string) (net.Conn, error) {
		<-ctx.Done()
		return nil, errors.New("cancelled")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if out := p.Probe(ctx); out.Status != domain.Failure {
		t.Fatalf("want failure on cancelled ctx, got %+v", out)
	}
}
