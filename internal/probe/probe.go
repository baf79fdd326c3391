package probe

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Prober performs one reachability measurement.
//
// Transport failures (refused, reset, timeout) are reported as a failed
// ProbeResult, never as an error.
type Prober interface {
	Probe(ctx context.Context) domain.ProbeResult
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPProber measures the time to complete a TCP handshake with Host:Port.
type TCPProber struct {
	Host    string
	Port    int
	Timeout time.Duration

	dial dialFunc
}

func NewTCPProber(host string, port int, timeout time.Duration) *TCPProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	d := &net.Dialer{}
	return &TCPProber{Host: host, Port: port, Timeout: timeout, dial: d.DialContext}
}

// Address is the dial target, e.g. "192.168.90.3:80".
func (p *TCPProber) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Probe dials the target once. The dial, the timeout and ctx cancellation race
// to settle the attempt; whichever lands first decides the result.
func (p *TCPProber) Probe(ctx context.Context) domain.ProbeResult {
	a := newAttempt()
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	go func() {
		conn, err := p.dial(dctx, "tcp", p.Address())
		if err != nil {
			a.settle(domain.NewFailure())
			return
		}
		a.settle(domain.NewSuccess(time.Since(start)))
		// Closed whether or not this attempt won; a handshake that completes
		// after the timeout is still a failure.
		closeGracefully(conn)
	}()

	timer := time.NewTimer(p.Timeout)
	defer timer.Stop()

	select {
	case <-a.done:
	case <-timer.C:
		a.settle(domain.NewFailure())
	case <-ctx.Done():
		a.settle(domain.NewFailure())
	}
	return a.result()
}

// closeGracefully sends FIN instead of resetting the connection.
func closeGracefully(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	_ = conn.Close()
}

// attempt is a single-shot result: only the first settle is kept.
type attempt struct {
	once sync.Once
	done chan struct{}
	res  domain.ProbeResult
}

func newAttempt() *attempt {
	return &attempt{done: make(chan struct{})}
}

// settle records r if the attempt is still open and reports whether it won.
func (a *attempt) settle(r domain.ProbeResult) bool {
	won := false
	a.once.Do(func() {
		a.res = r
		won = true
		close(a.done)
	})
	return won
}

func (a *attempt) result() domain.ProbeResult {
	<-a.done
	return a.res
}
