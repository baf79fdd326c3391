package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DNSStatus describes how the monitored host resolves. It is attached to
// failure notifications so the reader can tell a dead host from a dead name.
type DNSStatus struct {
	Host          string
	IsIP          bool
	Addrs         []string
	CNAME         string
	Class         string // "IP_LITERAL" | "RESOLVES" | "NXDOMAIN" | "NO_A_RECORD" | "SERVFAIL_or_TIMEOUT" | "INVALID_NAME"
	ResolverError string
}

var dnsTimeout = 3 * time.Second

// CheckDNS resolves host with the OS resolver. IP literals short-circuit.
func CheckDNS(ctx context.Context, host string) DNSStatus {
	s := DNSStatus{Host: strings.TrimSpace(host)}
	if s.Host == "" || strings.Contains(s.Host, "://") {
		s.Class = "INVALID_NAME"
		return s
	}
	if ip := net.ParseIP(s.Host); ip != nil {
		s.IsIP = true
		s.Addrs = []string{ip.String()}
		s.Class = "IP_LITERAL"
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	r := &net.Resolver{}

	addrs, err := r.LookupHost(ctx, s.Host)
	switch {
	case err == nil && len(addrs) > 0:
		s.Addrs = addrs
		s.Class = "RESOLVES"
	case err != nil:
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			if de.IsNotFound {
				s.Class = "NXDOMAIN"
			} else if de.IsTemporary || de.Timeout() {
				s.Class = "SERVFAIL_or_TIMEOUT"
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Host); err == nil && !strings.EqualFold(cname, s.Host+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}

	if s.Class == "" {
		if s.ResolverError != "" {
			s.Class = "SERVFAIL_or_TIMEOUT"
		} else {
			s.Class = "NO_A_RECORD"
		}
	}
	return s
}

// Summary is a one-line description for notification text.
func (s DNSStatus) Summary() string {
	switch {
	case s.IsIP:
		return "dns=" + s.Class
	case len(s.Addrs) > 0:
		return fmt.Sprintf("dns=%s addrs=%s", s.Class, strings.Join(s.Addrs, ","))
	case s.ResolverError != "":
		return fmt.Sprintf("dns=%s err=%s", s.Class, s.ResolverError)
	}
	return "dns=" + s.Class
}
