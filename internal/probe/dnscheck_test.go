package probe

import (
	"context"
	"strings"
	"testing"
)

func TestCheckDNS_IPLiteral(t *testing.T) {
	s := CheckDNS(context.Background(), "192.168.90.3")
	if s.Class != "IP_LITERAL" || !s.IsIP {
		t.Fatalf("want IP_LITERAL, got %+v", s)
	}
	if got := s.Summary(); got != "dns=IP_LITERAL" {
		t.Fatalf("Summary = %q", got)
	}
}

func TestCheckDNS_InvalidName(t *testing.T) {
	for _, h := range []string{"", "  ", "http://example.com"} {
		if s := CheckDNS(context.Background(), h); s.Class != "INVALID_NAME" {
			t.Fatalf("CheckDNS(%q) = %+v", h, s)
		}
	}
}

func TestCheckDNS_Localhost(t *testing.T) {
	s := CheckDNS(context.Background(), "localhost")
	if s.Class != "RESOLVES" {
		t.Skipf("resolver cannot resolve localhost here: %+v", s)
	}
	if !strings.Contains(s.Summary(), "addrs=") {
		t.Fatalf("Summary should list addrs: %q", s.Summary())
	}
}
