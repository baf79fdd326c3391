// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/pingmonitor/internal/config"
	"github.com/hamed0406/pingmonitor/internal/probe"
	"github.com/hamed0406/pingmonitor/internal/scheduler"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintln(os.Stderr, "✖", line)
		}
		os.Exit(1)
	}
	target := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	ok("target " + target)

	if cfg.ConnectTimeout > cfg.PingInterval {
		warn(fmt.Sprintf("CONNECT_TIMEOUT_MS (%s) exceeds PING_INTERVAL_MS (%s); slow probes will overlap",
			cfg.ConnectTimeout, cfg.PingInterval))
	}

	switch cfg.StoreKind() {
	case "postgres":
		ok("store postgres (DATABASE_URL present)")
	case "memory":
		warn("STORE=memory: results are lost on restart.")
	default:
		ok("store sqlite at " + cfg.DBPath)
	}

	if cfg.RetentionDays < 1 {
		warn("RETENTION_DAYS < 1: results are kept forever.")
	} else if _, _, err := scheduler.ParseClock(cfg.PruneAt); err != nil {
		fail("PRUNE_AT: " + err.Error())
	} else {
		ok(fmt.Sprintf("retention %d days, pruned daily at %s %s", cfg.RetentionDays, cfg.PruneAt, cfg.Timezone))
	}

	if cfg.SlackWebhook == "" && (cfg.SMTP.Host == "" || len(cfg.SMTP.To) == 0) {
		warn("no SLACK_WEBHOOK or SMTP settings: failure alerts only go to the log.")
	} else {
		ok("notifications configured")
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty: browsers will be blocked by CORS for cross-origin requests.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dns := probe.CheckDNS(ctx, cfg.Host)
	switch dns.Class {
	case "IP_LITERAL", "RESOLVES":
		ok(dns.Summary())
	default:
		warn("target name does not resolve: " + dns.Summary())
	}

	r := probe.NewTCPProber(cfg.Host, cfg.Port, cfg.ConnectTimeout).Probe(ctx)
	if r.LatencyMS != nil {
		ok(fmt.Sprintf("target reachable (%.2fms)", *r.LatencyMS))
	} else {
		warn("target not reachable right now; the monitor will record failures")
	}

	ok("preflight passed")
}
