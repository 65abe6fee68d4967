// cmd/preflight/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hamed0406/sitehealth/internal/config"
	"github.com/hamed0406/sitehealth/internal/probe"
)

func main() {
	cfgPath := flag.String("config", "", "path to a TOML config file (optional)")
	flag.Parse()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	if err := godotenv.Load(); err != nil {
		warn(".env not found; using process environment only.")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail("config invalid: " + err.Error())
	}
	ok(fmt.Sprintf("config valid (addr=%s worker_id=%s timeout=%s)", cfg.Addr, cfg.WorkerID, cfg.Timeout()))

	if err := probe.CheckSocket(cfg.PingPrivileged); err != nil {
		if cfg.PingPrivileged {
			warn("ICMP raw socket unavailable; ping checks will report down. Grant CAP_NET_RAW or set PING_PRIVILEGED=false. (" + err.Error() + ")")
		} else {
			warn("ICMP datagram socket unavailable; ping checks will report down. Widen net.ipv4.ping_group_range or set PING_PRIVILEGED=true. (" + err.Error() + ")")
		}
	} else {
		ok(fmt.Sprintf("ICMP socket opens (privileged=%t)", cfg.PingPrivileged))
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		fail("LOG_DIR not creatable: " + err.Error())
	}
	f, err := os.CreateTemp(cfg.LogDir, ".preflight-*")
	if err != nil {
		fail("LOG_DIR not writable: " + err.Error())
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	ok("LOG_DIR writable: " + filepath.Clean(cfg.LogDir))

	if len(cfg.Nameservers) > 0 {
		ok("NAMESERVERS=" + strings.Join(cfg.Nameservers, ","))
	} else {
		ok("using system resolver")
	}

	if cfg.MaxConcurrency == 0 {
		warn("MAX_CONCURRENT_CHECKS=0; a batch opens one goroutine (and sockets) per URL.")
	}
	if cfg.PublicRPM == 0 {
		warn("PUBLIC_RPM=0; /api/check is not rate limited.")
	}
	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; every origin is allowed by CORS.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
