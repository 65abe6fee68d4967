package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hamed0406/sitehealth/internal/config"
	"github.com/hamed0406/sitehealth/internal/logging"
	"github.com/hamed0406/sitehealth/internal/monitor"
)

func main() {
	cfgPath := flag.String("config", "", "path to a TOML config file (optional)")
	verbose := flag.Bool("v", false, "log probe activity to stderr")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: cli [-config file] [-v] <url> [url...]")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, err = logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: "debug", Console: true})
		if err != nil {
			fmt.Fprintln(os.Stderr, "logger:", err)
			os.Exit(1)
		}
		defer logger.Sync()
	}

	targets := make([]string, 0, flag.NArg())
	for _, raw := range flag.Args() {
		raw = strings.TrimSpace(raw)
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		targets = append(targets, raw)
	}

	engine := monitor.NewFromConfig(cfg, logger)
	results, err := engine.MonitorURLs(context.Background(), targets)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid input:", err)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}

	for _, r := range results {
		if !r.IsUp {
			os.Exit(1)
		}
	}
}
