package monitor

import (
	"go.uber.org/zap"

	"github.com/hamed0406/sitehealth/internal/config"
	"github.com/hamed0406/sitehealth/internal/probe"
)

// NewFromConfig builds the engine the binaries run: ICMP mode and
// nameservers from cfg, one timeout shared by every probe.
func NewFromConfig(cfg config.Config, logger *zap.Logger) *Engine {
	timeout := cfg.Timeout()
	pinger := &probe.Pinger{
		Resolver:   &probe.Resolver{Nameservers: cfg.Nameservers, Timeout: timeout},
		Privileged: cfg.PingPrivileged,
		Timeout:    timeout,
	}
	return New(cfg.WorkerID,
		WithTimeout(timeout),
		WithMaxConcurrency(cfg.MaxConcurrency),
		WithLogger(logger),
		WithPinger(pinger),
		WithHTTPProber(probe.NewHTTPProber(timeout, "sitehealth/"+cfg.WorkerID)),
	)
}
