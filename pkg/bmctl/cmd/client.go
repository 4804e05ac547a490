package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/bulkmail/pkg/bmctl/client"
	"github.com/telekom/bulkmail/pkg/bmctl/config"
	"github.com/telekom/bulkmail/pkg/readiness"
	"github.com/telekom/bulkmail/pkg/version"
)

func buildClient(rt *runtimeState) (*client.Client, *config.Context, error) {
	if err := rt.EnsureConfigLoaded(); err != nil {
		return nil, nil, err
	}
	ctxCfg, err := rt.ResolveContext()
	if err != nil {
		return nil, nil, err
	}
	server := rt.resolveServer(ctxCfg)
	if server == "" {
		return nil, nil, errors.New("server is required")
	}

	options := []client.Option{
		client.WithServer(server),
		client.WithUserAgent(version.UserAgent("bmctl")),
		client.WithLogger(rt.Logger()),
	}
	if rt.cfg.Settings.Timeout > 0 {
		options = append(options, client.WithTimeout(rt.cfg.Settings.Timeout))
	}
	options = append(options, client.WithTLSConfig(ctxCfg.CAFile, ctxCfg.InsecureSkipTLSVerify))
	c, err := client.New(options...)
	if err != nil {
		return nil, nil, err
	}
	return c, ctxCfg, nil
}

type probeOverrides struct {
	attempts int
	delay    time.Duration
	timeout  time.Duration
}

func addProbeFlags(cmd *cobra.Command) *probeOverrides {
	p := &probeOverrides{}
	cmd.Flags().IntVar(&p.attempts, "probe-attempts", 0, "Health check attempts before giving up (default from config, 3)")
	cmd.Flags().DurationVar(&p.delay, "probe-delay", 0, "Fixed delay between health check attempts (default from config, 1s)")
	cmd.Flags().DurationVar(&p.timeout, "probe-timeout", 0, "Timeout of a single health check attempt (default from config, 5s)")
	return p
}

// policy merges flags over the configured probe settings.
func (p *probeOverrides) policy(cmd *cobra.Command, rt *runtimeState) readiness.RetryPolicy {
	policy := readiness.DefaultRetryPolicy()
	if rt.cfg != nil {
		configured := rt.cfg.Settings.RetryPolicy()
		if configured.MaxAttempts > 0 {
			policy.MaxAttempts = configured.MaxAttempts
		}
		if configured.Delay > 0 {
			policy.Delay = configured.Delay
		}
		if configured.PerAttemptTimeout > 0 {
			policy.PerAttemptTimeout = configured.PerAttemptTimeout
		}
	}
	if cmd.Flags().Changed("probe-attempts") {
		policy.MaxAttempts = p.attempts
	}
	if cmd.Flags().Changed("probe-delay") {
		policy.Delay = p.delay
	}
	if cmd.Flags().Changed("probe-timeout") {
		policy.PerAttemptTimeout = p.timeout
	}
	return policy
}

func buildProber(rt *runtimeState, checker readiness.Checker, policy readiness.RetryPolicy) *readiness.Prober {
	return readiness.NewProber(checker, policy, readiness.WithLogger(rt.Logger()))
}
