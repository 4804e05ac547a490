package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/bulkmail/pkg/bmctl/output"
	"github.com/telekom/bulkmail/pkg/readiness"
	"github.com/telekom/bulkmail/pkg/report"
)

type healthResult struct {
	Server   string `json:"server" yaml:"server"`
	Ready    bool   `json:"ready" yaml:"ready"`
	Attempts int    `json:"attempts" yaml:"attempts"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func NewHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is ready to accept batches",
		Args:  cobra.NoArgs,
	}
	probe := addProbeFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		rt, err := getRuntime(cmd)
		if err != nil {
			return err
		}
		format, err := output.ParseFormat(rt.OutputFormat())
		if err != nil {
			return err
		}
		c, _, err := buildClient(rt)
		if err != nil {
			return err
		}
		attempts := 0
		checker := readiness.CheckerFunc(func(ctx context.Context) error {
			attempts++
			return c.Health(ctx)
		})
		prober := buildProber(rt, checker, probe.policy(cmd, rt))

		probeErr := prober.Probe(cmd.Context())
		result := healthResult{
			Server:   c.Server(),
			Ready:    probeErr == nil,
			Attempts: attempts,
		}
		if probeErr != nil {
			result.Error = lastProbeFailure(probeErr).Error()
		}

		switch format {
		case output.FormatJSON, output.FormatYAML:
			if err := output.WriteObject(rt.Writer(), format, result); err != nil {
				return err
			}
		default:
			if result.Ready {
				_, _ = fmt.Fprintf(rt.Writer(), "%s %s is ready\n", output.Tag(report.Success), result.Server)
			} else {
				_, _ = fmt.Fprintf(rt.Writer(), "%s %s is not reachable: %s\n", output.Tag(report.Error), result.Server, result.Error)
			}
		}
		return probeErr
	}
	return cmd
}

func lastProbeFailure(err error) error {
	var connErr *readiness.ConnectivityError
	if errors.As(err, &connErr) && connErr.Cause != nil {
		return connErr.Cause
	}
	return err
}
