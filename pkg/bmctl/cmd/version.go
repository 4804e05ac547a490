package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/bulkmail/pkg/bmctl/output"
	"github.com/telekom/bulkmail/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show bmctl version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			// Get runtime if available (for custom writer), but don't fail if missing
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			if rt != nil {
				writer = rt.Writer()
			}

			switch format := output.Format(outputFormat); format {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(writer, format, info)
			default:
				_, _ = fmt.Fprintf(writer, "bmctl %s\n", info)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: json, yaml")

	return cmd
}
