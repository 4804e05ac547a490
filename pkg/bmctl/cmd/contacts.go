package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telekom/bulkmail/pkg/bmctl/output"
	"github.com/telekom/bulkmail/pkg/contacts"
)

func NewContactsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts FILE|-",
		Short: "Parse a contact list and show the rows that would be sent",
		Long: `Contacts parses a CSV contact list exactly as send does and prints the
surviving rows. Rows whose column count differs from the header are dropped.
No network calls are made.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := output.ParseFormat(rt.OutputFormat())
			if err != nil {
				return err
			}
			raw, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			list, err := contacts.Parse(raw)
			if err != nil {
				return err
			}
			switch format {
			case output.FormatTable:
				output.WriteContactTableCompact(rt.Writer(), list)
			case output.FormatWide:
				output.WriteContactTable(rt.Writer(), list)
			default:
				return output.WriteObject(rt.Writer(), format, list)
			}
			return nil
		},
	}
}
