package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telekom/bulkmail/pkg/bmctl/output"
	"github.com/telekom/bulkmail/pkg/dispatch"
	"github.com/telekom/bulkmail/pkg/pipeline"
	"github.com/telekom/bulkmail/pkg/report"
)

const passwordEnv = "BMCTL_SMTP_PASSWORD"

// RunFailedError is returned when a send run finished with any status other than completed.
type RunFailedError struct {
	RunID  string
	Status pipeline.Status
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s finished with status %s", e.RunID, e.Status)
}

func NewSendCommand() *cobra.Command {
	var (
		contactsPath string
		subject      string
		body         string
		bodyFile     string
		email        string
		password     string
		smtpHost     string
		smtpPort     int
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a personalised message to every contact in a CSV list",
		Long: `Send validates the input, waits for the backend to become ready and submits
all contacts in a single batch. Subject and body may reference any CSV column
as {{column}}.`,
		Example: `  bmctl send --contacts contacts.csv --subject "Hi {{name}}" --body-file body.txt --email me@example.com
  cat contacts.csv | bmctl send --contacts - --subject News --body "Hello {{name}}" -o json`,
		Args: cobra.NoArgs,
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

		rawContacts, err := readSource(cmd, contactsPath)
		if err != nil {
			return fmt.Errorf("failed to read contacts: %w", err)
		}
		if bodyFile != "" {
			if cmd.Flags().Changed("body") {
				return errors.New("--body and --body-file are mutually exclusive")
			}
			body, err = readSource(cmd, bodyFile)
			if err != nil {
				return fmt.Errorf("failed to read body: %w", err)
			}
		}
		if password == "" {
			password = os.Getenv(passwordEnv)
		}

		c, ctxCfg, err := buildClient(rt)
		if err != nil {
			return err
		}
		if email == "" {
			email = ctxCfg.SMTP.Email
		}
		if smtpHost == "" {
			smtpHost = firstNonEmpty(ctxCfg.SMTP.Host, dispatch.DefaultSMTPHost)
		}
		if smtpPort == 0 {
			smtpPort = ctxCfg.SMTP.Port
			if smtpPort == 0 {
				smtpPort = dispatch.DefaultSMTPPort
			}
		}

		prober := buildProber(rt, c, probe.policy(cmd, rt))

		var sink report.Sink = report.Discard
		streaming := format == output.FormatTable || format == output.FormatWide
		if streaming {
			sink = output.NewEntryWriter(rt.Writer())
		}
		orchestrator := pipeline.New(prober, c,
			pipeline.WithSink(sink),
			pipeline.WithLogger(rt.Logger()))

		rep, err := orchestrator.Run(cmd.Context(), pipeline.Input{
			Identity:    email,
			Secret:      password,
			Host:        smtpHost,
			Port:        smtpPort,
			Subject:     subject,
			Body:        body,
			ContactsRaw: rawContacts,
		})
		if err != nil {
			return err
		}

		if streaming {
			if format == output.FormatWide && rep.Outcome != nil && len(rep.Outcome.Results) > 0 {
				_, _ = fmt.Fprintln(rt.Writer())
				output.WriteResultTable(rt.Writer(), rep.Outcome.Results)
			}
			output.WriteRunSummary(rt.Writer(), rep.RunID, string(rep.Status), rep.Counts, rep.StartedAt, rep.FinishedAt)
		} else if err := output.WriteObject(rt.Writer(), format, rep); err != nil {
			return err
		}

		if !rep.Succeeded() {
			return &RunFailedError{RunID: rep.RunID, Status: rep.Status}
		}
		return nil
	}

	cmd.Flags().StringVar(&contactsPath, "contacts", "", "CSV file with a header row, or - for stdin")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject template")
	cmd.Flags().StringVar(&body, "body", "", "Body template")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the body template from a file, or - for stdin")
	cmd.Flags().StringVar(&email, "email", "", "Sender address (default from context)")
	cmd.Flags().StringVar(&password, "password", "", "SMTP app password (default $"+passwordEnv+")")
	cmd.Flags().StringVar(&smtpHost, "smtp-host", "", "SMTP relay host (default from context, "+dispatch.DefaultSMTPHost+")")
	cmd.Flags().IntVar(&smtpPort, "smtp-port", 0, fmt.Sprintf("SMTP relay port (default from context, %d)", dispatch.DefaultSMTPPort))
	_ = cmd.MarkFlagRequired("contacts")
	return cmd
}

// readSource reads a file, or stdin when path is "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
