package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/bulkmail/pkg/bmctl/config"
	"github.com/telekom/bulkmail/pkg/bmctl/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bmctl configuration",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigContextsCommand(),
		newConfigCurrentContextCommand(),
		newConfigUseContextCommand(),
		newConfigSetValueCommand(),
		newConfigAddContextCommand(),
		newConfigDeleteContextCommand(),
	)

	return cmd
}

// contextFlags are shared by "config init" and "config add-context".
type contextFlags struct {
	server   string
	caFile   string
	insecure bool
	smtpHost string
	smtpPort int
	email    string
}

func (f *contextFlags) register(cmd *cobra.Command) {
	defaults := config.DefaultContext()
	cmd.Flags().StringVar(&f.server, "server", "", "bulkmail backend URL")
	cmd.Flags().StringVar(&f.caFile, "ca-file", "", "CA bundle for the backend")
	cmd.Flags().BoolVar(&f.insecure, "insecure-skip-tls-verify", false, "Skip TLS verification")
	cmd.Flags().StringVar(&f.smtpHost, "smtp-host", defaults.SMTP.Host, "Default SMTP relay host")
	cmd.Flags().IntVar(&f.smtpPort, "smtp-port", defaults.SMTP.Port, "Default SMTP relay port")
	cmd.Flags().StringVar(&f.email, "email", "", "Default sender address")
	_ = cmd.MarkFlagRequired("server")
}

func (f *contextFlags) context(name string) config.Context {
	return config.Context{
		Name:                  name,
		Server:                f.server,
		CAFile:                f.caFile,
		InsecureSkipTLSVerify: f.insecure,
		SMTP: config.SMTP{
			Host:  f.smtpHost,
			Port:  f.smtpPort,
			Email: f.email,
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var (
		contextName string
		force       bool
		flags       contextFlags
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a bmctl config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			if contextName == "" {
				contextName = config.DefaultContext().Name
			}
			cfg := config.DefaultConfig()
			if err := cfg.AddContext(flags.context(contextName)); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", config.DefaultContext().Name, "Context name")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")
	flags.register(cmd)
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			if format != output.FormatJSON {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, rt.cfg)
		},
	}
}

func newConfigContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-contexts",
		Short: "List configured contexts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			current := rt.cfg.CurrentContextOrDefault()
			rows := make([]output.ContextRow, 0, len(rt.cfg.Contexts))
			for _, ctx := range rt.cfg.Contexts {
				smtp := ""
				if ctx.SMTP.Host != "" {
					smtp = ctx.SMTP.Host
					if ctx.SMTP.Port > 0 {
						smtp = fmt.Sprintf("%s:%d", ctx.SMTP.Host, ctx.SMTP.Port)
					}
				}
				rows = append(rows, output.ContextRow{
					Current: ctx.Name == current,
					Name:    ctx.Name,
					Server:  ctx.Server,
					SMTP:    smtp,
					Sender:  ctx.SMTP.Email,
				})
			}
			output.WriteContextTable(rt.Writer(), rows)
			return nil
		},
	}
}

func newConfigUseContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "use-context NAME",
		Aliases: []string{"use", "set-context"},
		Short:   "Set the default context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if _, err := rt.cfg.FindContext(name); err != nil {
				return err
			}
			rt.cfg.CurrentContext = name
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "%s\n", name)
			return nil
		},
	}
}

func newConfigCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Show the current context",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), rt.cfg.CurrentContext)
			return nil
		},
	}
}

func newConfigSetValueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Set one settings value. Supported keys:
  settings.output-format, settings.timeout,
  settings.probe.attempts, settings.probe.delay, settings.probe.timeout`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			if err := setValue(&rt.cfg.Settings, args[0], args[1]); err != nil {
				return err
			}
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			return config.Save(rt.configPathValue(), rt.cfg)
		},
	}
}

func setValue(s *config.Settings, key, value string) error {
	switch key {
	case "settings.output-format":
		format, err := output.ParseFormat(value)
		if err != nil {
			return err
		}
		s.OutputFormat = string(format)
	case "settings.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout: %s", value)
		}
		s.Timeout = d
	case "settings.probe.attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid probe attempts: %s", value)
		}
		s.Probe.Attempts = n
	case "settings.probe.delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid probe delay: %s", value)
		}
		s.Probe.Delay = d
	case "settings.probe.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid probe timeout: %s", value)
		}
		s.Probe.Timeout = d
	default:
		return fmt.Errorf("unsupported key: %s", key)
	}
	return nil
}

func newConfigAddContextCommand() *cobra.Command {
	var flags contextFlags
	cmd := &cobra.Command{
		Use:   "add-context NAME",
		Short: "Add a new context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if err := rt.cfg.AddContext(flags.context(name)); err != nil {
				return err
			}
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Added context %s\n", name)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newConfigDeleteContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if err := rt.cfg.DeleteContext(name); err != nil {
				return err
			}
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Deleted context %s\n", name)
			return nil
		},
	}
}
