package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/bmctl/config"
)

type Config struct {
	ConfigPath     string
	OutputWriter   io.Writer
	DefaultContext string
}

type runtimeState struct {
	configPath      string
	cfg             *config.Config
	contextOverride string
	outputFormat    string
	serverOverride  string
	verbose         bool
	writer          io.Writer
	log             *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
	}
}

// commands that never read the config file
var configFree = map[string]bool{
	"version":    true,
	"completion": true,
	"contacts":   true,
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath:      cfg.ConfigPath,
		contextOverride: cfg.DefaultContext,
		writer:          cfg.OutputWriter,
		log:             zap.NewNop().Sugar(),
	}

	root := &cobra.Command{
		Use:           "bmctl",
		Short:         "Bulk mail CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.contextOverride == "" {
				rt.contextOverride = os.Getenv("BMCTL_CONTEXT")
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("BMCTL_OUTPUT")
			}
			if rt.serverOverride == "" {
				rt.serverOverride = os.Getenv("BMCTL_SERVER")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("BMCTL_VERBOSE"), "true")
			}
			if rt.verbose {
				logger, err := newVerboseLogger()
				if err != nil {
					return err
				}
				rt.log = logger.Sugar()
			}

			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if configFree[cmd.Name()] {
				return nil
			}

			loaded, err := config.Load(rt.configPath)
			if err != nil {
				// a server override is enough to talk to a backend without a config file
				if errors.Is(err, os.ErrNotExist) && rt.serverOverride != "" {
					defaults := config.DefaultConfig()
					rt.cfg = &defaults
					return nil
				}
				return err
			}
			rt.cfg = loaded
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = rt.log.Sync()
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.contextOverride, "context", "c", rt.contextOverride, "Context name override")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, wide, json, yaml")
	root.PersistentFlags().StringVar(&rt.serverOverride, "server", "", "Backend URL override (bypass config)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewSendCommand(),
		NewHealthCommand(),
		NewContactsCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func newVerboseLogger() (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) ResolveContextName() string {
	if rt.contextOverride != "" {
		return rt.contextOverride
	}
	if rt.cfg != nil {
		return rt.cfg.CurrentContextOrDefault()
	}
	return ""
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return rt.cfg.Settings.OutputFormat
	}
	return "table"
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log != nil {
		return rt.log
	}
	return zap.NewNop().Sugar()
}

func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

// ResolveContext returns the active context. With a server override and no
// configured contexts it returns an empty context.
func (rt *runtimeState) ResolveContext() (*config.Context, error) {
	if rt.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	name := rt.ResolveContextName()
	if name == "" {
		if rt.serverOverride != "" {
			return &config.Context{}, nil
		}
		return nil, errors.New("no context configured")
	}
	return rt.cfg.FindContext(name)
}

func (rt *runtimeState) resolveServer(ctx *config.Context) string {
	if rt.serverOverride != "" {
		return rt.serverOverride
	}
	if ctx != nil {
		return ctx.Server
	}
	return ""
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}
