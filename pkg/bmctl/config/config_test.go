package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telekom/bulkmail/pkg/readiness"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.CurrentContext = "prod"
	cfg.Contexts = []Context{
		{
			Name:   "prod",
			Server: "https://bulkmail.example.com",
			SMTP: SMTP{
				Host:  "smtp.example.com",
				Port:  2525,
				Email: "news@example.com",
			},
		},
	}

	require.NoError(t, Save(path, &cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.CurrentContext, loaded.CurrentContext)
	require.Len(t, loaded.Contexts, 1)
	require.Equal(t, cfg.Contexts[0], loaded.Contexts[0])
	require.Equal(t, cfg.Settings, loaded.Settings)
}

func TestLoadDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `version: v1
settings:
  timeout: 45s
  probe:
    attempts: 5
    delay: 250ms
    timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, cfg.Settings.Timeout)

	policy := cfg.Settings.RetryPolicy()
	require.Equal(t, 5, policy.MaxAttempts)
	require.Equal(t, 250*time.Millisecond, policy.Delay)
	require.Equal(t, 2*time.Second, policy.PerAttemptTimeout)
}

func TestDefaultConfigProbeMatchesReadiness(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, readiness.DefaultRetryPolicy(), cfg.Settings.RetryPolicy())
	require.Equal(t, "table", cfg.Settings.OutputFormat)
}

func TestAddDeleteContext(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.AddContext(DefaultContext()))
	require.Equal(t, "local", cfg.CurrentContext)

	err := cfg.AddContext(Context{Name: "local", Server: "http://other"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")

	require.NoError(t, cfg.AddContext(Context{Name: "prod", Server: "https://prod"}))
	require.Equal(t, "local", cfg.CurrentContext)

	require.NoError(t, cfg.DeleteContext("local"))
	require.Empty(t, cfg.CurrentContext)
	require.Equal(t, "prod", cfg.CurrentContextOrDefault())

	err = cfg.DeleteContext("missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "context not found")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "config path is required")
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("invalid: [yaml: content"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse config")
}

func TestSaveNilConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := Save(path, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "config is nil")
}

func TestSaveDefaultsVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{} // No version set
	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, VersionV1, loaded.Version)
}

func TestFindContext(t *testing.T) {
	cfg := &Config{
		Contexts: []Context{
			{Name: "prod", Server: "https://prod.example.com"},
			{Name: "dev", Server: "https://dev.example.com"},
		},
	}

	t.Run("finds existing context", func(t *testing.T) {
		ctx, err := cfg.FindContext("prod")
		require.NoError(t, err)
		require.Equal(t, "prod", ctx.Name)
		require.Equal(t, "https://prod.example.com", ctx.Server)
	})

	t.Run("returns error for non-existent context", func(t *testing.T) {
		_, err := cfg.FindContext("staging")
		require.Error(t, err)
		require.Contains(t, err.Error(), "context not found")
	})
}

func TestCurrentContextOrDefault(t *testing.T) {
	t.Run("returns current context when set", func(t *testing.T) {
		cfg := &Config{
			CurrentContext: "prod",
			Contexts:       []Context{{Name: "dev"}, {Name: "prod"}},
		}
		require.Equal(t, "prod", cfg.CurrentContextOrDefault())
	})

	t.Run("returns first context when current not set", func(t *testing.T) {
		cfg := &Config{
			Contexts: []Context{{Name: "dev"}, {Name: "prod"}},
		}
		require.Equal(t, "dev", cfg.CurrentContextOrDefault())
	})

	t.Run("returns empty string when no contexts", func(t *testing.T) {
		cfg := &Config{}
		require.Equal(t, "", cfg.CurrentContextOrDefault())
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := &Config{
			Version: VersionV1,
			Contexts: []Context{
				{Name: "prod", Server: "https://example.com"},
			},
		}
		require.NoError(t, cfg.Validate())
	})

	t.Run("missing version", func(t *testing.T) {
		cfg := &Config{Version: ""}
		err := cfg.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "config version missing")
	})

	t.Run("empty context name", func(t *testing.T) {
		cfg := &Config{
			Version:  VersionV1,
			Contexts: []Context{{Name: "  ", Server: "https://example.com"}},
		}
		err := cfg.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "context name cannot be empty")
	})

	t.Run("empty context server", func(t *testing.T) {
		cfg := &Config{
			Version:  VersionV1,
			Contexts: []Context{{Name: "prod", Server: "  "}},
		}
		err := cfg.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "server is required")
	})

	t.Run("duplicate context", func(t *testing.T) {
		cfg := &Config{
			Version: VersionV1,
			Contexts: []Context{
				{Name: "prod", Server: "https://a"},
				{Name: "prod", Server: "https://b"},
			},
		}
		err := cfg.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "more than once")
	})

	t.Run("smtp port out of range", func(t *testing.T) {
		cfg := &Config{
			Version:  VersionV1,
			Contexts: []Context{{Name: "prod", Server: "https://a", SMTP: SMTP{Port: 70000}}},
		}
		err := cfg.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "out of range")
	})

	t.Run("negative probe attempts", func(t *testing.T) {
		cfg := &Config{Version: VersionV1, Settings: Settings{Probe: ProbeSettings{Attempts: -1}}}
		require.Error(t, cfg.Validate())
	})
}
