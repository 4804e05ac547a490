package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/bulkmail/pkg/bmctl/config"
)

func TestConfigGetContextsAndCurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	path := configPathForTest(t)

	cfg := config.DefaultConfig()
	cfg.CurrentContext = "ctx-2"
	cfg.Contexts = []config.Context{
		{Name: "ctx-1", Server: "https://one.example"},
		{Name: "ctx-2", Server: "https://two.example", SMTP: config.SMTP{Host: "smtp.two.example", Port: 465, Email: "ops@two.example"}},
	}
	require.NoError(t, config.Save(path, &cfg))

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"config", "get-contexts"})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ctx-1", "https://one.example", "-", "-"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"*", "ctx-2", "https://two.example", "smtp.two.example:465", "ops@two.example"}, strings.Fields(lines[2]))

	buf.Reset()
	root = NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"config", "current-context"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "ctx-2\n", buf.String())
}

func TestConfigUseContextUpdatesConfig(t *testing.T) {
	for _, verb := range []string{"use-context", "use", "set-context"} {
		t.Run(verb, func(t *testing.T) {
			buf := &bytes.Buffer{}
			path := configPathForTest(t)

			cfg := config.DefaultConfig()
			cfg.CurrentContext = "ctx-1"
			cfg.Contexts = []config.Context{
				{Name: "ctx-1", Server: "https://one.example"},
				{Name: "ctx-2", Server: "https://two.example"},
			}
			require.NoError(t, config.Save(path, &cfg))

			root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
			root.SetArgs([]string{"config", verb, "ctx-2"})
			require.NoError(t, root.Execute())
			assert.Equal(t, "ctx-2\n", buf.String())

			updated, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, "ctx-2", updated.CurrentContext)
		})
	}
}

func TestConfigSetValueCommands(t *testing.T) {
	path := configPathForTest(t)

	cfg := config.DefaultConfig()
	cfg.Contexts = []config.Context{{Name: "ctx", Server: "https://example"}}
	cfg.CurrentContext = "ctx"
	require.NoError(t, config.Save(path, &cfg))

	set := func(key, value string) error {
		root := NewRootCommand(Config{ConfigPath: path, OutputWriter: &bytes.Buffer{}})
		root.SetArgs([]string{"config", "set", "--", key, value})
		return root.Execute()
	}

	require.NoError(t, set("settings.output-format", "json"))
	require.NoError(t, set("settings.timeout", "10s"))
	require.NoError(t, set("settings.probe.attempts", "5"))
	require.NoError(t, set("settings.probe.delay", "2s"))
	require.NoError(t, set("settings.probe.timeout", "750ms"))

	updated, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json", updated.Settings.OutputFormat)
	assert.Equal(t, 10*time.Second, updated.Settings.Timeout)
	assert.Equal(t, config.ProbeSettings{Attempts: 5, Delay: 2 * time.Second, Timeout: 750 * time.Millisecond}, updated.Settings.Probe)

	err = set("settings.probe.attempts", "many")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid probe attempts")

	err = set("settings.output-format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")

	err = set("settings.probe.attempts", "-1")
	require.Error(t, err)

	err = set("settings.color", "auto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported key")
}

func TestConfigAddContext(t *testing.T) {
	path := configPathForTest(t)

	cfg := config.DefaultConfig()
	cfg.Contexts = []config.Context{{Name: "existing", Server: "https://existing.example"}}
	cfg.CurrentContext = "existing"
	require.NoError(t, config.Save(path, &cfg))

	buf := &bytes.Buffer{}
	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{
		"config", "add-context", "new",
		"--server", "https://new.example",
		"--smtp-host", "smtp.new.example",
		"--smtp-port", "2525",
		"--email", "team@new.example",
		"--insecure-skip-tls-verify",
	})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Added context new")

	updated, err := config.Load(path)
	require.NoError(t, err)
	ctx, err := updated.FindContext("new")
	require.NoError(t, err)
	assert.Equal(t, config.SMTP{Host: "smtp.new.example", Port: 2525, Email: "team@new.example"}, ctx.SMTP)
	assert.True(t, ctx.InsecureSkipTLSVerify)
	assert.Equal(t, "existing", updated.CurrentContext)
}

func TestConfigAddContextDuplicate(t *testing.T) {
	path := configPathForTest(t)
	cfg := config.DefaultConfig()
	cfg.Contexts = []config.Context{{Name: "ctx", Server: "https://example"}}
	require.NoError(t, config.Save(path, &cfg))

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: &bytes.Buffer{}})
	root.SetArgs([]string{"config", "add-context", "ctx", "--server", "https://other"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigDeleteContextClearsCurrent(t *testing.T) {
	path := configPathForTest(t)

	cfg := config.DefaultConfig()
	cfg.Contexts = []config.Context{{Name: "ctx", Server: "https://example"}}
	cfg.CurrentContext = "ctx"
	require.NoError(t, config.Save(path, &cfg))

	buf := &bytes.Buffer{}
	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"config", "delete-context", "ctx"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Deleted context ctx")

	updated, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "", updated.CurrentContext)
}

func TestConfigDeleteContextNotFound(t *testing.T) {
	path := configPathForTest(t)

	cfg := config.DefaultConfig()
	cfg.Contexts = []config.Context{{Name: "ctx", Server: "https://example"}}
	require.NoError(t, config.Save(path, &cfg))

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: &bytes.Buffer{}})
	root.SetArgs([]string{"config", "delete-context", "missing"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context not found")
}

func TestConfigView(t *testing.T) {
	path := configPathForTest(t)
	cfg := config.DefaultConfig()
	cfg.Contexts = []config.Context{{Name: "ctx", Server: "https://example"}}
	require.NoError(t, config.Save(path, &cfg))

	buf := &bytes.Buffer{}
	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"config", "view"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "server: https://example")
}

func configPathForTest(t *testing.T) string {
	t.Helper()
	return t.TempDir() + "/config.yaml"
}
