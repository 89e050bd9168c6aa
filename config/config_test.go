package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubitquityx/constellation/clientcli"
	"github.com/ubitquityx/constellation/config"
)

// isolate points HOME at an empty directory and clears CONSTELLATION_* vars
// so developer settings cannot leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{
		"CONSTELLATION_API_URL", "CONSTELLATION_API_KEY", "CONSTELLATION_USERNAME",
		"CONSTELLATION_PASSWORD", "CONSTELLATION_LOG_LEVEL", "CONSTELLATION_HISTORY_TYPE",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	t.Chdir(t.TempDir())
	return home
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, config.DefaultAPIURL, cfg.API.URL)
	assert.Empty(t, cfg.API.Key)
	assert.True(t, cfg.Upload.Pin)
	assert.False(t, cfg.Upload.Wrap)
	assert.Empty(t, cfg.Upload.Exclude)
	assert.Equal(t, config.DefaultGatewayURL, cfg.Gateway.URL)
	assert.Equal(t, time.Duration(0), cfg.Transport.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Transport.ProbeTimeout)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "sqlite", cfg.History.Type)
	assert.Equal(t, filepath.Join(home, ".constellation", "history.db"), cfg.History.DSN)
	assert.Equal(t, "upload_history", cfg.History.Table)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)
	path := writeFile(t, t.TempDir(), "config.yaml", `
api:
  url: http://cluster.local:9094/
  key: file-token
upload:
  pin: false
  wrap: true
  exclude:
    - "**/*.tmp"
gateway:
  url: http://gw.local
transport:
  timeout: 30s
history:
  type: postgres
  dsn: postgres://localhost/history
  table: uploads
log:
  level: debug
  format: json
`)

	cfg, err := config.Load(config.LoadOptions{ConfigFiles: []string{path}})
	require.NoError(t, err)

	assert.Equal(t, "http://cluster.local:9094", cfg.API.URL)
	assert.Equal(t, "file-token", cfg.API.Key)
	assert.False(t, cfg.Upload.Pin)
	assert.True(t, cfg.Upload.Wrap)
	assert.Equal(t, []string{"**/*.tmp"}, cfg.Upload.Exclude)
	assert.Equal(t, "http://gw.local", cfg.Gateway.URL)
	assert.Equal(t, 30*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, "postgres", cfg.History.Type)
	assert.Equal(t, "postgres://localhost/history", cfg.History.DSN)
	assert.Equal(t, "uploads", cfg.History.Database().Table)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFileMerge(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
api:
  url: http://base.local
  key: base-token
log:
  level: warn
`)
	override := writeFile(t, dir, "override.yaml", `
api:
  url: http://override.local
`)

	cfg, err := config.Load(config.LoadOptions{ConfigFiles: []string{base, override}})
	require.NoError(t, err)

	assert.Equal(t, "http://override.local", cfg.API.URL)
	assert.Equal(t, "base-token", cfg.API.Key)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DefaultConfigDir(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".constellation")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	writeFile(t, dir, "config.yaml", "api:\n  key: home-token\n")

	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "home-token", cfg.API.Key)
}

func TestLoad_MissingConfigFileIsIgnored(t *testing.T) {
	isolate(t)

	cfg, err := config.Load(config.LoadOptions{ConfigFiles: []string{filepath.Join(t.TempDir(), "missing.yaml")}})
	require.NoError(t, err)

	assert.Equal(t, config.DefaultAPIURL, cfg.API.URL)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("CONSTELLATION_API_URL", "http://env.local")
	t.Setenv("CONSTELLATION_API_KEY", "env-token")
	t.Setenv("CONSTELLATION_USERNAME", "alice")
	t.Setenv("CONSTELLATION_PASSWORD", "secret")
	t.Setenv("CONSTELLATION_LOG_LEVEL", "error")

	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "http://env.local", cfg.API.URL)
	assert.Equal(t, "env-token", cfg.API.Key)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_Precedence(t *testing.T) {
	isolate(t)
	path := writeFile(t, t.TempDir(), "config.yaml", `
api:
  url: http://file.local
  key: file-token
username: file-user
gateway:
  url: http://file-gw.local
`)
	profile := &clientcli.Profile{
		Name:     "staging",
		URL:      "http://profile.local",
		Key:      "profile-token",
		Username: "profile-user",
	}
	t.Setenv("CONSTELLATION_API_KEY", "env-token")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("url", "", "")
	flags.String("key", "", "")
	flags.String("username", "", "")
	require.NoError(t, flags.Parse([]string{"--url", "http://flag.local"}))

	cfg, err := config.Load(config.LoadOptions{ConfigFiles: []string{path}, Profile: profile, Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "http://flag.local", cfg.API.URL, "flag beats everything")
	assert.Equal(t, "env-token", cfg.API.Key, "env beats profile")
	assert.Equal(t, "profile-user", cfg.Username, "profile beats file")
	assert.Equal(t, "http://file-gw.local", cfg.Gateway.URL, "empty profile field keeps file value")
}

func TestLoad_UnchangedFlagsDoNotOverride(t *testing.T) {
	isolate(t)
	t.Setenv("CONSTELLATION_API_URL", "http://env.local")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("url", "http://flag-default.local", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := config.Load(config.LoadOptions{Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "http://env.local", cfg.API.URL)
}

func TestLoad_InvertedFlags(t *testing.T) {
	isolate(t)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("no-pin", false, "")
	flags.Bool("no-history", false, "")
	flags.Bool("wrap", false, "")
	flags.StringSlice("exclude", nil, "")
	flags.Duration("timeout", 0, "")
	require.NoError(t, flags.Parse([]string{
		"--no-pin", "--no-history", "--wrap", "--exclude", "*.log", "--exclude", "tmp/**", "--timeout", "2m",
	}))

	cfg, err := config.Load(config.LoadOptions{Flags: flags})
	require.NoError(t, err)

	assert.False(t, cfg.Upload.Pin)
	assert.False(t, cfg.History.Enabled)
	assert.True(t, cfg.Upload.Wrap)
	assert.Equal(t, []string{"*.log", "tmp/**"}, cfg.Upload.Exclude)
	assert.Equal(t, 2*time.Minute, cfg.Transport.Timeout)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, t.TempDir(), "config.yaml", "api:\n  key_file: ~/token.txt\n")

	cfg, err := config.Load(config.LoadOptions{ConfigFiles: []string{path}})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "token.txt"), cfg.API.KeyFile)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid api url", content: "api:\n  url: not a url\n"},
		{name: "empty gateway", content: "gateway:\n  url: \"\"\n"},
		{name: "invalid history type", content: "history:\n  type: mysql\n"},
		{name: "missing dsn", content: "history:\n  dsn: \"\"\n"},
		{name: "invalid log level", content: "log:\n  level: verbose\n"},
		{name: "invalid log format", content: "log:\n  format: xml\n"},
		{name: "negative timeout", content: "transport:\n  timeout: -1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			path := writeFile(t, t.TempDir(), "config.yaml", tt.content)

			_, err := config.Load(config.LoadOptions{ConfigFiles: []string{path}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestLoad_HistoryDisabledSkipsHistoryValidation(t *testing.T) {
	isolate(t)
	path := writeFile(t, t.TempDir(), "config.yaml", "history:\n  enabled: false\n  type: \"\"\n  dsn: \"\"\n")

	cfg, err := config.Load(config.LoadOptions{ConfigFiles: []string{path}})
	require.NoError(t, err)

	assert.False(t, cfg.History.Enabled)
}

func TestFromContext(t *testing.T) {
	_, err := config.FromContext(context.Background())
	require.Error(t, err)

	cfg := &config.Config{}
	got, err := config.FromContext(config.WithContext(context.Background(), cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{in: "~", want: home},
		{in: "~/a/b.db", want: filepath.Join(home, "a", "b.db")},
		{in: "/abs/path", want: "/abs/path"},
		{in: "relative", want: "relative"},
		{in: "~user/x", want: "~user/x"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, config.ExpandHome(tt.in))
		})
	}
}
