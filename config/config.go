package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/ubitquityx/constellation/clientcli"
	"github.com/ubitquityx/constellation/database"
)

const (
	EnvPrefix = "CONSTELLATION"

	DefaultAPIURL     = "https://ubitquityx.com/IPFS_Constellation/api"
	DefaultGatewayURL = "https://gateway.ubitquityx.com"
	DefaultTable      = "upload_history"
)

type configKey struct{}

// WithContext returns a new context with the config attached.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Username  string          `mapstructure:"username"`
	Password  string          `mapstructure:"password"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Transport TransportConfig `mapstructure:"transport"`
	History   HistoryConfig   `mapstructure:"history"`
	Log       LogConfig       `mapstructure:"log"`
}

type APIConfig struct {
	URL     string `mapstructure:"url" validate:"required,url"`
	Key     string `mapstructure:"key"`
	KeyFile string `mapstructure:"key_file"`
}

type UploadConfig struct {
	Pin     bool     `mapstructure:"pin"`
	Wrap    bool     `mapstructure:"wrap"`
	Exclude []string `mapstructure:"exclude"`
}

type GatewayConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

type TransportConfig struct {
	// Timeout bounds a whole upload request. Zero means no limit.
	Timeout      time.Duration `mapstructure:"timeout" validate:"min=0"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" validate:"min=0"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type" validate:"required_if=Enabled true,omitempty,oneof=sqlite postgres"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Table   string `mapstructure:"table" validate:"required_if=Enabled true"`
}

// Database returns the connection settings for the history store.
func (h HistoryConfig) Database() database.Config {
	return database.Config{Type: h.Type, DSN: h.DSN, Table: h.Table}
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// LoadOptions selects the sources Load reads besides defaults and environment.
type LoadOptions struct {
	// ConfigFiles are merged left to right. When empty, config.yaml is looked
	// up in DefaultDir and the working directory.
	ConfigFiles []string
	// Profile, when set, overrides config files and is overridden by env and flags.
	Profile *clientcli.Profile
	Flags   *pflag.FlagSet
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"url":           "api.url",
	"key":           "api.key",
	"key-file":      "api.key_file",
	"username":      "username",
	"password":      "password",
	"wrap":          "upload.wrap",
	"exclude":       "upload.exclude",
	"gateway":       "gateway.url",
	"timeout":       "transport.timeout",
	"probe-timeout": "transport.probe_timeout",
	"history-type":  "history.type",
	"history-dsn":   "history.dsn",
	"history-table": "history.table",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// invertedFlagKeys maps negative boolean flags to the key they clear.
var invertedFlagKeys = map[string]string{
	"no-pin":     "upload.pin",
	"no-history": "history.enabled",
}

// bindFlags only binds flags the user changed so unset flags never mask
// lower-precedence sources.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.Visit(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		if key, ok := flagKeys[f.Name]; ok {
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
			return
		}
		if key, ok := invertedFlagKeys[f.Name]; ok {
			set, err := flags.GetBool(f.Name)
			if err != nil {
				bindErr = fmt.Errorf("read flag %s: %w", f.Name, err)
				return
			}
			v.Set(key, !set)
		}
	})
	return bindErr
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", DefaultAPIURL)
	v.SetDefault("api.key", "")
	v.SetDefault("api.key_file", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")

	v.SetDefault("upload.pin", true)
	v.SetDefault("upload.wrap", false)
	v.SetDefault("upload.exclude", []string{})

	v.SetDefault("gateway.url", DefaultGatewayURL)

	v.SetDefault("transport.timeout", time.Duration(0))
	v.SetDefault("transport.probe_timeout", 5*time.Second)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.type", "sqlite")
	v.SetDefault("history.dsn", filepath.Join("~", ".constellation", "history.db"))
	v.SetDefault("history.table", DefaultTable)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// profileSettings converts the non-empty fields of p into a config map.
func profileSettings(p *clientcli.Profile) map[string]any {
	settings := map[string]any{}
	api := map[string]any{}

	if p.URL != "" {
		api["url"] = p.URL
	}
	if p.Key != "" {
		api["key"] = p.Key
	}
	if p.KeyFile != "" {
		api["key_file"] = p.KeyFile
	}
	if len(api) > 0 {
		settings["api"] = api
	}
	if p.Username != "" {
		settings["username"] = p.Username
	}
	if p.Password != "" {
		settings["password"] = p.Password
	}
	if p.Gateway != "" {
		settings["gateway"] = map[string]any{"url": p.Gateway}
	}

	return settings
}

// Load resolves configuration from defaults, config files, the selected
// profile, CONSTELLATION_* environment variables and changed flags, in that
// order of increasing precedence.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	if len(opts.ConfigFiles) > 0 {
		for i, file := range opts.ConfigFiles {
			v.SetConfigFile(file)
			var err error
			if i == 0 {
				err = v.ReadInConfig()
			} else {
				err = v.MergeInConfig()
			}
			if err != nil {
				slog.Warn("failed to load config file", "file", file, "error", err)
			}
		}
	} else {
		v.SetConfigName("config")
		if dir := DefaultDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if opts.Profile != nil {
		if err := v.MergeConfigMap(profileSettings(opts.Profile)); err != nil {
			return nil, fmt.Errorf("merge profile %s: %w", opts.Profile.Name, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.API.URL = strings.TrimRight(cfg.API.URL, "/")
	cfg.Gateway.URL = strings.TrimRight(cfg.Gateway.URL, "/")
	cfg.API.KeyFile = ExpandHome(cfg.API.KeyFile)
	if cfg.History.Type == "sqlite" {
		cfg.History.DSN = ExpandHome(cfg.History.DSN)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultDir returns ~/.constellation, or "" when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".constellation")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
