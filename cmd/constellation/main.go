package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ubitquityx/constellation/clientcli"
	"github.com/ubitquityx/constellation/config"
)

var (
	version = "dev"

	configFiles  []string
	profileName  string
	profilesFile string
	jsonOutput   bool
	quiet        bool
)

// skipProfileAnnotation marks commands that manage profiles and so must not
// fail when the selected profile is missing.
const skipProfileAnnotation = "constellation/skip-profile"

var rootCmd = &cobra.Command{
	Use:     "constellation",
	Version: version,
	Short:   "Upload files and directories to an IPFS cluster",
	Long: `constellation uploads a file or a directory to an IPFS cluster through its
HTTP API and prints the resulting content identifier (CID).

Settings are read from ~/.constellation/config.yaml, the selected profile in
~/.constellation/profiles.yaml, CONSTELLATION_* environment variables and flags,
with later sources taking precedence.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&configFiles, "config", "c", nil, "config file, may be repeated (default: ~/.constellation/config.yaml)")
	flags.StringVarP(&profileName, "profile", "p", "", "profile name (env: CONSTELLATION_PROFILE)")
	flags.StringVar(&profilesFile, "profiles-file", "", "profiles file (default: ~/.constellation/profiles.yaml, env: CONSTELLATION_PROFILES)")
	flags.StringP("url", "u", "", "cluster API base URL (env: CONSTELLATION_API_URL)")
	flags.StringP("key", "k", "", "API bearer token (env: CONSTELLATION_API_KEY)")
	flags.String("key-file", "", "file holding the API bearer token")
	flags.String("username", "", "basic auth username (env: CONSTELLATION_USERNAME)")
	flags.String("password", "", "basic auth password (env: CONSTELLATION_PASSWORD)")
	flags.String("gateway", "", "gateway used for content links (default: "+config.DefaultGatewayURL+")")
	flags.Duration("timeout", 0, "request timeout, 0 for none")
	flags.Duration("probe-timeout", 0, "connectivity check timeout (default: 5s)")
	flags.String("history-type", "", "history database type: sqlite, postgres")
	flags.String("history-dsn", "", "history database DSN (default: ~/.constellation/history.db)")
	flags.String("history-table", "", "history table name (default: "+config.DefaultTable+")")
	flags.Bool("no-history", false, "do not read or write the upload history")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.BoolVar(&jsonOutput, "json", false, "output as JSON")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil && !isReported(err) {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// loadConfig resolves settings, configures logging and stores the config in
// the command context.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var profile *clientcli.Profile
	if !skipsProfile(cmd) {
		p, err := selectProfile()
		if err != nil {
			return err
		}
		profile = p
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigFiles: configFiles,
		Profile:     profile,
		Flags:       cmd.Flags(),
	})
	if err != nil {
		return err
	}

	setupLogging(cfg.Log)

	cmd.SetContext(config.WithContext(cmd.Context(), cfg))
	return nil
}

// selectProfile returns the named profile, or the default profile when no
// name was given. A missing profiles file is fine unless a name was given.
func selectProfile() (*clientcli.Profile, error) {
	name := profileName
	if name == "" {
		name = clientcli.ProfileFromEnv()
	}

	profiles, err := clientcli.LoadOrEmpty(getProfilesPath())
	if err != nil {
		return nil, err
	}

	if name == "" && len(profiles.Profiles) == 0 {
		return nil, nil
	}

	return profiles.GetProfile(name)
}

func skipsProfile(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[skipProfileAnnotation]; ok {
			return true
		}
	}
	return false
}

func getProfilesPath() string {
	if profilesFile != "" {
		return profilesFile
	}
	if p := clientcli.ProfilesPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultProfilesPath()
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}
