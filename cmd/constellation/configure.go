package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/clientcli"
	"github.com/ubitquityx/constellation/config"
	"github.com/ubitquityx/constellation/transport"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage cluster profiles",
	Long: `Manage cluster profiles in the profiles file.

Profiles save connection settings for several clusters. Select one with
--profile or CONSTELLATION_PROFILE; otherwise the default profile is used.

Profiles are stored in ~/.constellation/profiles.yaml`,
	Annotations: map[string]string{skipProfileAnnotation: ""},
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured profiles",
	Long: `List all configured profiles.

The default profile is marked with an asterisk (*).`,
	Args: cobra.NoArgs,
	RunE: runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile",
	Long: `Add a profile interactively.

You will be prompted for:
  - API URL
  - Authentication (token, username and password, or none)
  - Gateway URL
  - Whether to set it as default

The API connection is checked before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile details",
	Long: `Show details for a profile.

If no name is provided, shows the default profile.
Secrets are hidden by default; use --show-secrets to reveal them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigureShow,
}

var (
	showSecrets  bool
	assumeYes    bool
	skipConnTest bool
)

const (
	authToken = "API token"
	authBasic = "Username and password"
	authNone  = "None"
)

func init() {
	configureCmd.AddCommand(configureListCmd)
	configureCmd.AddCommand(configureAddCmd)
	configureCmd.AddCommand(configureRemoveCmd)
	configureCmd.AddCommand(configureSetDefaultCmd)
	configureCmd.AddCommand(configureShowCmd)

	configureShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	configureListCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	configureRemoveCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	configureAddCmd.Flags().BoolVar(&skipConnTest, "skip-check", false, "do not check the API connection")
}

func runConfigureList(_ *cobra.Command, _ []string) error {
	cfg, err := clientcli.LoadOrEmpty(getProfilesPath())
	if err != nil {
		return err
	}

	if len(cfg.Profiles) == 0 && !jsonOutput {
		fmt.Println("No profiles configured.")
		fmt.Println("Run 'constellation configure add <name>' to create one.")
		return nil
	}

	return getFormatter().FormatProfileList(os.Stdout, cfg.Profiles, cfg.DefaultName(), showSecrets)
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	profilesPath := getProfilesPath()

	cfg, err := clientcli.LoadOrEmpty(profilesPath)
	if err != nil {
		return err
	}

	existing, _ := cfg.GetProfile(name)
	if existing != nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Profile '%s' already exists. Update it", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	defaults := clientcli.Profile{URL: config.DefaultAPIURL, Gateway: config.DefaultGatewayURL}
	if existing != nil {
		defaults = *existing
	}

	apiURL, err := (&promptui.Prompt{
		Label:    "API URL",
		Default:  defaults.URL,
		Validate: validateHTTPURL,
	}).Run()
	if err != nil {
		return handlePromptError(err)
	}

	profile := clientcli.Profile{Name: name, URL: strings.TrimRight(apiURL, "/")}

	_, authKind, err := (&promptui.Select{
		Label: "Authentication",
		Items: []string{authToken, authBasic, authNone},
	}).Run()
	if err != nil {
		return handlePromptError(err)
	}

	switch authKind {
	case authToken:
		profile.Key, err = (&promptui.Prompt{Label: "API token", Mask: '*'}).Run()
	case authBasic:
		profile.Username, err = (&promptui.Prompt{Label: "Username", Default: defaults.Username}).Run()
		if err == nil {
			profile.Password, err = (&promptui.Prompt{Label: "Password", Mask: '*'}).Run()
		}
	}
	if err != nil {
		return handlePromptError(err)
	}

	gateway, err := (&promptui.Prompt{
		Label:    "Gateway URL",
		Default:  defaults.Gateway,
		Validate: validateHTTPURL,
	}).Run()
	if err != nil {
		return handlePromptError(err)
	}
	profile.Gateway = strings.TrimRight(gateway, "/")

	switch {
	case len(cfg.Profiles) == 0, existing != nil && existing.Default && len(cfg.Profiles) == 1:
		profile.Default = true
	default:
		defaultPrompt := promptui.Prompt{Label: "Set as default profile", IsConfirm: true}
		if _, promptErr := defaultPrompt.Run(); promptErr == nil {
			profile.Default = true
		}
	}

	if !skipConnTest {
		fmt.Print("Testing connection... ")
		if testConnection(cmd.Context(), profile) {
			fmt.Println("OK")
		} else {
			fmt.Println("FAILED")

			continuePrompt := promptui.Prompt{Label: "Save profile anyway", IsConfirm: true}
			if _, promptErr := continuePrompt.Run(); promptErr != nil {
				fmt.Println("Cancelled.")
				return nil //nolint:nilerr // User cancelled, not an error
			}
		}
	}

	if existing != nil {
		err = cfg.UpdateProfile(profile)
	} else {
		err = cfg.AddProfile(profile)
	}
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	if err := cfg.Save(profilesPath); err != nil {
		return err
	}

	if existing != nil {
		fmt.Printf("Profile '%s' updated.\n", name)
	} else {
		fmt.Printf("Profile '%s' added.\n", name)
	}
	if profile.Default {
		fmt.Println("Set as default profile.")
	}

	return nil
}

func runConfigureRemove(_ *cobra.Command, args []string) error {
	name := args[0]
	profilesPath := getProfilesPath()

	cfg, err := clientcli.LoadConfigFile(profilesPath)
	if err != nil {
		return err
	}

	if _, err = cfg.GetProfile(name); err != nil {
		return err
	}

	if !assumeYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Remove profile '%s'", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	if err := cfg.RemoveProfile(name); err != nil {
		return err
	}

	if err := cfg.Save(profilesPath); err != nil {
		return err
	}

	fmt.Printf("Profile '%s' removed.\n", name)
	return nil
}

func runConfigureSetDefault(_ *cobra.Command, args []string) error {
	name := args[0]
	profilesPath := getProfilesPath()

	cfg, err := clientcli.LoadConfigFile(profilesPath)
	if err != nil {
		return err
	}

	if err := cfg.SetDefault(name); err != nil {
		return err
	}

	if err := cfg.Save(profilesPath); err != nil {
		return err
	}

	fmt.Printf("Default profile set to '%s'.\n", name)
	return nil
}

func runConfigureShow(_ *cobra.Command, args []string) error {
	cfg, err := clientcli.LoadConfigFile(getProfilesPath())
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	p, err := cfg.GetProfile(name)
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileShow(os.Stdout, *p, p.Name == cfg.DefaultName(), showSecrets)
}

// testConnection probes the cluster described by p.
func testConnection(ctx context.Context, p clientcli.Profile) bool {
	uploader, err := constellation.NewUploader(p.URL, transport.New(transport.ResolveAuth(p.Key, p.Username, p.Password)))
	if err != nil {
		return false
	}
	return uploader.CheckConnection(ctx)
}

func validateHTTPURL(input string) error {
	if input == "" {
		return errors.New("URL is required")
	}
	parsed, err := url.Parse(input)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	if parsed.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
