package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault/clientcli"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage saved servers and their API keys",
	Long: `Each profile in ~/.filevault/config.yaml names one filevault server,
the user id last used to log in there and the API key that login saved,
with its expiry. Pick a profile with --profile or FILEVAULT_PROFILE.

A saved key past its expiry is refused locally; run 'login --save' again.`,
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles and when their keys expire",
	Long:  "List profiles. '*' marks the default one. Keys are masked unless --show-secrets is set.",
	Args:  cobra.NoArgs,
	RunE:  runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Save a server endpoint",
	Long: `Add or update a profile interactively.

You are prompted for the endpoint URL and whether the profile becomes the
default. The endpoint's /healthz is checked before saving. Keys are not
entered here: run 'filevault-cli login --save' afterwards. Pointing an
existing profile at a new endpoint drops its saved key.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a profile and its saved key",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureLogoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Forget a profile's saved API key",
	Long: `Forget the API key saved in a profile, keeping its endpoint and user id
so 'filevault-cli login --save' can issue a new one. The key itself stays
valid on the server until it expires.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigureLogout,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Use a profile when --profile is not given",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one profile, the default when no name is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigureShow,
}

var (
	showSecrets bool
	removeYes   bool
)

func init() {
	configureCmd.AddCommand(
		configureListCmd,
		configureAddCmd,
		configureRemoveCmd,
		configureLogoutCmd,
		configureSetDefaultCmd,
		configureShowCmd,
	)

	configureShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show API keys")
	configureListCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show API keys")
	configureRemoveCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "do not ask for confirmation")
}

func runConfigureList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigFile()
	if err != nil {
		return err
	}

	if len(cfg.Profiles) == 0 {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, "No profiles configured.")
		_, _ = fmt.Fprintln(out, "Run 'filevault-cli configure add <name>' to create one.")
		return nil
	}

	def, err := cfg.GetDefaultProfile()
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileList(cmd.OutOrStdout(), cfg.Profiles, def.Name, showSecrets)
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	out := cmd.OutOrStdout()

	cfg, err := loadConfigFile()
	if err != nil {
		return err
	}

	profile := clientcli.Profile{Name: name, Endpoint: clientcli.DefaultEndpoint}
	existing, _ := cfg.GetProfile(name)
	if existing != nil {
		if !confirm(fmt.Sprintf("Profile '%s' already exists. Update it", name)) {
			_, _ = fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		profile = *existing
	}

	endpointURL, err := (&promptui.Prompt{
		Label:    "Endpoint URL",
		Default:  profile.Endpoint,
		Validate: validateEndpoint,
	}).Run()
	if err != nil {
		return handlePromptError(err)
	}
	endpointURL = strings.TrimSuffix(endpointURL, "/")

	makeDefault := len(cfg.Profiles) == 0 || profile.Default
	if !makeDefault {
		makeDefault = confirm("Set as default profile")
	}

	_, _ = fmt.Fprint(out, "Testing connection... ")
	if connErr := testServerConnection(cmd.Context(), endpointURL); connErr != nil {
		_, _ = fmt.Fprintf(out, "FAILED\nWarning: %v\n", connErr)
		if !confirm("Save profile anyway") {
			_, _ = fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	} else {
		_, _ = fmt.Fprintln(out, "OK")
	}

	if existing != nil && endpointURL != existing.Endpoint && existing.APIKey != "" {
		profile.ForgetKey()
		_, _ = fmt.Fprintln(out, "Endpoint changed, saved API key dropped.")
	}
	profile.Endpoint = endpointURL
	cfg.PutProfile(profile)
	if makeDefault {
		if err := cfg.SetDefault(name); err != nil {
			return err
		}
	}

	if err := saveConfigFile(cfg); err != nil {
		return err
	}

	verb := "added"
	if existing != nil {
		verb = "updated"
	}
	_, _ = fmt.Fprintf(out, "Profile '%s' %s.\n", name, verb)
	if makeDefault {
		_, _ = fmt.Fprintln(out, "Set as default profile.")
	}
	if profile.APIKey == "" {
		_, _ = fmt.Fprintf(out, "Run 'filevault-cli login --profile %s --save' to store an API key.\n", name)
	}
	return nil
}

func runConfigureRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := loadConfigFile()
	if err != nil {
		return err
	}

	p, err := cfg.GetProfile(name)
	if err != nil {
		return err
	}
	label := fmt.Sprintf("Remove profile '%s'", name)
	if p.APIKey != "" {
		label += " and its saved API key"
	}
	if !removeYes && !confirm(label) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}

	if err := cfg.RemoveProfile(name); err != nil {
		return err
	}
	if err := saveConfigFile(cfg); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' removed.\n", name)
	return nil
}

func runConfigureLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFile()
	if err != nil {
		return err
	}

	name := getProfileName()
	if len(args) > 0 {
		name = args[0]
	}
	p, err := cfg.GetProfile(name)
	if err != nil {
		return err
	}
	if p.APIKey == "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' has no saved API key.\n", p.Name)
		return nil
	}

	p.ForgetKey()
	if err := saveConfigFile(cfg); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Forgot the API key saved in profile '%s'.\n", p.Name)
	return nil
}

func runConfigureSetDefault(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := loadConfigFile()
	if err != nil {
		return err
	}

	if err := cfg.SetDefault(name); err != nil {
		return err
	}

	if err := saveConfigFile(cfg); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Default profile set to '%s'.\n", name)
	return nil
}

func runConfigureShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFile()
	if err != nil {
		return err
	}

	name := getProfileName()
	if len(args) > 0 {
		name = args[0]
	}
	p, err := cfg.GetProfile(name)
	if err != nil {
		return err
	}

	def, _ := cfg.GetDefaultProfile()
	isDefault := def != nil && def.Name == p.Name

	return getFormatter().FormatProfileShow(cmd.OutOrStdout(), *p, isDefault, showSecrets)
}

// confirm asks a yes/no question; anything but yes, including an interrupt,
// counts as no.
func confirm(label string) bool {
	_, err := (&promptui.Prompt{Label: label, IsConfirm: true}).Run()
	return err == nil
}

func validateEndpoint(input string) error {
	if input == "" {
		return errors.New("endpoint URL is required")
	}
	parsedURL, err := url.Parse(input)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	return nil
}

// testServerConnection checks the server's health endpoint.
func testServerConnection(ctx context.Context, endpointURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	target := strings.TrimSuffix(endpointURL, "/") + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: %s", resp.Status)
	}
	return nil
}
