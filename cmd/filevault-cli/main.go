package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault/clientcli"
)

var (
	version = "dev"

	cfgFile     string
	profileName string
	server      string
	apiKey      string
	jsonOutput  bool
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:     "filevault-cli",
	Version: version,
	Short:   "Client for the filevault file hosting API",
	Long: `filevault-cli talks to a filevault server.

Create an account with 'register', obtain a 24 hour API key with 'login',
then upload, list, download and delete your files. Connection settings are
read from the active profile in ~/.filevault/config.yaml, then from
FILEVAULT_SERVER and FILEVAULT_API_KEY, then from flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.filevault/config.yaml, env: FILEVAULT_CONFIG)")
	flags.StringVarP(&profileName, "profile", "p", "", "profile name (env: FILEVAULT_PROFILE)")
	flags.StringVarP(&server, "server", "s", "", "server URL (default: http://localhost:5173, env: FILEVAULT_SERVER)")
	flags.StringVarP(&apiKey, "api-key", "k", "", "API key (env: FILEVAULT_API_KEY)")
	flags.BoolVar(&jsonOutput, "json", false, "output as JSON")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if !errors.As(err, &exitErr) {
			_ = getFormatter().FormatError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// exitError is returned when we want to exit with a specific code
// but don't want an error message printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// getConfigPath returns the config file path: flag, then env, then default.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := clientcli.ConfigPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultConfigPath()
}

// getProfileName returns the requested profile: flag, then env. Empty means default.
func getProfileName() string {
	if profileName != "" {
		return profileName
	}
	return clientcli.ProfileFromEnv()
}

// loadConfigFile loads the profiles file. A missing file yields an empty
// config so that 'login --save' can create it.
func loadConfigFile() (*clientcli.ConfigFile, error) {
	cfg, err := clientcli.LoadConfigFile(getConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &clientcli.ConfigFile{}, nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildConfig merges config from profile, env vars, and flags (flags take precedence).
func buildConfig() (*clientcli.Config, error) {
	var configs []*clientcli.Config

	file, err := loadConfigFile()
	if err != nil {
		return nil, err
	}
	if len(file.Profiles) > 0 {
		p, err := file.GetProfile(getProfileName())
		if err != nil {
			return nil, err
		}
		configs = append(configs, clientcli.ConfigFromProfile(p))
	} else if name := getProfileName(); name != "" {
		return nil, fmt.Errorf("%w: %s", clientcli.ErrProfileNotFound, name)
	}

	configs = append(configs,
		clientcli.ConfigFromEnv(),
		&clientcli.Config{Endpoint: server, APIKey: apiKey},
	)

	return clientcli.MergeConfig(configs...), nil
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

// getClient creates and returns a configured client.
func getClient() (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	return clientcli.New(cfg)
}

// readPassword takes the first line of r when fromStdin is set, otherwise
// prompts with a masked input.
func readPassword(r io.Reader, fromStdin bool, label string) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("read password: stdin was empty")
		}
		return password, nil
	}

	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if input == "" {
				return errors.New("password is required")
			}
			return nil
		},
	}
	password, err := prompt.Run()
	if err != nil {
		return "", handlePromptError(err)
	}
	return password, nil
}

// errCancelled is returned when the user aborts a prompt.
var errCancelled = &exitError{code: 1}

// handlePromptError maps promptui interrupts to a silent cancellation.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrEOF) {
		_, _ = fmt.Fprintln(os.Stderr, "Cancelled.")
		return errCancelled
	}
	return err
}
