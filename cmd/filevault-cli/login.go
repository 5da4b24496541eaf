package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault/clientcli"
)

var (
	loginUserID        int64
	loginPasswordStdin bool
	loginSave          bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain a new API key",
	Long: `Exchange a user id and password for an API key valid for 24 hours.

With --save the key is stored in the active profile, so later commands
pick it up without --api-key. A "default" profile is created if the
config file has none.

Examples:
  filevault-cli login --user-id 3
  filevault-cli login --user-id 3 --save
  echo "$PASSWORD" | filevault-cli login --user-id 3 --password-stdin -q`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().Int64Var(&loginUserID, "user-id", 0, "numeric user id (default: the profile's user id)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	loginCmd.Flags().BoolVar(&loginSave, "save", false, "store the key in the active profile")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	file, err := loadConfigFile()
	if err != nil {
		return err
	}

	userID := loginUserID
	if userID == 0 && len(file.Profiles) > 0 {
		if p, err := file.GetProfile(getProfileName()); err == nil {
			userID = p.UserID
		}
	}
	if userID <= 0 {
		return errors.New("--user-id is required")
	}

	password, err := readPassword(cmd.InOrStdin(), loginPasswordStdin, "Password")
	if err != nil {
		return err
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	client, err := clientcli.New(cfg)
	if err != nil {
		return err
	}

	key, err := client.IssueKey(cmd.Context(), userID, password)
	if err != nil {
		return err
	}

	if loginSave {
		if err := saveKey(file, cfg.WithDefaults().Endpoint, userID, key); err != nil {
			return err
		}
		if !quiet && !jsonOutput {
			_, _ = fmt.Fprintf(os.Stderr, "Saved API key to %s (expires %s)\n",
				getConfigPath(), key.ExpiresAt.Local().Format(time.DateTime))
		}
	}

	return getFormatter().FormatKey(cmd.OutOrStdout(), key)
}

// saveKey stores the key and its expiry in the active profile. With no
// profiles yet, one pointing at endpoint is created as the default.
func saveKey(file *clientcli.ConfigFile, endpoint string, userID int64, key *clientcli.IssuedKey) error {
	var p clientcli.Profile
	if len(file.Profiles) == 0 {
		p = clientcli.Profile{Name: getProfileName(), Endpoint: endpoint}
		if p.Name == "" {
			p.Name = "default"
		}
	} else {
		current, err := file.GetProfile(getProfileName())
		if err != nil {
			return err
		}
		p = *current
	}
	p.StoreKey(userID, key)
	file.PutProfile(p)

	return saveConfigFile(file)
}

func saveConfigFile(file *clientcli.ConfigFile) error {
	if err := file.Save(getConfigPath()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
