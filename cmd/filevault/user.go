package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault"
	"github.com/math-dev-24/filevault/config"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add --email <email> --name <name>",
	Short: "Register a user",
	Long: `Register a user directly against the database.

The password is prompted for twice unless --password-stdin is given, in
which case the first line of standard input is used.

Examples:
  filevault user add --email ada@example.com --name Ada
  echo "$PASSWORD" | filevault user add --email ada@example.com --name Ada --password-stdin`,
	Args: cobra.NoArgs,
	RunE: runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users with their live key and file counts",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

var (
	userEmail         string
	userName          string
	userPasswordStdin bool
)

func init() {
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "account email")
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().BoolVar(&userPasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = userAddCmd.MarkFlagRequired("email")
	_ = userAddCmd.MarkFlagRequired("name")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	var password string
	if userPasswordStdin {
		password, err = readPasswordLine(cmd.InOrStdin())
	} else {
		password, err = promptPassword()
	}
	if err != nil {
		return err
	}

	b, err := openBackend(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	user, err := b.service.Register(cmd.Context(), filevault.Registration{
		Email:    userEmail,
		Name:     userName,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	fmt.Fprintf(cmd.OutOrStdout(), "Registered user %d (%s)\n", user.ID, user.Email)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	b, err := openBackend(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	users, err := b.service.ListUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tEMAIL\tNAME\tLIVE KEYS\tFILES\tCREATED")
	for _, u := range users {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
			u.ID, u.Email, u.Name, u.LiveKeys, u.Files, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func promptPassword() (string, error) {
	first := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < 8 {
				return errors.New("password must be at least 8 characters")
			}
			return nil
		},
	}
	password, err := first.Run()
	if err != nil {
		return "", fmt.Errorf("password prompt: %w", err)
	}

	confirm := promptui.Prompt{
		Label: "Confirm password",
		Mask:  '*',
		Validate: func(input string) error {
			if input != password {
				return errors.New("passwords do not match")
			}
			return nil
		},
	}
	if _, err := confirm.Run(); err != nil {
		return "", fmt.Errorf("password prompt: %w", err)
	}

	return password, nil
}

func readPasswordLine(r io.Reader) (string, error) {
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
