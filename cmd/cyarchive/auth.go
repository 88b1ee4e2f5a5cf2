package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"cyarchive/pkg/auth"
	"cyarchive/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Cyworld credentials",
	Long: `Manage stored Cyworld logins.

Credentials are looked up in the environment first (CYWORLD_EMAIL and
CYWORLD_PASSWORD), then in the system keychain, then in an encrypted file in
the cyarchive config directory.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Store an email and password",
	Example: `  # Interactive login
  cyarchive auth login

  # Store under a short name
  cyarchive auth login me@example.com --name main`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <name>",
	Short: "Remove a stored account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		if err := manager.Delete(args[0]); err != nil {
			return err
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}

		accounts, err := manager.List()
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		if len(accounts) == 0 {
			ui.PrintInfo("No stored accounts", "Use 'cyarchive auth login' to add one")
			return nil
		}

		out := ui.Output()
		for i, account := range accounts {
			sanitized := auth.SanitizeAccount(account)
			fmt.Fprintf(out, "%d. %s\n", i+1, ui.Cyan(sanitized.Username))
			fmt.Fprintf(out, "   Email: %s\n", sanitized.Email)
			fmt.Fprintf(out, "   Password: %s\n", sanitized.Password)
			fmt.Fprintf(out, "   Last Modified: %s\n\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var accountLabel string

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)

	loginCmd.Flags().StringVar(&accountLabel, "name", "", "name to store the account under (default: the email)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var email string
	if len(args) > 0 {
		email = strings.TrimSpace(args[0])
	} else {
		fmt.Print("📧 Cyworld email: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(input)
	}
	if email == "" {
		return errors.New("email is required")
	}

	name := accountLabel
	if name == "" {
		name = email
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("⚠️  Account '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("🔐 Password (hidden): ")
	password, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return errors.New("password is required")
	}

	account := &auth.Account{Username: name, Email: email, Password: password}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess("Account saved: " + name)
	fmt.Fprintln(ui.Output(), "\nStart archiving with:")
	fmt.Fprintf(ui.Output(), "  $ cyarchive run --account %s\n", name)
	return nil
}

// readPassword reads without echo when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
