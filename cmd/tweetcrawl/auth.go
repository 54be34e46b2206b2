package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"tweetcrawl/pkg/auth"
	"tweetcrawl/pkg/browser"
	"tweetcrawl/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored auth tokens",
	Long: `Manage auth tokens used to sign the crawler's browser in.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - TWEETCRAWL_AUTH_TOKEN (read only)

Never share your token or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store an auth token",
	Long: `Store the value of your auth_token cookie under an account name.

Without a name the token is stored as the default account, which crawl uses
when no --account is given.`,
	Example: `  # Interactive login
  tweetcrawl auth login

  # Keep a second account
  tweetcrawl auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [account]",
	Short: "Remove a stored auth token",
	Example: `  tweetcrawl auth logout
  tweetcrawl auth logout work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with masked tokens",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultAccount
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	auth.WriteTokenGuide(os.Stdout)
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Account '%s' already has a token. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	var token string
	for {
		fmt.Print("auth_token cookie value (hidden): ")
		token, err = readPassword(reader)
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		if err := browser.ValidateToken(token); err == nil {
			break
		}
		fmt.Println("That doesn't look like a token.")
		fmt.Print("Try again? (Y/n): ")
		again, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(again)) == "n" {
			return errors.New("no token entered")
		}
	}

	if err := manager.Store(&auth.Account{Name: name, AuthToken: token}); err != nil {
		return err
	}

	printer := ui.NewPrinter(nil)
	printer.Success(fmt.Sprintf("Token saved for account '%s' (%s)", name, auth.MaskToken(token)))
	if name != auth.DefaultAccount {
		printer.Info("Use it with", "tweetcrawl crawl <profile-url> --account "+name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultAccount
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	if err := manager.Delete(name); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			ui.NewPrinter(nil).Warning(fmt.Sprintf("No stored token for account '%s'", name))
			return nil
		}
		return err
	}
	ui.NewPrinter(nil).Success("Token removed for account " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	printer := ui.NewPrinter(nil)
	if len(accounts) == 0 {
		printer.Warning("No stored accounts. Run 'tweetcrawl auth login' to add one.")
		return nil
	}

	for i, account := range accounts {
		safe := auth.SanitizeAccount(account)
		label := safe.Name
		if i == 0 {
			label += " *"
		}
		updated := "unknown"
		if !safe.LastModified.IsZero() {
			updated = safe.LastModified.Format("2006-01-02 15:04")
		}
		printer.Info(label, fmt.Sprintf("%s  %s", safe.AuthToken, ui.Dim("updated "+updated)))
	}
	fmt.Println(ui.Dim("* used when no default account exists"))
	return nil
}

// readPassword reads a line without echo when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	password, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(password)), nil
}
