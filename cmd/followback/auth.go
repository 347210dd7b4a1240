package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"followback/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage GitHub credentials",
	Long: `Manage stored GitHub credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (backward compatibility)

The token needs the user:follow scope.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store GitHub credentials securely",
	Long: `Store a GitHub personal access token securely in the system keychain
or an encrypted file.

You will be prompted for:
  - GitHub username (if not provided)
  - Personal access token (with the user:follow scope)`,
	Example: `  # Interactive login
  followback auth login

  # Login with username
  followback auth login myusername`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	Run:   runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored GitHub accounts with the token masked.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fail("failed to initialize credential manager", err)
	}

	var user string
	if len(args) > 0 {
		user = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if user == "" {
		fmt.Print("GitHub username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fail("failed to read username", err)
		}
		user = strings.TrimSpace(input)
	}

	if user == "" {
		fail("username is required", nil)
	}

	if existing, _ := manager.Retrieve(user); existing != nil {
		fmt.Printf("Account %q already exists. Update credentials? (y/N): ", user)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("Personal access token (input hidden): ")
	tok, err := readPassword()
	if err != nil {
		fail("failed to read token", err)
	}
	fmt.Println()

	if tok == "" {
		fail("token is required", nil)
	}

	account := &auth.Account{
		Username: user,
		Token:    tok,
	}
	if err := manager.Store(account); err != nil {
		fail("failed to store credentials", err)
	}

	fmt.Printf("Credentials stored for %s\n", user)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fail("failed to initialize credential manager", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		fail("failed to remove credentials", err)
	}

	fmt.Printf("Credentials removed for %s\n", args[0])
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fail("failed to initialize credential manager", err)
	}

	accounts, err := manager.List()
	if err != nil {
		fail("failed to list accounts", err)
	}

	if len(accounts) == 0 {
		fmt.Println("No stored accounts. Run 'followback auth login' to add one.")
		return
	}

	for _, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%s\ttoken: %s\tmodified: %s\n",
			sanitized.Username, sanitized.Token, sanitized.LastModified.Format("2006-01-02 15:04"))
	}
}

// readPassword reads a line without echoing it
func readPassword() (string, error) {
	data, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
