package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"isg-light-terminal/pkg/isg"
)

var controllerConfig isg.Config

// SetControllerConfig sets the controller configuration instance.
func SetControllerConfig(cfg isg.Config) {
	controllerConfig = cfg
}

// NewAuthCmd creates the auth command
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Verify controller authentication",
		Long: `Commands to verify that the controller accepts the configured
credentials and serves a session token.

Nothing is persisted: every invocation performs a fresh login.`,
	}

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newTestCmd())

	return cmd
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and report the session token",
		Long: `Sign in to the controller and scrape the session token from the
configuration page. Prompts for the password when it is not supplied by
flag or environment.`,
		RunE: runLogin,
	}
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test that a fresh session is accepted",
		Long:  "Sign in and verify that the controller keeps serving the session token.",
		RunE:  runTest,
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.Login(context.Background()); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("✓ Signed in to %s\n", controllerConfig.Hostname)
	fmt.Printf("Session token: %s\n", maskToken(client.Token()))
	return nil
}

func runTest(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := client.Login(ctx); err != nil {
		fmt.Printf("✗ Login rejected: %v\n", err)
		return errors.New("authentication failed")
	}

	if err := client.CheckSession(ctx); err != nil {
		fmt.Printf("✗ Session not accepted: %v\n", err)
		return errors.New("session check failed")
	}

	fmt.Printf("✓ Session is valid on %s\n", controllerConfig.Hostname)
	return nil
}

func newClient() (*isg.Client, error) {
	cfg := controllerConfig

	if cfg.Password == "" {
		password, err := promptPassword(cfg.Username)
		if err != nil {
			return nil, err
		}
		cfg.Password = password
	}

	return isg.NewClient(cfg)
}

func promptPassword(username string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("password not set and stdin is not a terminal")
	}

	fmt.Printf("Password for %s: ", username)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return strings.TrimSpace(string(password)), nil
}

// maskToken keeps enough of the token to recognize it in controller logs
// without printing the whole credential.
func maskToken(token string) string {
	if len(token) <= 4 {
		return token
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
