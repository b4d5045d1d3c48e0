package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loginCmd stores a GitHub token for later runs.
func loginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a GitHub access token",
		Long:  "Verify a GitHub personal access token and save it, which raises the API rate limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				t, err := promptForPassword("GitHub token: ")
				if err != nil {
					return err
				}
				token = t
			}

			s, err := loadSettings()
			if err != nil {
				return err
			}
			c, err := newClient(s)
			if err != nil {
				return err
			}
			svc, err := authService(c)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			record, err := svc.Login(ctx, token)
			if err != nil {
				return err
			}
			cmd.Printf("Login was successful. API limit: %s requests per hour.\n", humanize.Comma(int64(record.RateLimit)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "Token to save instead of prompting for it")
	return cmd
}

// logoutCmd forgets the stored token.
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved GitHub token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			c, err := newClient(s)
			if err != nil {
				return err
			}
			svc, err := authService(c)
			if err != nil {
				return err
			}
			if err := svc.Logout(); err != nil {
				return err
			}
			cmd.Println("Saved token removed.")
			return nil
		},
	}
}

// promptForPassword reads a secret from the terminal without echoing it.
func promptForPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
