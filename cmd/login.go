package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginUsername string
	loginPassword string
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with a user account",
		Long: `Authenticates against the unisrv control plane and stores the
session in the system keyring. When --password is omitted the
password is prompted without echo.`,
		RunE: runLogin,
	}
	cmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username to login with")
	cmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prefer the interactive prompt)")
	cmd.MarkFlagRequired("username")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		fmt.Fprint(os.Stderr, "Enter password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	client, _, err := newClient()
	if err != nil {
		return err
	}
	if err := client.Login(cmd.Context(), loginUsername, password); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Successfully logged in as user: %s\n", loginUsername)
	return nil
}

func init() {
	rootCmd.AddCommand(newLoginCmd())
}
