package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unisrv/unisrv-cli/internal/output"
)

// authCmd groups session management subcommands.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect and manage the stored session",
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is logged in",
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	RunE:  runAuthLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}

	session := client.Session()
	if session == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Printf("API host:      %s\n", cfg.APIHost)
	fmt.Printf("User id:       %s\n", session.UserID)
	fmt.Printf("Token expires: %s\n", output.Age(session.AccessTokenExpiry))
	if session.Expired() {
		fmt.Println("Session:       expired, login again")
	} else {
		fmt.Println("Session:       valid")
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	if client.Session() == nil {
		fmt.Println("Not logged in.")
		return nil
	}
	if err := client.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}
