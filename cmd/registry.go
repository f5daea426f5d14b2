package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unisrv/unisrv-cli/internal/api"
	"github.com/unisrv/unisrv-cli/internal/output"
)

var (
	registryLoginUsername      string
	registryLoginPassword      string
	registryLoginPasswordStdin bool
)

var registryCmd = &cobra.Command{
	Use:     "registry",
	Aliases: []string{"reg"},
	Short:   "Manage container registry credentials",
}

var registryLoginCmd = &cobra.Command{
	Use:   "login <registry>",
	Short: "Login to a container registry",
	Long: `Authenticates against a container registry (e.g. ghcr.io) and stores
the credentials in the session, so instances can pull private images.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegistryLogin,
}

var registryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configured container registries",
	RunE:    runRegistryList,
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryLoginCmd)
	registryCmd.AddCommand(registryListCmd)

	registryLoginCmd.Flags().StringVarP(&registryLoginUsername, "username", "u", "", "Username for registry authentication")
	registryLoginCmd.Flags().StringVarP(&registryLoginPassword, "password", "p", "", "Password (prefer --password-stdin)")
	registryLoginCmd.Flags().BoolVar(&registryLoginPasswordStdin, "password-stdin", false, "Read the password from stdin")
	registryLoginCmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
}

func runRegistryLogin(cmd *cobra.Command, args []string) error {
	host := args[0]

	password := registryLoginPassword
	if registryLoginPasswordStdin {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read password from stdin: %w", err)
		}
		password = strings.TrimSpace(string(raw))
	}

	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}

	grant, err := newRegistryClient(client).Login(cmd.Context(), host, registryLoginUsername, password)
	if err != nil {
		return err
	}

	if grant.Bearer() == "" {
		fmt.Printf("Registry %s allows anonymous access, nothing to store.\n", host)
		return nil
	}

	cred := api.RegistryCredential{
		Username: registryLoginUsername,
		Password: password,
		Token:    grant.Bearer(),
	}
	if grant.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
		cred.TokenExpiry = &expiry
	}
	if err := client.Session().SetRegistryCredential(host, cred); err != nil {
		return fmt.Errorf("failed to save registry credentials: %w", err)
	}

	fmt.Printf("Logged in to registry %s as %s\n", host, registryLoginUsername)
	return nil
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}

	auth := client.Session().RegistryAuth
	hosts := make([]string, 0, len(auth))
	for host := range auth {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	rows := make([][]string, 0, len(hosts))
	for _, host := range hosts {
		cred := auth[host]
		expiry := "-"
		if cred.TokenExpiry != nil {
			expiry = output.Age(*cred.TokenExpiry)
		}
		rows = append(rows, []string{host, output.Dash(cred.Username), expiry})
	}
	fmt.Println(output.Table([]string{"REGISTRY", "USERNAME", "TOKEN EXPIRY"}, rows))
	return nil
}
