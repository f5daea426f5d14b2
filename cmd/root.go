package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unisrv/unisrv-cli/internal/api"
	"github.com/unisrv/unisrv-cli/internal/config"
	"github.com/unisrv/unisrv-cli/internal/logging"
	"github.com/unisrv/unisrv-cli/internal/registry"
)

var logLevelFlag string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "unisrv",
	Short: "Manage microVM instances, services and rollouts",
	Long: `unisrv manages container workloads on the unisrv cloud: it runs
container images as microVM instances, wires them into HTTP services
via routing targets, and performs rolling deployments of the
instances behind a service target group.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid arguments, failed API calls)
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevelFlag
		if !cmd.Flags().Changed("log-level") {
			if cfg, err := config.Load(); err == nil && cfg.LogLevel != "" {
				level = cfg.LogLevel
			}
		}
		logging.Init(logging.ParseLevel(level), os.Stderr)
		return nil
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "unisrv version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

// newClient builds an API client from the on-disk config and the stored
// session, if any.
func newClient() (*api.Client, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	session, err := api.LoadSession()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to load stored session: %w", err)
	}
	return api.New(cfg, session), cfg, nil
}

// newAuthedClient is newClient plus a login check.
func newAuthedClient() (*api.Client, config.Config, error) {
	client, cfg, err := newClient()
	if err != nil {
		return nil, config.Config{}, err
	}
	if err := client.EnsureAuth(); err != nil {
		return nil, config.Config{}, err
	}
	return client, cfg, nil
}

// newRegistryClient builds a registry client that pulls credentials from the
// client's stored session.
func newRegistryClient(client *api.Client) *registry.Client {
	return registry.NewClient(func(host string) (string, string, bool) {
		session := client.Session()
		if session == nil {
			return "", "", false
		}
		cred, ok := session.RegistryCredential(host)
		if !ok {
			return "", "", false
		}
		return cred.Username, cred.Password, true
	})
}
