package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unisrv/unisrv-cli/internal/api"
	"github.com/unisrv/unisrv-cli/internal/output"
	"github.com/unisrv/unisrv-cli/internal/resolve"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage claimed hostnames",
}

var hostListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List claimed hosts",
	RunE:    runHostList,
}

var hostClaimCmd = &cobra.Command{
	Use:   "claim <domain>",
	Short: "Claim a domain for use by services",
	Args:  cobra.ExactArgs(1),
	RunE:  runHostClaim,
}

var hostDeleteCmd = &cobra.Command{
	Use:   "delete <id|domain|prefix>",
	Short: "Unclaim a host",
	Args:  cobra.ExactArgs(1),
	RunE:  runHostDelete,
}

var hostCertCmd = &cobra.Command{
	Use:   "cert <id|domain|prefix>",
	Short: "Request a TLS certificate for a host",
	Args:  cobra.ExactArgs(1),
	RunE:  runHostCert,
}

func init() {
	rootCmd.AddCommand(hostCmd)
	hostCmd.AddCommand(hostListCmd)
	hostCmd.AddCommand(hostClaimCmd)
	hostCmd.AddCommand(hostDeleteCmd)
	hostCmd.AddCommand(hostCertCmd)
}

func resolveHost(cmd *cobra.Command, client *api.Client, input string) (uuid.UUID, error) {
	hosts, err := client.ListHosts(cmd.Context())
	if err != nil {
		return uuid.Nil, err
	}
	return resolve.ID(resolve.KindHost, input, hosts)
}

func runHostList(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	hosts, err := client.ListHosts(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(hosts))
	for _, host := range hosts {
		service := "-"
		if host.ServiceID != nil {
			service = output.ShortID(*host.ServiceID)
		}
		cert := output.Dash(host.CertificateType)
		if host.CertificateValidUntil != nil {
			cert = fmt.Sprintf("%s (until %s)", cert, host.CertificateValidUntil.Format("2006-01-02"))
		}
		rows = append(rows, []string{
			output.ShortID(host.ID),
			host.Host,
			service,
			cert,
			output.Age(host.CreatedAt),
		})
	}
	fmt.Println(output.Table([]string{"ID", "HOST", "SERVICE", "CERT", "AGE"}, rows))
	return nil
}

func runHostClaim(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	host, err := client.ClaimHost(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Claimed host %s (%s)\n", host.Host, output.ShortID(host.ID))
	return nil
}

func runHostDelete(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	id, err := resolveHost(cmd, client, args[0])
	if err != nil {
		return err
	}
	if err := client.DeleteHost(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted host %s\n", output.ShortID(id))
	return nil
}

func runHostCert(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	id, err := resolveHost(cmd, client, args[0])
	if err != nil {
		return err
	}
	if err := client.RequestCert(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Certificate requested for host %s\n", output.ShortID(id))
	return nil
}
