package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unisrv/unisrv-cli/internal/api"
	"github.com/unisrv/unisrv-cli/internal/output"
	"github.com/unisrv/unisrv-cli/internal/resolve"
)

var networkCmd = &cobra.Command{
	Use:     "network",
	Aliases: []string{"net"},
	Short:   "Manage internal networks",
}

var networkListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List networks",
	RunE:    runNetworkList,
}

var networkShowCmd = &cobra.Command{
	Use:   "show <id|name|prefix>",
	Short: "Show a network and its attached instances",
	Args:  cobra.ExactArgs(1),
	RunE:  runNetworkShow,
}

var networkNewCmd = &cobra.Command{
	Use:   "new <name> [ipv4-cidr]",
	Short: "Create a network (default CIDR 10.0.0.0/8)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runNetworkNew,
}

var networkDeleteCmd = &cobra.Command{
	Use:   "delete <id|name|prefix>",
	Short: "Delete a network",
	Args:  cobra.ExactArgs(1),
	RunE:  runNetworkDelete,
}

func init() {
	rootCmd.AddCommand(networkCmd)
	networkCmd.AddCommand(networkListCmd)
	networkCmd.AddCommand(networkShowCmd)
	networkCmd.AddCommand(networkNewCmd)
	networkCmd.AddCommand(networkDeleteCmd)
}

func resolveNetwork(cmd *cobra.Command, client *api.Client, input string) (uuid.UUID, error) {
	networks, err := client.ListNetworks(cmd.Context(), false)
	if err != nil {
		return uuid.Nil, err
	}
	return resolve.ID(resolve.KindNetwork, input, networks)
}

func runNetworkList(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	networks, err := client.ListNetworks(cmd.Context(), true)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(networks))
	for _, network := range networks {
		instances := "-"
		if network.InstanceCount != nil {
			instances = fmt.Sprintf("%d", *network.InstanceCount)
		}
		rows = append(rows, []string{
			output.ShortID(network.ID),
			network.Name,
			network.IPv4CIDR,
			instances,
		})
	}
	fmt.Println(output.Table([]string{"ID", "NAME", "CIDR", "INSTANCES"}, rows))
	return nil
}

func runNetworkShow(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	id, err := resolveNetwork(cmd, client, args[0])
	if err != nil {
		return err
	}
	detail, err := client.GetNetwork(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", detail.ID)
	fmt.Printf("Name:     %s\n", detail.Name)
	fmt.Printf("CIDR:     %s\n", detail.IPv4CIDR)
	fmt.Printf("Created:  %s\n", output.Age(detail.CreatedAt))

	if len(detail.Instances) > 0 {
		rows := make([][]string, 0, len(detail.Instances))
		for _, inst := range detail.Instances {
			rows = append(rows, []string{output.ShortID(inst.ID), inst.InternalIP})
		}
		fmt.Println()
		fmt.Println(output.Table([]string{"INSTANCE", "IP"}, rows))
	}
	return nil
}

func runNetworkNew(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	cidr := "10.0.0.0/8"
	if len(args) > 1 {
		cidr = args[1]
	}
	network, err := client.CreateNetwork(cmd.Context(), args[0], cidr)
	if err != nil {
		return err
	}
	fmt.Printf("Created network %s (%s, %s)\n", output.ShortID(network.ID), network.Name, network.IPv4CIDR)
	return nil
}

func runNetworkDelete(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	id, err := resolveNetwork(cmd, client, args[0])
	if err != nil {
		return err
	}
	if err := client.DeleteNetwork(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted network %s\n", output.ShortID(id))
	return nil
}
