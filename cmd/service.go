package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unisrv/unisrv-cli/internal/api"
	"github.com/unisrv/unisrv-cli/internal/output"
	"github.com/unisrv/unisrv-cli/internal/resolve"
)

var (
	serviceNewAllowHTTP bool
	serviceTargetGroup  string
)

var serviceCmd = &cobra.Command{
	Use:     "service",
	Aliases: []string{"svc"},
	Short:   "Manage HTTP services and their routing targets",
}

var serviceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List services",
	RunE:    runServiceList,
}

var serviceShowCmd = &cobra.Command{
	Use:   "show <id|name|prefix>",
	Short: "Show a service, its providers and targets",
	Args:  cobra.ExactArgs(1),
	RunE:  runServiceShow,
}

var serviceNewCmd = &cobra.Command{
	Use:   "new <name> <host>",
	Short: "Create an HTTP service routing a hostname to the default target group",
	Args:  cobra.ExactArgs(2),
	RunE:  runServiceNew,
}

var serviceDeleteCmd = &cobra.Command{
	Use:   "delete <id|name|prefix>",
	Short: "Delete a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runServiceDelete,
}

var serviceTargetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage a service's routing targets",
}

var serviceTargetAddCmd = &cobra.Command{
	Use:   "add <service> <instance:port>",
	Short: "Register an instance port as a routing target",
	Args:  cobra.ExactArgs(2),
	RunE:  runServiceTargetAdd,
}

var serviceTargetDeleteCmd = &cobra.Command{
	Use:   "delete <service> <target-id>",
	Short: "Deregister a routing target",
	Args:  cobra.ExactArgs(2),
	RunE:  runServiceTargetDelete,
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(serviceListCmd)
	serviceCmd.AddCommand(serviceShowCmd)
	serviceCmd.AddCommand(serviceNewCmd)
	serviceCmd.AddCommand(serviceDeleteCmd)
	serviceCmd.AddCommand(serviceTargetCmd)
	serviceTargetCmd.AddCommand(serviceTargetAddCmd)
	serviceTargetCmd.AddCommand(serviceTargetDeleteCmd)

	serviceNewCmd.Flags().BoolVar(&serviceNewAllowHTTP, "allow-http", false, "Serve plain HTTP in addition to HTTPS")
	serviceTargetAddCmd.Flags().StringVarP(&serviceTargetGroup, "group", "g", "", "Target group to register into")
}

// resolveService resolves a service argument to its id.
func resolveService(cmd *cobra.Command, client *api.Client, input string) (uuid.UUID, error) {
	services, err := client.ListServices(cmd.Context())
	if err != nil {
		return uuid.Nil, err
	}
	return resolve.ID(resolve.KindService, input, services)
}

// parseTargetSpec parses "instance:port" where instance is an id, name or id
// prefix.
func parseTargetSpec(cmd *cobra.Command, client *api.Client, spec string) (uuid.UUID, int, error) {
	instancePart, portPart, found := strings.Cut(spec, ":")
	if !found {
		return uuid.Nil, 0, fmt.Errorf("invalid target %q, expected <instance>:<port>", spec)
	}
	port, err := strconv.Atoi(portPart)
	if err != nil || port < 1 || port > 65535 {
		return uuid.Nil, 0, fmt.Errorf("invalid port %q in target %q", portPart, spec)
	}
	instanceID, err := resolveInstance(cmd, client, instancePart)
	if err != nil {
		return uuid.Nil, 0, err
	}
	return instanceID, port, nil
}

func runServiceList(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	services, err := client.ListServices(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(services))
	for _, svc := range services {
		rows = append(rows, []string{output.ShortID(svc.ID), svc.Name, svc.Type})
	}
	fmt.Println(output.Table([]string{"ID", "NAME", "TYPE"}, rows))
	return nil
}

func runServiceShow(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	id, err := resolveService(cmd, client, args[0])
	if err != nil {
		return err
	}
	detail, err := client.GetService(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", detail.ID)
	fmt.Printf("Name:     %s\n", detail.Name)
	fmt.Printf("Type:     %s\n", detail.Type)
	fmt.Printf("Created:  %s\n", output.Age(detail.CreatedAt))

	if len(detail.Providers) > 0 {
		rows := make([][]string, 0, len(detail.Providers))
		for _, provider := range detail.Providers {
			rows = append(rows, []string{output.ShortID(provider.ID), provider.RouteAddress})
		}
		fmt.Println()
		fmt.Println(output.Table([]string{"PROVIDER", "ROUTE"}, rows))
	}

	if len(detail.Targets) > 0 {
		rows := make([][]string, 0, len(detail.Targets))
		for _, target := range detail.Targets {
			rows = append(rows, []string{
				output.ShortID(target.ID),
				output.ShortID(target.InstanceID),
				fmt.Sprintf("%d", target.Port),
				target.GroupOrDefault(),
				output.Age(target.CreatedAt),
			})
		}
		fmt.Println()
		fmt.Println(output.Table([]string{"TARGET", "INSTANCE", "PORT", "GROUP", "AGE"}, rows))
	}
	return nil
}

func runServiceNew(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}

	name, host := args[0], args[1]
	resp, err := client.CreateService(cmd.Context(), api.CreateServiceRequest{
		Region: "dev",
		Name:   name,
		Host:   host,
		Configuration: api.HTTPServiceConfig{
			Locations: []api.HTTPLocation{{
				Path: "/",
				Target: api.HTTPLocationTarget{
					Type:  "instance_group",
					Group: api.DefaultTargetGroup,
				},
			}},
			AllowHTTP: serviceNewAllowHTTP,
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created service %s (%s -> %s)\n", output.ShortID(resp.ServiceID), host, name)
	return nil
}

func runServiceDelete(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	id, err := resolveService(cmd, client, args[0])
	if err != nil {
		return err
	}
	if err := client.DeleteService(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted service %s\n", output.ShortID(id))
	return nil
}

func runServiceTargetAdd(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	serviceID, err := resolveService(cmd, client, args[0])
	if err != nil {
		return err
	}
	instanceID, port, err := parseTargetSpec(cmd, client, args[1])
	if err != nil {
		return err
	}

	targetID, err := client.CreateTarget(cmd.Context(), serviceID, instanceID, port, serviceTargetGroup)
	if err != nil {
		return err
	}
	fmt.Printf("Target %s added to service %s (%s:%d",
		output.ShortID(targetID), output.ShortID(serviceID), output.ShortID(instanceID), port)
	if serviceTargetGroup != "" {
		fmt.Printf(" group %s", serviceTargetGroup)
	}
	fmt.Println(")")
	return nil
}

func runServiceTargetDelete(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	serviceID, err := resolveService(cmd, client, args[0])
	if err != nil {
		return err
	}

	detail, err := client.GetService(cmd.Context(), serviceID)
	if err != nil {
		return err
	}
	targetID, err := resolve.ID(resolve.KindTarget, args[1], detail.Targets)
	if err != nil {
		return err
	}

	if err := client.RemoveTarget(cmd.Context(), serviceID, targetID); err != nil {
		return err
	}
	fmt.Printf("Target %s deleted from service %s\n", output.ShortID(targetID), output.ShortID(serviceID))
	return nil
}
