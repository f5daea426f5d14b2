package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unisrv/unisrv-cli/internal/api"
	"github.com/unisrv/unisrv-cli/internal/bootstream"
	"github.com/unisrv/unisrv-cli/internal/config"
	"github.com/unisrv/unisrv-cli/internal/output"
	"github.com/unisrv/unisrv-cli/internal/resolve"
)

var (
	instanceRunVCPUs   int
	instanceRunMemory  string
	instanceRunEnv     []string
	instanceRunName    string
	instanceRunNetwork string

	instanceStopTimeoutMS  int64
	instanceIncludeStopped bool
)

var instanceCmd = &cobra.Command{
	Use:     "instance",
	Aliases: []string{"i"},
	Short:   "Manage microVM instances",
}

var instanceRunCmd = &cobra.Command{
	Use:   "run <container-image> [-- args...]",
	Short: "Run a container image as a new instance",
	Long: `Verifies the image against its registry, provisions a new microVM
instance running it, and follows the boot event stream.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstanceRun,
}

var instanceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List instances",
	RunE:    runInstanceList,
}

var instanceShowCmd = &cobra.Command{
	Use:   "show <id|name|prefix>",
	Short: "Show one instance, including its service targets",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstanceShow,
}

var instanceStopCmd = &cobra.Command{
	Use:   "stop <id|name|prefix>",
	Short: "Stop an instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstanceStop,
}

var instanceLogsCmd = &cobra.Command{
	Use:   "logs <id|name|prefix>",
	Short: "Stream an instance's boot and container logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstanceLogs,
}

func init() {
	rootCmd.AddCommand(instanceCmd)
	instanceCmd.AddCommand(instanceRunCmd)
	instanceCmd.AddCommand(instanceListCmd)
	instanceCmd.AddCommand(instanceShowCmd)
	instanceCmd.AddCommand(instanceStopCmd)
	instanceCmd.AddCommand(instanceLogsCmd)

	instanceRunCmd.Flags().IntVarP(&instanceRunVCPUs, "vcpus", "c", 1, "Number of vCPUs to allocate [1-32]")
	instanceRunCmd.Flags().StringVarP(&instanceRunMemory, "memory", "m", "1024M", "Amount of memory in GB (G) or MB (M) [128M-128G]")
	instanceRunCmd.Flags().StringArrayVarP(&instanceRunEnv, "env", "e", nil, "Environment variables as KEY=VALUE pairs")
	instanceRunCmd.Flags().StringVarP(&instanceRunName, "name", "n", "", "Optional name for the instance")
	instanceRunCmd.Flags().StringVar(&instanceRunNetwork, "network", "", "Join a network: [ip]@<network-id-or-name>")

	instanceListCmd.Flags().BoolVar(&instanceIncludeStopped, "include-stopped", false, "Also list stopped instances")
	instanceStopCmd.Flags().Int64Var(&instanceStopTimeoutMS, "timeout", 5000, "Graceful shutdown timeout in milliseconds")
}

// newMonitor builds a boot stream monitor bound to the client's session.
func newMonitor(cfg config.Config, client *api.Client) *bootstream.Monitor {
	return &bootstream.Monitor{
		URL: func(id uuid.UUID) string {
			return cfg.WSURL(fmt.Sprintf("/instance/%s/logs/stream", id))
		},
		Token:        client.Token,
		HealthWindow: cfg.HealthWindow,
	}
}

// resolveInstance resolves an instance argument against running instances
// only, so stopped instances do not shadow names.
func resolveInstance(cmd *cobra.Command, client *api.Client, input string) (uuid.UUID, error) {
	instances, err := client.ListInstances(cmd.Context())
	if err != nil {
		return uuid.Nil, err
	}
	return resolve.ID(resolve.KindInstance, input, api.RunningInstances(instances))
}

func runInstanceRun(cmd *cobra.Command, args []string) error {
	if err := validateVCPUs(instanceRunVCPUs); err != nil {
		return err
	}
	memoryMB, err := parseMemoryMB(instanceRunMemory)
	if err != nil {
		return err
	}
	env, err := parseEnvVars(instanceRunEnv)
	if err != nil {
		return err
	}

	client, cfg, err := newAuthedClient()
	if err != nil {
		return err
	}

	image := args[0]
	printer := output.NewPrinter(os.Stdout, os.Stderr)

	pullToken, err := newRegistryClient(client).VerifyAndGetPullToken(cmd.Context(), image)
	if err != nil {
		return err
	}

	instanceID, err := client.CreateInstance(cmd.Context(), api.CreateInstanceRequest{
		Image:       image,
		VCPUs:       instanceRunVCPUs,
		MemoryMB:    memoryMB,
		Args:        args[1:],
		Env:         env,
		Name:        instanceRunName,
		NetworkSpec: instanceRunNetwork,
		PullToken:   pullToken,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Created instance %s\n", instanceID)

	return newMonitor(cfg, client).Stream(cmd.Context(), instanceID, printer)
}

func runInstanceList(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	instances, err := client.ListInstances(cmd.Context())
	if err != nil {
		return err
	}
	if !instanceIncludeStopped {
		instances = api.RunningInstances(instances)
	}

	rows := make([][]string, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, []string{
			output.ShortID(inst.ID),
			output.Dash(inst.Name),
			string(inst.State.Canonical()),
			output.Truncate(inst.Configuration.ContainerImage, 48),
			output.Age(inst.CreatedAt),
		})
	}
	fmt.Println(output.Table([]string{"ID", "NAME", "STATE", "IMAGE", "AGE"}, rows))
	return nil
}

func runInstanceShow(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	id, err := resolveInstance(cmd, client, args[0])
	if err != nil {
		return err
	}
	detail, err := client.GetInstance(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", detail.ID)
	fmt.Printf("Name:     %s\n", output.Dash(detail.Name))
	fmt.Printf("State:    %s\n", detail.State.Canonical())
	fmt.Printf("Image:    %s\n", detail.Configuration.ContainerImage)
	fmt.Printf("Created:  %s\n", output.Age(detail.CreatedAt))
	if detail.NetworkID != nil {
		fmt.Printf("Network:  %s (%s)\n", output.ShortID(*detail.NetworkID), detail.NetworkIP)
	}
	if detail.ExitCode != nil {
		fmt.Printf("Exit:     %d (%s)\n", *detail.ExitCode, output.Dash(detail.ExitReason))
	}

	if len(detail.ServiceTargets) > 0 {
		rows := make([][]string, 0, len(detail.ServiceTargets))
		for _, target := range detail.ServiceTargets {
			rows = append(rows, []string{
				output.ShortID(target.ID),
				target.ServiceName,
				target.ServiceType,
				fmt.Sprintf("%d", target.Port),
			})
		}
		fmt.Println()
		fmt.Println(output.Table([]string{"TARGET", "SERVICE", "TYPE", "PORT"}, rows))
	}
	return nil
}

func runInstanceStop(cmd *cobra.Command, args []string) error {
	client, _, err := newAuthedClient()
	if err != nil {
		return err
	}
	id, err := resolveInstance(cmd, client, args[0])
	if err != nil {
		return err
	}
	timeout := time.Duration(instanceStopTimeoutMS) * time.Millisecond
	if err := client.StopInstance(cmd.Context(), id, timeout); err != nil {
		return err
	}
	fmt.Printf("Stopped instance %s\n", output.ShortID(id))
	return nil
}

func runInstanceLogs(cmd *cobra.Command, args []string) error {
	client, cfg, err := newAuthedClient()
	if err != nil {
		return err
	}
	id, err := resolveInstance(cmd, client, args[0])
	if err != nil {
		return err
	}
	printer := output.NewPrinter(os.Stdout, os.Stderr)
	return newMonitor(cfg, client).Stream(cmd.Context(), id, printer)
}
