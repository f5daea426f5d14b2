package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/unisrv/unisrv-cli/internal/output"
	"github.com/unisrv/unisrv-cli/internal/rollout"
)

var (
	rolloutGroup       string
	rolloutPort        int
	rolloutReplicas    int
	rolloutVCPUs       int
	rolloutMemory      string
	rolloutEnv         []string
	rolloutNetwork     string
	rolloutLeaveBehind string
)

var rolloutCmd = &cobra.Command{
	Use:   "rollout <service> <container-image> [-- args...]",
	Short: "Perform a rolling update of the instances behind a service target group",
	Long: `Replaces the instances behind a service target group with new ones
running the given image. New replicas are provisioned one at a
time, confirmed healthy via their boot event stream, and registered
as targets. Only once the whole new generation is serving are the
old targets deregistered and the old instances stopped.

Any failure before that point rolls back the instances created by
this attempt and leaves the old generation untouched.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRollout,
}

func init() {
	rootCmd.AddCommand(rolloutCmd)

	rolloutCmd.Flags().StringVarP(&rolloutGroup, "group", "g", "default", "Target group name")
	rolloutCmd.Flags().IntVarP(&rolloutPort, "port", "p", 0, "Instance port for targets (auto-resolved from existing targets if all agree)")
	rolloutCmd.Flags().IntVarP(&rolloutReplicas, "replicas", "r", 0, "Number of replicas (defaults to count of existing group instances, minimum 1)")
	rolloutCmd.Flags().IntVarP(&rolloutVCPUs, "vcpus", "c", 1, "Number of vCPUs to allocate [1-32]")
	rolloutCmd.Flags().StringVarP(&rolloutMemory, "memory", "m", "1024M", "Amount of memory in GB (G) or MB (M) [128M-128G]")
	rolloutCmd.Flags().StringArrayVarP(&rolloutEnv, "env", "e", nil, "Environment variables as KEY=VALUE pairs")
	rolloutCmd.Flags().StringVar(&rolloutNetwork, "network", "", "Join each instance to a network (IP auto-allocated per instance)")
	rolloutCmd.Flags().StringVar(&rolloutLeaveBehind, "leave-behind", "", "What to keep from the old generation: 'instances' or 'targets'")
}

func runRollout(cmd *cobra.Command, args []string) error {
	if err := validateVCPUs(rolloutVCPUs); err != nil {
		return err
	}
	memoryMB, err := parseMemoryMB(rolloutMemory)
	if err != nil {
		return err
	}
	env, err := parseEnvVars(rolloutEnv)
	if err != nil {
		return err
	}
	leaveBehind, err := rollout.ParseLeaveBehind(rolloutLeaveBehind)
	if err != nil {
		return err
	}
	if rolloutReplicas < 0 {
		rolloutReplicas = 0
	}

	client, cfg, err := newAuthedClient()
	if err != nil {
		return err
	}

	orchestrator := &rollout.Orchestrator{
		Backend: client,
		Images:  newRegistryClient(client),
		Health:  newMonitor(cfg, client),
	}

	printer := output.NewPrinter(os.Stdout, os.Stderr)
	_, err = orchestrator.Run(cmd.Context(), rollout.Options{
		Service:     args[0],
		Image:       args[1],
		Group:       rolloutGroup,
		Port:        rolloutPort,
		Replicas:    rolloutReplicas,
		VCPUs:       rolloutVCPUs,
		MemoryMB:    memoryMB,
		Env:         env,
		Args:        args[2:],
		NetworkSpec: rolloutNetwork,
		LeaveBehind: leaveBehind,
		StopTimeout: cfg.StopTimeout,
	}, printer)
	return err
}
