// Package rollout implements the rolling replacement of the instances behind
// a service target group.
package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unisrv/unisrv-cli/internal/api"
	"github.com/unisrv/unisrv-cli/internal/bootstream"
	"github.com/unisrv/unisrv-cli/internal/logging"
	"github.com/unisrv/unisrv-cli/internal/resolve"
)

const logSubsystem = "rollout"

// defaultStopTimeout is the shutdown grace period for instances stopped
// during rollback and retirement.
const defaultStopTimeout = 5 * time.Second

// Backend is the control plane subset the orchestrator drives.
type Backend interface {
	ListServices(ctx context.Context) ([]api.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (api.ServiceDetail, error)
	ListInstances(ctx context.Context) ([]api.Instance, error)
	CreateInstance(ctx context.Context, req api.CreateInstanceRequest) (uuid.UUID, error)
	StopInstance(ctx context.Context, id uuid.UUID, timeout time.Duration) error
	CreateTarget(ctx context.Context, serviceID, instanceID uuid.UUID, port int, group string) (uuid.UUID, error)
	RemoveTarget(ctx context.Context, serviceID, targetID uuid.UUID) error
}

// ImageVerifier checks an image reference is pullable and returns the token
// new instances use to pull it.
type ImageVerifier interface {
	VerifyAndGetPullToken(ctx context.Context, image string) (string, error)
}

// HealthMonitor confirms a freshly created instance boots and stays up.
type HealthMonitor interface {
	WaitUntilRunning(ctx context.Context, id uuid.UUID, reporter bootstream.Reporter) error
}

// Reporter receives rollout progress for display.
type Reporter interface {
	bootstream.Reporter
	// Phase announces a phase change with a human-readable message.
	Phase(phase Phase, message string)
	// Warn surfaces a non-fatal problem, typically a failed cleanup step.
	Warn(message string)
}

// NopReporter discards all progress.
type NopReporter struct{ bootstream.NopReporter }

func (NopReporter) Phase(Phase, string) {}
func (NopReporter) Warn(string)        {}

// Options parameterize one rollout.
type Options struct {
	// Service is the service id, name, or id prefix.
	Service string
	// Image is the container image the new generation runs.
	Image string
	// Group is the target group being replaced.
	Group string
	// Port is the instance port targets forward to. Zero means derive it
	// from the old generation's targets.
	Port int
	// Replicas is the new generation's size. Zero means match the old
	// generation, minimum one.
	Replicas int

	VCPUs       int
	MemoryMB    int
	Env         map[string]string
	Args        []string
	NetworkSpec string

	LeaveBehind LeaveBehind
	// StopTimeout overrides the shutdown grace period for stopped instances.
	StopTimeout time.Duration
}

// Result describes how a rollout ended. On error the Phase is PhaseRolledBack
// unless the failure happened before any mutation.
type Result struct {
	Phase          Phase
	ServiceID      uuid.UUID
	ServiceName    string
	Group          string
	Port           int
	Replicas       int
	NewInstanceIDs []uuid.UUID
}

// Orchestrator runs rollouts.
type Orchestrator struct {
	Backend Backend
	Images  ImageVerifier
	Health  HealthMonitor
}

// Run performs one rolling replacement. Any returned error means no target of
// the new generation is registered: replicas created by this attempt have
// received a best-effort stop, and the old generation is untouched.
func (o *Orchestrator) Run(ctx context.Context, opts Options, reporter Reporter) (Result, error) {
	if opts.Group == "" {
		opts.Group = api.DefaultTargetGroup
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}

	result := Result{Phase: PhaseResolving, Group: opts.Group}
	reporter.Phase(PhaseResolving, fmt.Sprintf("Resolving service %q", opts.Service))

	services, err := o.Backend.ListServices(ctx)
	if err != nil {
		return result, err
	}
	serviceID, err := resolve.ID(resolve.KindService, opts.Service, services)
	if err != nil {
		return result, err
	}
	result.ServiceID = serviceID

	detail, err := o.Backend.GetService(ctx, serviceID)
	if err != nil {
		return result, fmt.Errorf("failed to fetch service info: %w", err)
	}
	result.ServiceName = detail.Name

	oldTargets := detail.TargetsInGroup(opts.Group)

	replicas := opts.Replicas
	if replicas <= 0 {
		replicas = len(oldTargets)
		if replicas < 1 {
			replicas = 1
		}
	}
	result.Replicas = replicas

	port, err := resolvePort(opts.Port, opts.Group, oldTargets)
	if err != nil {
		return result, err
	}
	result.Port = port

	instances, err := o.Backend.ListInstances(ctx)
	if err != nil {
		return result, err
	}
	existingNames := make([]string, 0, len(instances))
	for _, inst := range instances {
		if inst.Name != "" {
			existingNames = append(existingNames, inst.Name)
		}
	}
	token := generationToken(detail.Name, opts.Group, existingNames)

	// Nothing has been created yet; an image failure aborts cleanly.
	reporter.Phase(PhaseResolving, fmt.Sprintf("Verifying %s", opts.Image))
	pullToken, err := o.Images.VerifyAndGetPullToken(ctx, opts.Image)
	if err != nil {
		return result, err
	}

	// Provision the new generation one replica at a time. Any failure stops
	// everything this attempt created and leaves the old generation alone.
	for i := 0; i < replicas; i++ {
		name := fmt.Sprintf("%s_%s_%s_%d", detail.Name, opts.Group, token, i)

		result.Phase = PhaseProvisioningReplica
		reporter.Phase(PhaseProvisioningReplica,
			fmt.Sprintf("Provisioning %s (%d/%d)", name, i+1, replicas))

		instanceID, err := o.Backend.CreateInstance(ctx, api.CreateInstanceRequest{
			Image:       opts.Image,
			VCPUs:       opts.VCPUs,
			MemoryMB:    opts.MemoryMB,
			Args:        opts.Args,
			Env:         opts.Env,
			Name:        name,
			NetworkSpec: opts.NetworkSpec,
			PullToken:   pullToken,
		})
		if err != nil {
			o.stopAll(ctx, result.NewInstanceIDs, stopTimeout, reporter)
			result.Phase = PhaseRolledBack
			return result, &ProvisionError{Replica: i + 1, Name: name, Err: err}
		}
		result.NewInstanceIDs = append(result.NewInstanceIDs, instanceID)

		result.Phase = PhaseAwaitingHealth
		reporter.Phase(PhaseAwaitingHealth,
			fmt.Sprintf("Waiting for %s (%d/%d) to become healthy", shortID(instanceID), i+1, replicas))

		if err := o.Health.WaitUntilRunning(ctx, instanceID, reporter); err != nil {
			o.stopAll(ctx, result.NewInstanceIDs, stopTimeout, reporter)
			result.Phase = PhaseRolledBack
			return result, &HealthCheckError{Replica: i + 1, InstanceID: instanceID, Err: err}
		}
	}

	// Register the whole new generation. All or nothing: one failed
	// registration rolls back every new instance.
	result.Phase = PhaseRegisteringTargets
	reporter.Phase(PhaseRegisteringTargets,
		fmt.Sprintf("Adding %d target(s) to service (group: %s)", replicas, opts.Group))

	for _, instanceID := range result.NewInstanceIDs {
		if _, err := o.Backend.CreateTarget(ctx, serviceID, instanceID, port, opts.Group); err != nil {
			o.stopAll(ctx, result.NewInstanceIDs, stopTimeout, reporter)
			result.Phase = PhaseRolledBack
			return result, &RegistrationError{InstanceID: instanceID, Err: err}
		}
	}

	// The new generation is serving. From here on every failure is logged
	// and absorbed; the rollout itself has succeeded.
	result.Phase = PhaseRetiringOldGeneration
	o.retireOldGeneration(ctx, serviceID, oldTargets, opts.LeaveBehind, stopTimeout, reporter)

	result.Phase = PhaseComplete
	reporter.Phase(PhaseComplete,
		fmt.Sprintf("Rolled out %d replica(s) of group %q on service %q", replicas, opts.Group, detail.Name))
	return result, nil
}

// resolvePort derives the target port from the old generation when none was
// requested.
func resolvePort(requested int, group string, oldTargets []api.Target) (int, error) {
	if requested > 0 {
		return requested, nil
	}
	if len(oldTargets) == 0 {
		return 0, &ValidationError{
			Reason: fmt.Sprintf("--port required when no existing targets exist for group %q", group),
		}
	}
	port := oldTargets[0].Port
	for _, t := range oldTargets[1:] {
		if t.Port != port {
			return 0, &ValidationError{
				Reason: fmt.Sprintf("--port required: existing targets in group %q have different ports", group),
			}
		}
	}
	return port, nil
}

// stopAll stops every given instance, logging failures instead of aborting.
func (o *Orchestrator) stopAll(ctx context.Context, ids []uuid.UUID, timeout time.Duration, reporter Reporter) {
	for _, id := range ids {
		if err := o.Backend.StopInstance(ctx, id, timeout); err != nil {
			logging.Warn(logSubsystem, "failed to stop instance %s during cleanup: %v", id, err)
			reporter.Warn(fmt.Sprintf("failed to stop instance %s during cleanup: %v", shortID(id), err))
		}
	}
}

// retireOldGeneration deregisters and stops the old generation per the
// leave-behind policy. Every step is best-effort.
func (o *Orchestrator) retireOldGeneration(ctx context.Context, serviceID uuid.UUID, oldTargets []api.Target, leaveBehind LeaveBehind, stopTimeout time.Duration, reporter Reporter) {
	if len(oldTargets) == 0 || leaveBehind == LeaveTargets {
		return
	}

	reporter.Phase(PhaseRetiringOldGeneration,
		fmt.Sprintf("Deregistering %d old target(s)", len(oldTargets)))
	for _, old := range oldTargets {
		if err := o.Backend.RemoveTarget(ctx, serviceID, old.ID); err != nil {
			logging.Warn(logSubsystem, "failed to remove old target %s: %v", old.ID, err)
			reporter.Warn(fmt.Sprintf("failed to remove old target %s: %v", shortID(old.ID), err))
		}
	}

	if leaveBehind == LeaveInstances {
		return
	}

	reporter.Phase(PhaseRetiringOldGeneration,
		fmt.Sprintf("Stopping %d old instance(s)", len(oldTargets)))
	for _, old := range oldTargets {
		if err := o.Backend.StopInstance(ctx, old.InstanceID, stopTimeout); err != nil {
			logging.Warn(logSubsystem, "failed to stop old instance %s: %v", old.InstanceID, err)
			reporter.Warn(fmt.Sprintf("failed to stop old instance %s: %v", shortID(old.InstanceID), err))
		}
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
