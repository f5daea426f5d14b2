package rollout

// Phase is where a rollout currently is, or where it ended.
type Phase string

const (
	PhaseResolving             Phase = "resolving"
	PhaseProvisioningReplica   Phase = "provisioning-replica"
	PhaseAwaitingHealth        Phase = "awaiting-health"
	PhaseRegisteringTargets    Phase = "registering-targets"
	PhaseRetiringOldGeneration Phase = "retiring-old-generation"
	PhaseComplete              Phase = "complete"
	PhaseRolledBack            Phase = "rolled-back"
)

// LeaveBehind controls what of the old generation survives a successful
// rollout.
type LeaveBehind string

const (
	// LeaveNothing retires old targets and stops old instances.
	LeaveNothing LeaveBehind = ""
	// LeaveInstances retires old targets but keeps old instances running.
	LeaveInstances LeaveBehind = "instances"
	// LeaveTargets keeps old targets and instances untouched.
	LeaveTargets LeaveBehind = "targets"
)

// ParseLeaveBehind validates a --leave-behind flag value.
func ParseLeaveBehind(value string) (LeaveBehind, error) {
	switch LeaveBehind(value) {
	case LeaveNothing, LeaveInstances, LeaveTargets:
		return LeaveBehind(value), nil
	}
	return "", &ValidationError{Reason: "invalid --leave-behind value " + value + ", expected 'instances' or 'targets'"}
}
