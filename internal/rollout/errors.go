package rollout

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError means the rollout preconditions failed before anything was
// created. Nothing needs to be rolled back.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ProvisionError means creating a replica failed. Earlier replicas of the
// attempt have been rolled back.
type ProvisionError struct {
	Replica int
	Name    string
	Err     error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to provision replica %d (%s): %v", e.Replica, e.Name, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// HealthCheckError means a replica was created but never confirmed healthy.
type HealthCheckError struct {
	Replica    int
	InstanceID uuid.UUID
	Err        error
}

func (e *HealthCheckError) Error() string {
	return fmt.Sprintf("replica %d (instance %s) failed health confirmation: %v", e.Replica, e.InstanceID, e.Err)
}

func (e *HealthCheckError) Unwrap() error { return e.Err }

// RegistrationError means a healthy replica could not be registered as a
// target. The whole new generation has been rolled back.
type RegistrationError struct {
	InstanceID uuid.UUID
	Err        error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register target for instance %s: %v", e.InstanceID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
