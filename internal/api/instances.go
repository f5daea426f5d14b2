package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// InstanceState is the lifecycle state of an instance. The control plane's
// vocabulary is open-ended; only StateActive drives client logic, everything
// unrecognized canonicalizes to StateOther.
type InstanceState string

const (
	StateActive   InstanceState = "active"
	StateStarting InstanceState = "starting"
	StateStopped  InstanceState = "stopped"
	StateFailed   InstanceState = "failed"
	StateOther    InstanceState = "other"
)

// Canonical maps unknown state strings to StateOther.
func (s InstanceState) Canonical() InstanceState {
	switch s {
	case StateActive, StateStarting, StateStopped, StateFailed:
		return s
	default:
		return StateOther
	}
}

// Running reports whether the instance is currently serving.
func (s InstanceState) Running() bool { return s == StateActive }

// InstanceConfiguration is the container configuration of an instance.
type InstanceConfiguration struct {
	ContainerImage string            `json:"container_image"`
	Args           []string          `json:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	RegistryToken  string            `json:"registry_token,omitempty"`
}

// Instance is one entry of the instance list.
type Instance struct {
	ID            uuid.UUID             `json:"id"`
	Name          string                `json:"name,omitempty"`
	State         InstanceState         `json:"state"`
	Configuration InstanceConfiguration `json:"configuration"`
	CreatedAt     time.Time             `json:"created_at"`
}

// ResolveID implements resolve.Item.
func (i Instance) ResolveID() uuid.UUID { return i.ID }

// ResolveName implements resolve.Item.
func (i Instance) ResolveName() string { return i.Name }

// RunningInstances filters to instances that are currently serving. Identifier
// resolution only considers these; stopped instances keep their names without
// shadowing new ones.
func RunningInstances(instances []Instance) []Instance {
	running := make([]Instance, 0, len(instances))
	for _, inst := range instances {
		if inst.State.Running() {
			running = append(running, inst)
		}
	}
	return running
}

// InstanceTargetInfo describes a service target that points at an instance.
type InstanceTargetInfo struct {
	ID          uuid.UUID `json:"id"`
	ServiceID   uuid.UUID `json:"service_id"`
	ServiceType string    `json:"service_type"`
	ServiceName string    `json:"service_name"`
	Port        int       `json:"instance_port"`
}

// InstanceDetail is the full view of a single instance.
type InstanceDetail struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name,omitempty"`
	NodeID         uuid.UUID             `json:"node_id"`
	State          InstanceState         `json:"state"`
	ExitCode       *int                  `json:"exit_code,omitempty"`
	ExitReason     string                `json:"exit_reason,omitempty"`
	Configuration  InstanceConfiguration `json:"configuration"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	NetworkID      *uuid.UUID            `json:"network_id,omitempty"`
	NetworkIP      string                `json:"network_ip,omitempty"`
	ServiceTargets []InstanceTargetInfo  `json:"service_targets,omitempty"`
}

type instanceListResponse struct {
	Instances []Instance `json:"instances"`
}

// ListInstances returns all instances visible to the session.
func (c *Client) ListInstances(ctx context.Context) ([]Instance, error) {
	var resp instanceListResponse
	if err := c.do(ctx, http.MethodGet, "/instance/list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

// GetInstance returns the detail view of one instance, including the service
// targets that route to it.
func (c *Client) GetInstance(ctx context.Context, id uuid.UUID) (InstanceDetail, error) {
	var detail InstanceDetail
	path := fmt.Sprintf("/instance/%s?include_service_targets=true", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return InstanceDetail{}, err
	}
	return detail, nil
}

// CreateInstanceRequest describes a new instance. NetworkSpec is the raw
// "[ip]@network-id-or-name" flag value; the network is resolved (and a free IP
// allocated when none was given) at creation time, per instance.
type CreateInstanceRequest struct {
	Image       string
	VCPUs       int
	MemoryMB    int
	Args        []string
	Env         map[string]string
	Name        string
	NetworkSpec string
	PullToken   string
}

type createInstancePayload struct {
	Region        string                `json:"region"`
	VCPURatio     float64               `json:"vcpu_ratio"`
	VCPUCount     int                   `json:"vcpu_count"`
	MemoryMB      int                   `json:"memory_mb"`
	Name          string                `json:"name,omitempty"`
	Configuration InstanceConfiguration `json:"configuration"`
	Network       *NetworkAttachment    `json:"network,omitempty"`
}

type createInstanceResponse struct {
	ID uuid.UUID `json:"id"`
}

// CreateInstance provisions a new instance and returns its id.
func (c *Client) CreateInstance(ctx context.Context, req CreateInstanceRequest) (uuid.UUID, error) {
	var network *NetworkAttachment
	if req.NetworkSpec != "" {
		attachment, err := c.ResolveNetworkSpec(ctx, req.NetworkSpec)
		if err != nil {
			return uuid.Nil, err
		}
		network = &attachment
	}

	payload := createInstancePayload{
		Region:    "dev",
		VCPURatio: 1.0,
		VCPUCount: req.VCPUs,
		MemoryMB:  req.MemoryMB,
		Name:      req.Name,
		Configuration: InstanceConfiguration{
			ContainerImage: req.Image,
			Args:           req.Args,
			Env:            req.Env,
			RegistryToken:  req.PullToken,
		},
		Network: network,
	}

	var resp createInstanceResponse
	if err := c.do(ctx, http.MethodPost, "/instance", payload, &resp); err != nil {
		return uuid.Nil, err
	}
	return resp.ID, nil
}

type stopInstancePayload struct {
	TimeoutMS int64 `json:"timeout_ms"`
}

// StopInstance stops an instance, allowing it the given grace period for
// a clean shutdown before it is killed.
func (c *Client) StopInstance(ctx context.Context, id uuid.UUID, timeout time.Duration) error {
	payload := stopInstancePayload{TimeoutMS: timeout.Milliseconds()}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/instance/%s", id), payload, nil)
}
