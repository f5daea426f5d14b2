package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultTargetGroup is the group used when none is specified.
const DefaultTargetGroup = "default"

// Service is one entry of the service list.
type Service struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Type string    `json:"type"`
}

// ResolveID implements resolve.Item.
func (s Service) ResolveID() uuid.UUID { return s.ID }

// ResolveName implements resolve.Item.
func (s Service) ResolveName() string { return s.Name }

// Target binds a service to an instance port within a target group.
type Target struct {
	ID         uuid.UUID `json:"id"`
	InstanceID uuid.UUID `json:"instance_id"`
	Port       int       `json:"instance_port"`
	Group      string    `json:"target_group,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResolveID implements resolve.Item.
func (t Target) ResolveID() uuid.UUID { return t.ID }

// ResolveName implements resolve.Item. Targets have no names, so they only
// resolve by id or id prefix.
func (t Target) ResolveName() string { return "" }

// GroupOrDefault returns the target's group, treating an empty group as the
// default group.
func (t Target) GroupOrDefault() string {
	if t.Group == "" {
		return DefaultTargetGroup
	}
	return t.Group
}

// Provider is a routing node serving a service.
type Provider struct {
	ID           uuid.UUID `json:"id"`
	NodeID       uuid.UUID `json:"node_id"`
	RouteAddress string    `json:"route_address"`
	CreatedAt    time.Time `json:"created_at"`
}

// ServiceDetail is the full view of a service, including its targets.
type ServiceDetail struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	UserID    uuid.UUID  `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Providers []Provider `json:"providers"`
	Targets   []Target   `json:"targets"`
}

// TargetsInGroup filters the service's targets to one target group.
func (s ServiceDetail) TargetsInGroup(group string) []Target {
	targets := make([]Target, 0, len(s.Targets))
	for _, t := range s.Targets {
		if t.GroupOrDefault() == group {
			targets = append(targets, t)
		}
	}
	return targets
}

type serviceListResponse struct {
	Services []Service `json:"services"`
}

// ListServices returns all services visible to the session.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var resp serviceListResponse
	if err := c.do(ctx, http.MethodGet, "/services", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Services, nil
}

// GetService returns the detail view of one service.
func (c *Client) GetService(ctx context.Context, id uuid.UUID) (ServiceDetail, error) {
	var detail ServiceDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/service/%s", id), nil, &detail); err != nil {
		return ServiceDetail{}, err
	}
	return detail, nil
}

// HTTPLocationTarget is the destination of one HTTP routing location: either
// an instance target group or an external URL.
type HTTPLocationTarget struct {
	Type  string `json:"type"`
	Group string `json:"group,omitempty"`
	URL   string `json:"url,omitempty"`
}

// HTTPLocation is one path rule of an HTTP service.
type HTTPLocation struct {
	Path        string             `json:"path"`
	Override404 string             `json:"override_404,omitempty"`
	Target      HTTPLocationTarget `json:"target"`
}

// HTTPServiceConfig is the routing configuration of an HTTP service.
type HTTPServiceConfig struct {
	Locations []HTTPLocation `json:"locations"`
	AllowHTTP bool           `json:"allow_http"`
}

// CreateServiceRequest provisions a new HTTP service.
type CreateServiceRequest struct {
	Region        string             `json:"region"`
	Name          string             `json:"name"`
	Host          string             `json:"host"`
	Configuration HTTPServiceConfig  `json:"configuration"`
	Targets       []NewServiceTarget `json:"instance_targets"`
}

// NewServiceTarget is an initial target included in a service provision
// request.
type NewServiceTarget struct {
	InstanceID uuid.UUID `json:"instance_id"`
	Port       int       `json:"instance_port"`
}

// CreateServiceResponse is the result of provisioning a service.
type CreateServiceResponse struct {
	ServiceID uuid.UUID `json:"service_id"`
}

// CreateService provisions a new service.
func (c *Client) CreateService(ctx context.Context, req CreateServiceRequest) (CreateServiceResponse, error) {
	if req.Targets == nil {
		req.Targets = []NewServiceTarget{}
	}
	var resp CreateServiceResponse
	if err := c.do(ctx, http.MethodPost, "/service", req, &resp); err != nil {
		return CreateServiceResponse{}, err
	}
	return resp, nil
}

// DeleteService deletes a service.
func (c *Client) DeleteService(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/service/%s", id), nil, nil)
}

type createTargetPayload struct {
	InstanceID uuid.UUID `json:"instance_id"`
	Port       int       `json:"instance_port"`
	Group      string    `json:"group,omitempty"`
}

type createTargetResponse struct {
	TargetID uuid.UUID `json:"target_id"`
}

// CreateTarget registers an instance as a routing target of a service's
// target group and returns the new target id.
func (c *Client) CreateTarget(ctx context.Context, serviceID, instanceID uuid.UUID, port int, group string) (uuid.UUID, error) {
	payload := createTargetPayload{InstanceID: instanceID, Port: port, Group: group}
	var resp createTargetResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/service/%s/target", serviceID), payload, &resp); err != nil {
		return uuid.Nil, err
	}
	return resp.TargetID, nil
}

// RemoveTarget deregisters a target from a service.
func (c *Client) RemoveTarget(ctx context.Context, serviceID, targetID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/service/%s/target/%s", serviceID, targetID), nil, nil)
}
