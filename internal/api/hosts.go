package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Host is a claimed domain.
type Host struct {
	ID                    uuid.UUID  `json:"id"`
	Host                  string     `json:"host"`
	UserID                uuid.UUID  `json:"user_id"`
	ServiceID             *uuid.UUID `json:"service_id,omitempty"`
	CertificateType       string     `json:"certificate_type,omitempty"`
	CertificateValidUntil *time.Time `json:"certificate_valid_until,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// ResolveID implements resolve.Item.
func (h Host) ResolveID() uuid.UUID { return h.ID }

// ResolveName implements resolve.Item. Hosts resolve by domain name.
func (h Host) ResolveName() string { return h.Host }

// ListHosts returns all claimed hosts.
func (c *Client) ListHosts(ctx context.Context) ([]Host, error) {
	var hosts []Host
	if err := c.do(ctx, http.MethodGet, "/hosts", nil, &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

type claimHostPayload struct {
	Host string `json:"host"`
}

// ClaimHost claims a domain.
func (c *Client) ClaimHost(ctx context.Context, domain string) (Host, error) {
	var host Host
	if err := c.do(ctx, http.MethodPost, "/hosts", claimHostPayload{Host: domain}, &host); err != nil {
		return Host{}, err
	}
	return host, nil
}

// DeleteHost unclaims a host.
func (c *Client) DeleteHost(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/host/%s", id), nil, nil)
}

// RequestCert requests a TLS certificate for a host.
func (c *Client) RequestCert(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/host/%s/cert", id), nil, nil)
}
