package api

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unisrv/unisrv-cli/internal/resolve"
)

// Network is one entry of the network list.
type Network struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	IPv4CIDR      string    `json:"ipv4_cidr"`
	InstanceCount *int64    `json:"instance_count,omitempty"`
}

// ResolveID implements resolve.Item.
func (n Network) ResolveID() uuid.UUID { return n.ID }

// ResolveName implements resolve.Item.
func (n Network) ResolveName() string { return n.Name }

// NetworkInstance is an instance attached to a network.
type NetworkInstance struct {
	ID         uuid.UUID `json:"id"`
	InternalIP string    `json:"internal_ip"`
}

// NetworkDetail is the full view of a network, including attached instances.
type NetworkDetail struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	IPv4CIDR  string            `json:"ipv4_cidr"`
	CreatedAt time.Time         `json:"created_at"`
	Instances []NetworkInstance `json:"instances"`
}

// NetworkAttachment joins an instance to a network at a concrete IP.
type NetworkAttachment struct {
	NetworkID  uuid.UUID `json:"network_id"`
	InstanceIP string    `json:"instance_ip"`
}

type networkListResponse struct {
	Networks []Network `json:"networks"`
}

// ListNetworks returns all networks visible to the session.
func (c *Client) ListNetworks(ctx context.Context, includeInstanceCount bool) ([]Network, error) {
	var resp networkListResponse
	path := fmt.Sprintf("/networks?include_instance_count=%t", includeInstanceCount)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Networks, nil
}

// GetNetwork returns the detail view of one network.
func (c *Client) GetNetwork(ctx context.Context, id uuid.UUID) (NetworkDetail, error) {
	var detail NetworkDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/network/%s", id), nil, &detail); err != nil {
		return NetworkDetail{}, err
	}
	return detail, nil
}

type createNetworkPayload struct {
	Name     string `json:"name"`
	IPv4CIDR string `json:"ipv4_cidr"`
}

// CreateNetwork creates a new internal network.
func (c *Client) CreateNetwork(ctx context.Context, name, ipv4CIDR string) (Network, error) {
	var network Network
	payload := createNetworkPayload{Name: name, IPv4CIDR: ipv4CIDR}
	if err := c.do(ctx, http.MethodPost, "/network", payload, &network); err != nil {
		return Network{}, err
	}
	return network, nil
}

// DeleteNetwork deletes a network.
func (c *Client) DeleteNetwork(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/network/%s", id), nil, nil)
}

// ResolveNetworkSpec turns a "[ip]@network-id-or-name" flag value into a
// concrete attachment. When the IP part is omitted, a free address is
// allocated from the network's CIDR.
func (c *Client) ResolveNetworkSpec(ctx context.Context, spec string) (NetworkAttachment, error) {
	ip, identifier, err := splitNetworkSpec(spec)
	if err != nil {
		return NetworkAttachment{}, err
	}

	networks, err := c.ListNetworks(ctx, false)
	if err != nil {
		return NetworkAttachment{}, err
	}
	networkID, err := resolve.ID(resolve.KindNetwork, identifier, networks)
	if err != nil {
		return NetworkAttachment{}, err
	}

	if ip == "" {
		detail, err := c.GetNetwork(ctx, networkID)
		if err != nil {
			return NetworkAttachment{}, err
		}
		used := make([]string, 0, len(detail.Instances))
		for _, inst := range detail.Instances {
			used = append(used, inst.InternalIP)
		}
		ip, err = NextFreeIP(detail.IPv4CIDR, used)
		if err != nil {
			return NetworkAttachment{}, err
		}
	}

	return NetworkAttachment{NetworkID: networkID, InstanceIP: ip}, nil
}

// splitNetworkSpec parses "[ip]@identifier" or a bare identifier.
func splitNetworkSpec(spec string) (ip, identifier string, err error) {
	parts := strings.SplitN(spec, "@", 2)
	switch len(parts) {
	case 1:
		return "", parts[0], nil
	case 2:
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("invalid network format %q, expected [ip]@<network-id-or-name>", spec)
}

// NextFreeIP picks the first unassigned host address in the CIDR. The network
// address and the first host (reserved for the gateway) are skipped, as is the
// IPv4 broadcast address.
func NextFreeIP(cidr string, used []string) (string, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return "", fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	prefix = prefix.Masked()

	usedSet := make(map[netip.Addr]struct{}, len(used))
	for _, u := range used {
		if addr, parseErr := netip.ParseAddr(u); parseErr == nil {
			usedSet[addr] = struct{}{}
		}
	}

	broadcast := broadcastAddr(prefix)

	// Skip the network address and the gateway.
	addr := prefix.Addr().Next().Next()
	for prefix.Contains(addr) {
		if addr == broadcast {
			break
		}
		if _, taken := usedSet[addr]; !taken {
			return addr.String(), nil
		}
		addr = addr.Next()
	}
	return "", fmt.Errorf("no free addresses left in %s", cidr)
}

func broadcastAddr(prefix netip.Prefix) netip.Addr {
	if !prefix.Addr().Is4() {
		return netip.Addr{}
	}
	a4 := prefix.Addr().As4()
	hostBits := 32 - prefix.Bits()
	v := uint32(a4[0])<<24 | uint32(a4[1])<<16 | uint32(a4[2])<<8 | uint32(a4[3])
	v |= uint32((uint64(1) << hostBits) - 1)
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
