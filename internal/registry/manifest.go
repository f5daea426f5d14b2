package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/unisrv/unisrv-cli/internal/logging"
)

const (
	mediaTypeOCIIndex    = "application/vnd.oci.image.index.v1+json"
	mediaTypeOCIManifest = "application/vnd.oci.image.manifest.v1+json"

	manifestSchemaVersion = 2
)

// Descriptor references a blob or manifest by digest.
type Descriptor struct {
	MediaType string    `json:"mediaType"`
	Digest    string    `json:"digest"`
	Size      int64     `json:"size"`
	Platform  *Platform `json:"platform,omitempty"`
}

// Platform identifies the OS and architecture a manifest targets.
type Platform struct {
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
}

// Manifest is an OCI image manifest.
type Manifest struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType"`
	Config        Descriptor   `json:"config"`
	Layers        []Descriptor `json:"layers"`
}

// imageIndex is a multi-platform manifest list.
type imageIndex struct {
	SchemaVersion int          `json:"schemaVersion"`
	Manifests     []Descriptor `json:"manifests"`
}

// Manifest fetches the manifest for a reference. Multi-platform indexes are
// resolved to their linux/amd64 entry.
func (c *Client) Manifest(ctx context.Context, ref Reference, token string) (Manifest, error) {
	body, err := c.fetchManifest(ctx, ref, ref.ManifestRef(), token)
	if err != nil {
		return Manifest{}, err
	}

	var probe struct {
		SchemaVersion *int            `json:"schemaVersion"`
		Manifests     json.RawMessage `json:"manifests"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if probe.SchemaVersion == nil {
		return Manifest{}, fmt.Errorf("no schema version in image manifest")
	}
	if *probe.SchemaVersion != manifestSchemaVersion {
		return Manifest{}, fmt.Errorf("unsupported image manifest schema version %d", *probe.SchemaVersion)
	}

	if probe.Manifests == nil {
		var manifest Manifest
		if err := json.Unmarshal(body, &manifest); err != nil {
			return Manifest{}, fmt.Errorf("failed to parse image manifest: %w", err)
		}
		return manifest, nil
	}

	// Multi-platform index: pick the linux/amd64 entry and fetch it.
	logging.Debug(logSubsystem, "resolving multi-platform index for %s", ref)
	var index imageIndex
	if err := json.Unmarshal(body, &index); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse image index: %w", err)
	}

	var digest string
	for _, desc := range index.Manifests {
		if desc.Platform != nil && desc.Platform.Architecture == "amd64" && desc.Platform.OS == "linux" {
			digest = desc.Digest
			break
		}
	}
	if digest == "" {
		return Manifest{}, fmt.Errorf("no compatible linux/amd64 image found")
	}

	body, err = c.fetchManifest(ctx, ref, digest, token)
	if err != nil {
		return Manifest{}, err
	}
	var manifest Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse image manifest: %w", err)
	}
	return manifest, nil
}

func (c *Client) fetchManifest(ctx context.Context, ref Reference, manifestRef, token string) ([]byte, error) {
	manifestURL := fmt.Sprintf("%s://%s/v2/%s/manifests/%s", c.scheme, ref.Host(), ref.Repository, manifestRef)
	logging.Debug(logSubsystem, "fetching manifest %s", manifestURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", mediaTypeOCIIndex+", "+mediaTypeOCIManifest)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch manifest: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
