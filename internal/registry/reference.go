package registry

import (
	"fmt"
	"strings"
)

// dockerHub is the canonical host behind the "docker.io" alias.
const dockerHub = "index.docker.io"

// Reference is a parsed container image reference.
type Reference struct {
	Registry   string
	Repository string
	Tag        string
	Digest     string
}

// ParseReference parses an image reference like "nginx:1.25",
// "ghcr.io/acme/app:v2" or "registry.example.com:5000/app@sha256:...".
func ParseReference(image string) (Reference, error) {
	if image == "" {
		return Reference{}, fmt.Errorf("empty image reference")
	}

	ref := Reference{Registry: "docker.io", Tag: "latest"}
	remainder := image

	// The first path component is a registry host only if it looks like one.
	if first, rest, found := strings.Cut(remainder, "/"); found {
		if strings.ContainsAny(first, ".:") || first == "localhost" {
			ref.Registry = first
			remainder = rest
		}
	}

	if name, digest, found := strings.Cut(remainder, "@"); found {
		ref.Digest = digest
		ref.Tag = ""
		remainder = name
	} else if i := strings.LastIndex(remainder, ":"); i > strings.LastIndex(remainder, "/") {
		ref.Tag = remainder[i+1:]
		remainder = remainder[:i]
	}

	if remainder == "" {
		return Reference{}, fmt.Errorf("invalid image reference %q", image)
	}
	ref.Repository = remainder

	// Official Docker Hub images live under the library namespace.
	if ref.Registry == "docker.io" && !strings.Contains(ref.Repository, "/") {
		ref.Repository = "library/" + ref.Repository
	}

	return ref, nil
}

// Host returns the registry host to talk to, resolving the "docker.io" alias.
func (r Reference) Host() string {
	if r.Registry == "docker.io" {
		return dockerHub
	}
	return r.Registry
}

// ManifestRef is the tag or digest to request a manifest by.
func (r Reference) ManifestRef() string {
	if r.Digest != "" {
		return r.Digest
	}
	return r.Tag
}

// String renders the reference back in its canonical form.
func (r Reference) String() string {
	var b strings.Builder
	if r.Registry != "docker.io" {
		b.WriteString(r.Registry)
		b.WriteByte('/')
	}
	b.WriteString(r.Repository)
	if r.Digest != "" {
		b.WriteByte('@')
		b.WriteString(r.Digest)
	} else if r.Tag != "" {
		b.WriteByte(':')
		b.WriteString(r.Tag)
	}
	return b.String()
}
