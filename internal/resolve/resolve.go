// Package resolve turns human-supplied identifiers (full UUID, exact name, or
// unique UUID prefix) into concrete resource IDs.
package resolve

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind names the resource kind being resolved, for error messages.
type Kind string

const (
	KindService  Kind = "service"
	KindInstance Kind = "instance"
	KindTarget   Kind = "target"
	KindNetwork  Kind = "network"
	KindHost     Kind = "host"
)

// Item is a resource that can be resolved by UUID, name, or UUID prefix.
// Resources without names return the empty string.
type Item interface {
	ResolveID() uuid.UUID
	ResolveName() string
}

// NotFoundError indicates no resource matched the input.
type NotFoundError struct {
	Kind  Kind
	Input string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found matching '%s'", e.Kind, e.Input)
}

// AmbiguousError indicates more than one resource matched a UUID prefix.
type AmbiguousError struct {
	Kind    Kind
	Input   string
	Matches int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous: %d %ss match prefix '%s', be more specific", e.Matches, e.Kind, e.Input)
}

// ID resolves the input against the given items.
//
// The resolution strategy:
//  1. Try parsing as a full UUID (returned as-is, without an existence check).
//  2. Try exact name match; exactly one hit wins.
//  3. If the input looks like a UUID prefix (hex digits and hyphens only),
//     match against the string form of each item's UUID; a unique hit wins.
func ID[T Item](kind Kind, input string, items []T) (uuid.UUID, error) {
	if parsed, err := uuid.Parse(input); err == nil {
		return parsed, nil
	}

	var nameMatch uuid.UUID
	nameMatches := 0
	for _, item := range items {
		if name := item.ResolveName(); name != "" && name == input {
			nameMatch = item.ResolveID()
			nameMatches++
		}
	}
	if nameMatches == 1 {
		return nameMatch, nil
	}

	if isHexPrefix(input) {
		var prefixMatch uuid.UUID
		prefixMatches := 0
		for _, item := range items {
			id := item.ResolveID()
			if hasPrefix(id.String(), input) {
				prefixMatch = id
				prefixMatches++
			}
		}
		switch prefixMatches {
		case 1:
			return prefixMatch, nil
		case 0:
			return uuid.Nil, &NotFoundError{Kind: kind, Input: input}
		default:
			return uuid.Nil, &AmbiguousError{Kind: kind, Input: input, Matches: prefixMatches}
		}
	}

	return uuid.Nil, &NotFoundError{Kind: kind, Input: input}
}

func isHexPrefix(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		case c == '-':
		default:
			return false
		}
	}
	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
