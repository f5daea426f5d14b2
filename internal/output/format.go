// Package output renders tables and rollout progress for the terminal.
package output

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
)

// ShortID is the first uuid block, enough to disambiguate interactively.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}

// Age renders a creation time as a relative age like "3 hours ago".
func Age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// Dash substitutes "-" for empty cell values.
func Dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Truncate shortens a string to the given display width, honoring wide runes.
func Truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
