package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/unisrv/unisrv-cli/internal/bootstream"
	"github.com/unisrv/unisrv-cli/internal/rollout"
)

func TestShortID(t *testing.T) {
	id := uuid.MustParse("a1b2c3d4-0000-0000-0000-000000000000")
	assert.Equal(t, "a1b2c3d4", ShortID(id))
}

func TestAge(t *testing.T) {
	assert.Equal(t, "-", Age(time.Time{}))
	assert.Contains(t, Age(time.Now().Add(-2*time.Hour)), "ago")
}

func TestDash(t *testing.T) {
	assert.Equal(t, "-", Dash(""))
	assert.Equal(t, "web", Dash("web"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "long stri…", Truncate("long string value", 10))
}

func TestTable(t *testing.T) {
	rendered := Table(
		[]string{"ID", "NAME"},
		[][]string{{"a1b2c3d4", "web"}, {"e5f6a7b8", "api"}},
	)
	assert.Contains(t, rendered, "ID")
	assert.Contains(t, rendered, "web")
	assert.Contains(t, rendered, "api")
}

func TestPrinterPhases(t *testing.T) {
	var out, errBuf bytes.Buffer
	p := NewPrinter(&out, &errBuf)

	p.Phase(rollout.PhaseProvisioningReplica, "Provisioning web_default_ab12_0 (1/2)")
	p.Phase(rollout.PhaseComplete, "Rolled out 2 replica(s)")
	p.Warn("failed to stop instance a1b2c3d4")

	assert.Contains(t, errBuf.String(), "Provisioning web_default_ab12_0")
	assert.Contains(t, errBuf.String(), "Rolled out 2 replica(s)")
	assert.Contains(t, errBuf.String(), "warning: failed to stop instance")
	assert.Empty(t, out.String())
}

func TestPrinterBootEvents(t *testing.T) {
	var out, errBuf bytes.Buffer
	p := NewPrinter(&out, &errBuf)

	p.BootState(bootstream.StatePullingImage)
	p.BootState(bootstream.StateExecutingContainer)
	p.BootLog(bootstream.KindStdout, "listening on :8080")
	p.BootLog(bootstream.KindStderr, "warmup done")
	p.BootLog(bootstream.KindSystem, "container started")

	// Container stdout is the only thing on stdout.
	assert.Equal(t, "listening on :8080\n", out.String())
	assert.Contains(t, errBuf.String(), "Pulling container image")
	assert.Contains(t, errBuf.String(), "Executing container")
	assert.Contains(t, errBuf.String(), "warmup done")
	assert.Contains(t, errBuf.String(), "[instance] container started")
}
