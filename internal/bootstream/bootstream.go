// Package bootstream follows an instance's boot event stream and decides
// whether the instance came up healthy.
package bootstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/unisrv/unisrv-cli/internal/logging"
)

const logSubsystem = "bootstream"

// recentLines is how many log lines are kept for failure reports.
const recentLines = 5

// EventKind discriminates boot stream events.
type EventKind string

const (
	KindState  EventKind = "state"
	KindSystem EventKind = "system"
	KindStdout EventKind = "stdout"
	KindStderr EventKind = "stderr"
)

// BootState is a lifecycle phase reported by the instance host.
type BootState string

const (
	StatePullingImage       BootState = "pulling-image"
	StateOnline             BootState = "online"
	StateExecutingContainer BootState = "executing-container"
)

// Event is one message of the boot event stream.
type Event struct {
	Kind        EventKind `json:"log_type"`
	TimestampMS int64     `json:"timestamp_ms"`
	Message     string    `json:"message,omitempty"`
	State       BootState `json:"state,omitempty"`
}

// Time converts the event's millisecond timestamp.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.TimestampMS).UTC()
}

// Reporter receives boot progress for display.
type Reporter interface {
	BootState(state BootState)
	BootLog(kind EventKind, line string)
}

// NopReporter discards all progress.
type NopReporter struct{}

func (NopReporter) BootState(BootState)       {}
func (NopReporter) BootLog(EventKind, string) {}

// StreamError is a boot stream failure, carrying the last output lines seen
// before the stream went away.
type StreamError struct {
	Reason       string
	RecentOutput []string
	Err          error
}

func (e *StreamError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.RecentOutput) > 0 {
		msg += "; recent output: " + strings.Join(e.RecentOutput, " | ")
	}
	return msg
}

func (e *StreamError) Unwrap() error { return e.Err }

// Monitor attaches to instance boot event streams.
type Monitor struct {
	// URL builds the websocket URL of an instance's stream.
	URL func(id uuid.UUID) string
	// Token returns a bearer token for the stream upgrade.
	Token func(ctx context.Context) (string, error)
	// HealthWindow is how long an instance must stay connected after
	// reporting that the container is executing before it counts as healthy.
	HealthWindow time.Duration
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// WaitUntilRunning follows the stream until the instance is confirmed healthy
// or the stream fails. The instance is healthy once it has reported
// executing-container and stayed connected for the full health window. The
// window is a fixed deadline; stream activity during it does not extend it.
func (m *Monitor) WaitUntilRunning(ctx context.Context, id uuid.UUID, reporter Reporter) error {
	events, errs, closeConn, err := m.attach(ctx, id)
	if err != nil {
		return err
	}
	defer closeConn()

	recent := newRing(recentLines)

	// Phase 1: wait for executing-container. A closed stream here means the
	// instance never reached its container.
	for {
		var running bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return &StreamError{
				Reason:       "boot stream closed before reaching running state",
				RecentOutput: recent.lines(),
				Err:          ignoreNormalClose(err),
			}
		case event := <-events:
			running = m.handleEvent(event, recent, reporter)
		}
		if running {
			break
		}
	}

	// Phase 2: the health window. Only a disconnect can fail the instance
	// now; further events are surfaced but do not move the deadline.
	logging.Debug(logSubsystem, "instance %s executing, holding %s health window", id, m.HealthWindow)
	deadline := time.NewTimer(m.HealthWindow)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case err := <-errs:
			return &StreamError{
				Reason:       "boot stream closed unexpectedly during health check",
				RecentOutput: recent.lines(),
				Err:          ignoreNormalClose(err),
			}
		case event := <-events:
			m.handleEvent(event, recent, reporter)
		}
	}
}

// Stream follows the stream until it closes, reporting every event. Used for
// log tailing; a clean close is not an error.
func (m *Monitor) Stream(ctx context.Context, id uuid.UUID, reporter Reporter) error {
	events, errs, closeConn, err := m.attach(ctx, id)
	if err != nil {
		return err
	}
	defer closeConn()

	recent := newRing(recentLines)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if err = ignoreNormalClose(err); err != nil {
				return fmt.Errorf("boot stream failed: %w", err)
			}
			return nil
		case event := <-events:
			m.handleEvent(event, recent, reporter)
		}
	}
}

// handleEvent reports an event and returns true once the instance reports
// executing-container.
func (m *Monitor) handleEvent(event Event, recent *ring, reporter Reporter) bool {
	switch event.Kind {
	case KindState:
		reporter.BootState(event.State)
		return event.State == StateExecutingContainer
	case KindStdout, KindStderr, KindSystem:
		recent.add(event.Message)
		reporter.BootLog(event.Kind, event.Message)
	}
	return false
}

// attach dials the stream and starts the read pump.
func (m *Monitor) attach(ctx context.Context, id uuid.UUID) (<-chan Event, <-chan error, func(), error) {
	token, err := m.Token(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	dialer := m.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	streamURL := m.URL(id)
	logging.Debug(logSubsystem, "attaching to boot stream %s", streamURL)

	conn, resp, err := dialer.DialContext(ctx, streamURL, header)
	if err != nil {
		if resp != nil {
			return nil, nil, nil, fmt.Errorf("failed to attach to boot stream (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, nil, nil, fmt.Errorf("failed to attach to boot stream: %w", err)
	}

	events := make(chan Event)
	errs := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errs <- err
				return
			}
			var event Event
			if err := json.Unmarshal(data, &event); err != nil {
				errs <- fmt.Errorf("failed to parse boot event: %w", err)
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs, func() { conn.Close() }, nil
}

// ignoreNormalClose drops the error for a clean websocket close.
func ignoreNormalClose(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

// ring keeps the last n non-empty lines.
type ring struct {
	buf  []string
	next int
	full bool
}

func newRing(n int) *ring { return &ring{buf: make([]string, n)} }

func (r *ring) add(line string) {
	if line == "" {
		return
	}
	r.buf[r.next] = line
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) lines() []string {
	if !r.full {
		return append([]string(nil), r.buf[:r.next]...)
	}
	out := make([]string, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
