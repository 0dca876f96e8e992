package metrics

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/doridoridoriand/picheck/internal/agent"
	"github.com/doridoridoriand/picheck/internal/tracker"
)

func fixedSource(snap agent.Snapshot) Source {
	return SourceFunc(func() agent.Snapshot { return snap })
}

func TestWriteTarget(t *testing.T) {
	state := tracker.MonitorState{
		Target:         `pi"1@host\lan`,
		Status:         tracker.StatusOffline,
		LastCheckAt:    time.Unix(1700000000, 0),
		NextCheckAt:    time.Unix(1700003600, 0),
		LastDiagnostic: "ssh: not found",
		Checks:         4,
	}
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)
	writeTarget(writer, state)
	_ = writer.Flush()

	labels := `target="pi\"1@host\\lan"`
	expected := strings.Join([]string{
		"picheck_target_status{" + labels + `,status="unknown"} 0`,
		"picheck_target_status{" + labels + `,status="online"} 0`,
		"picheck_target_status{" + labels + `,status="offline"} 1`,
		"picheck_target_up{" + labels + "} 0",
		"picheck_target_probe_error{" + labels + "} 1",
		"picheck_target_checks_total{" + labels + "} 4",
		"picheck_target_last_check_timestamp_seconds{" + labels + "} 1700000000",
		"picheck_target_next_check_timestamp_seconds{" + labels + "} 1700003600",
		"",
	}, "\n")
	if buf.String() != expected {
		t.Fatalf("unexpected target metrics:\n%s", buf.String())
	}
}

func TestWriteTargetUnknownOmitsUp(t *testing.T) {
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)
	writeTarget(writer, tracker.MonitorState{Target: "a@h1", Status: tracker.StatusUnknown})
	_ = writer.Flush()

	body := buf.String()
	if strings.Contains(body, "picheck_target_up") {
		t.Fatalf("expected no up metric before the first check, got %q", body)
	}
	if !strings.Contains(body, `picheck_target_status{target="a@h1",status="unknown"} 1`) {
		t.Fatalf("expected unknown status, got %q", body)
	}
}

func TestEscapeLabel(t *testing.T) {
	if got := escapeLabel(`value"slash\`); got != `value\"slash\\` {
		t.Fatalf("unexpected escaped label: %q", got)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	server := NewServer(fixedSource(agent.Snapshot{}))
	req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestHandlerOutput(t *testing.T) {
	server := NewServer(fixedSource(agent.Snapshot{
		State:         tracker.MonitorState{Target: "a@h1", Status: tracker.StatusOnline, Checks: 1},
		HasTarget:     true,
		Notifications: 2,
		InFlight:      true,
		Interval:      time.Hour,
	}))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if contentType := rec.Header().Get("Content-Type"); contentType != "text/plain; version=0.0.4" {
		t.Fatalf("unexpected content type: %q", contentType)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"picheck_notifications_active 2",
		"picheck_probe_in_flight 1",
		"picheck_autostart_enabled 0",
		"picheck_check_interval_seconds 3600",
		`picheck_target_up{target="a@h1"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in output, got %q", want, body)
		}
	}
}

func TestHandlerWithoutTarget(t *testing.T) {
	server := NewServer(fixedSource(agent.Snapshot{}))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "picheck_target_") {
		t.Fatalf("expected no target metrics, got %q", rec.Body.String())
	}
}

func TestServeContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Serve(ctx, "127.0.0.1:0", fixedSource(agent.Snapshot{}))
	if err == nil {
		t.Fatalf("expected context cancellation error")
	}
}
