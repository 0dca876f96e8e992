package metrics

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/doridoridoriand/picheck/internal/agent"
	"github.com/doridoridoriand/picheck/internal/tracker"
)

// Source provides the current monitoring state.
type Source interface {
	Snapshot() agent.Snapshot
}

// SourceFunc adapts a function to Source.
type SourceFunc func() agent.Snapshot

// Snapshot calls f.
func (f SourceFunc) Snapshot() agent.Snapshot { return f() }

// Server exposes Prometheus-style metrics based on current state.
type Server struct {
	source Source
}

// NewServer constructs a metrics server.
func NewServer(source Source) *Server {
	return &Server{source: source}
}

// Handler returns an http handler that serves metrics.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		bw := bufio.NewWriter(w)
		defer bw.Flush()
		s.writeMetrics(bw)
	})
}

func (s *Server) writeMetrics(w *bufio.Writer) {
	snap := s.source.Snapshot()
	writeAgent(w, snap)
	if snap.HasTarget {
		writeTarget(w, snap.State)
	}
}

func writeAgent(w *bufio.Writer, snap agent.Snapshot) {
	fmt.Fprintf(w, "picheck_notifications_active %d\n", snap.Notifications)
	fmt.Fprintf(w, "picheck_probe_in_flight %d\n", boolValue(snap.InFlight))
	fmt.Fprintf(w, "picheck_autostart_enabled %d\n", boolValue(snap.Autostart))
	fmt.Fprintf(w, "picheck_check_interval_seconds %g\n", snap.Interval.Seconds())
}

func writeTarget(w *bufio.Writer, state tracker.MonitorState) {
	labels := fmt.Sprintf(`target="%s"`, escapeLabel(state.Target))
	for _, status := range []tracker.Status{tracker.StatusUnknown, tracker.StatusOnline, tracker.StatusOffline} {
		fmt.Fprintf(w, "picheck_target_status{%s,status=%q} %d\n",
			labels, strings.ToLower(string(status)), boolValue(state.Status == status))
	}
	if state.Status != tracker.StatusUnknown {
		fmt.Fprintf(w, "picheck_target_up{%s} %d\n", labels, boolValue(state.Online()))
		fmt.Fprintf(w, "picheck_target_probe_error{%s} %d\n", labels, boolValue(state.LastDiagnostic != ""))
	}
	fmt.Fprintf(w, "picheck_target_checks_total{%s} %d\n", labels, state.Checks)
	if !state.LastCheckAt.IsZero() {
		fmt.Fprintf(w, "picheck_target_last_check_timestamp_seconds{%s} %d\n", labels, state.LastCheckAt.Unix())
	}
	if !state.NextCheckAt.IsZero() {
		fmt.Fprintf(w, "picheck_target_next_check_timestamp_seconds{%s} %d\n", labels, state.NextCheckAt.Unix())
	}
}

func boolValue(v bool) int {
	if v {
		return 1
	}
	return 0
}

func escapeLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}

// Serve starts an HTTP server and blocks until context cancellation.
func Serve(ctx context.Context, addr string, source Source) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", NewServer(source).Handler())
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return context.Canceled
		}
		return err
	}
}
