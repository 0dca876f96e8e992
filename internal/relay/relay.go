// Package relay republishes core events on NATS so other machines can
// follow the monitored target.
package relay

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/doridoridoriand/picheck/internal/event"
	"github.com/doridoridoriand/picheck/internal/log"
)

// Conn is the part of *nats.Conn the relay needs.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

// Envelope is the JSON payload of every relayed message.
type Envelope struct {
	Kind   event.Kind  `json:"kind"`
	Host   string      `json:"host,omitempty"`
	SentAt time.Time   `json:"sent_at"`
	Event  event.Event `json:"event"`
}

// Relay is an event.Sink publishing each event to <prefix>.<kind>.
type Relay struct {
	conn   Conn
	prefix string
	host   string
	logger *log.Logger
	now    func() time.Time
}

var hostname = os.Hostname

// New creates a relay. An empty prefix publishes on the bare kind.
func New(conn Conn, prefix string, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.Discard()
	}
	r := &Relay{
		conn:   conn,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if host, err := hostname(); err == nil {
		r.host = host
	}
	return r
}

// Subject returns the subject an event of kind k is published on.
func (r *Relay) Subject(k event.Kind) string {
	if r.prefix == "" {
		return string(k)
	}
	return fmt.Sprintf("%s.%s", r.prefix, k)
}

// Handle implements event.Sink. Publish failures are logged and dropped.
func (r *Relay) Handle(ev event.Event) {
	payload, err := json.Marshal(Envelope{
		Kind:   ev.Kind(),
		Host:   r.host,
		SentAt: r.now(),
		Event:  ev,
	})
	if err != nil {
		r.logger.LogError("relay", fmt.Errorf("encode %s: %w", ev.Kind(), err), nil)
		return
	}
	msg := &nats.Msg{
		Subject: r.Subject(ev.Kind()),
		Data:    payload,
		Header:  nats.Header{},
	}
	msg.Header.Set("Picheck-Kind", string(ev.Kind()))
	if err := r.conn.PublishMsg(msg); err != nil {
		r.logger.Warn("relay publish failed", map[string]interface{}{
			"subject": msg.Subject,
			"error":   err.Error(),
		})
	}
}

// Connect dials url and keeps reconnecting for the life of the process.
func Connect(url string, logger *log.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = log.Discard()
	}
	nc, err := nats.Connect(
		url,
		nats.Name("picheck"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			fields := map[string]interface{}{"url": url}
			if err != nil {
				fields["error"] = err.Error()
			}
			logger.Warn("nats disconnected", fields)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected", map[string]interface{}{"url": url})
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Debug("nats connection closed", map[string]interface{}{"url": url})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}
