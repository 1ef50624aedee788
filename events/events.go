// Package events publishes refresh outcomes to NATS so other tooling can
// react to dashboard state changes. Publishing is strictly optional: a
// missing or unreachable broker degrades to a no-op.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// RefreshSubject carries one message per completed refresh.
const RefreshSubject = "sentinel.dashboard.refresh"

// RefreshEvent is the wire form of one refresh outcome.
type RefreshEvent struct {
	Repo           string `json:"repo"`
	Provider       string `json:"provider"`
	GeneratedAt    string `json:"generatedAt"`
	OK             bool   `json:"ok"`
	Stale          bool   `json:"stale"`
	BackoffSeconds int    `json:"backoffSeconds"`
}

// Publisher emits refresh events over a NATS connection. A nil Publisher
// is valid and publishes nothing.
type Publisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// Connect dials the broker. Failure is reported but callers are expected
// to treat it as non-fatal and continue without events.
func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, logger: logger}, nil
}

// PublishRefresh emits one refresh event. Errors are logged, never
// propagated; event delivery must not affect the refresh loop.
func (p *Publisher) PublishRefresh(ev RefreshEvent) {
	if p == nil || p.nc == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("refresh event marshal failed", "error", err)
		return
	}
	if err := p.nc.Publish(RefreshSubject, data); err != nil {
		p.logger.Warn("refresh event publish failed", "error", err)
	}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}
