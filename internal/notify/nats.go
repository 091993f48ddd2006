// ABOUTME: NATS listener publishing ride events as JSON envelopes.
// ABOUTME: Falls back to a no-op publisher when NATS is unconfigured or unreachable.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// SubjectPrefix is prepended to the event kind to form the NATS subject.
const SubjectPrefix = "bikey.rides."

// Publisher is a Listener that owns an outbound connection.
type Publisher interface {
	Listener
	Close() error
}

// noop is used when NATS is not configured.
type noop struct{}

func (noop) HandleEvent(Event) error { return nil }
func (noop) Close() error            { return nil }

// natsPub publishes every event to SubjectPrefix + kind.
type natsPub struct {
	nc *nats.Conn
}

// NewPublisher connects to the NATS server at url. An empty url or a failed
// connection yields a publisher that drops events.
func NewPublisher(url string, logger *log.Logger) Publisher {
	if url == "" {
		return noop{}
	}
	if logger == nil {
		logger = log.Default()
	}

	nc, err := nats.Connect(url, nats.Name("bikey"))
	if err != nil {
		logger.Warn("NATS connect failed, using noop publisher", "url", url, "err", err)
		return noop{}
	}
	return &natsPub{nc: nc}
}

func (p *natsPub) HandleEvent(e Event) error {
	data, err := json.Marshal(newEnvelope(e))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(e.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

func (p *natsPub) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}

// Subject returns the NATS subject for an event kind.
func Subject(k Kind) string {
	return SubjectPrefix + string(k)
}

// Envelope is the wire format of a published event.
type Envelope struct {
	Type       string      `json:"type"`
	Version    string      `json:"version"`
	OccurredAt string      `json:"occurredAt"`
	EventID    string      `json:"eventId"`
	Payload    RidePayload `json:"payload"`
}

// RidePayload identifies the ride an event refers to.
type RidePayload struct {
	RideID int64 `json:"rideId"`
}

func newEnvelope(e Event) Envelope {
	return Envelope{
		Type:       Subject(e.Kind),
		Version:    "1",
		OccurredAt: e.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		EventID:    ulid.MustNew(ulid.Timestamp(e.At), ulid.DefaultEntropy()).String(),
		Payload:    RidePayload{RideID: e.RideID},
	}
}
