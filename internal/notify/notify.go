// README: Assignment events published to NATS for driver apps and the console.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"resortdispatch/internal/types"
)

const DefaultSubject = "dispatch.assignment.created"

// AssignmentEvent is published once per committed request.
type AssignmentEvent struct {
	EventID     string    `json:"eventId"`
	RunID       string    `json:"runId"`
	Domain      string    `json:"domain"`
	Trigger     string    `json:"trigger"`
	RequestID   types.ID  `json:"requestId"`
	WorkerID    types.ID  `json:"workerId"`
	Cost        float64   `json:"cost"`
	IsChainTrip bool      `json:"isChainTrip"`
	ETAMinutes  int       `json:"etaMinutes"`
	AssignedAt  time.Time `json:"assignedAt"`
}

type Notifier interface {
	PublishAssignment(ctx context.Context, e AssignmentEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishAssignment(context.Context, AssignmentEvent) error { return nil }

type publisher interface {
	Publish(subj string, data []byte) error
}

// NATSNotifier publishes JSON events on one subject.
type NATSNotifier struct {
	nc      publisher
	subject string
}

func NewNATSNotifier(nc *nats.Conn, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{nc: nc, subject: subject}
}

func (n *NATSNotifier) PublishAssignment(ctx context.Context, e AssignmentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal assignment event: %w", err)
	}
	return n.nc.Publish(n.subject, data)
}
