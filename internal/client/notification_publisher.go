package client

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes governance decision events to NATS for
// consumption by the platform notifications service.
//
// Subject convention: notifications.hr.<event_type>
// Event types: transition_blocked, approval_required
//
// All publish operations are non-fatal — errors are logged but never propagated
// to the caller, so notification failures never alter a governance verdict.
type NotificationPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string                 `json:"event_type"`
	Workflow     string                 `json:"workflow"`
	ActorRole    string                 `json:"actor_role"`
	Recipients   []string               `json:"recipients"`
	ResourceType string                 `json:"resource_type,omitempty"`
	Severity     string                 `json:"severity,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection disables publishing.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nc: nc, log: log}
}

// PublishGovernanceEvent publishes one governance event to NATS.
// Subject: notifications.hr.<eventType>
func (p *NotificationPublisher) PublishGovernanceEvent(eventType, workflow, actorRole string, recipients []string, payload map[string]interface{}) {
	if p == nil || p.nc == nil {
		return
	}
	if len(recipients) == 0 {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		Workflow:     workflow,
		ActorRole:    actorRole,
		Recipients:   recipients,
		ResourceType: "workflow_transition",
		Severity:     "info",
		Category:     "hr_governance",
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.hr.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("workflow", workflow).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("workflow", workflow).
		Int("recipients", len(recipients)).
		Msg("notification: event published")
}
