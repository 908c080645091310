package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketClosed        EventType = "ticket_closed"
	EventTicketSaveDeferred  EventType = "ticket_save_deferred"
	EventTicketSaveRecovered EventType = "ticket_save_recovered"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category           string                `json:"category"`
	Priority           domain.TicketPriority `json:"priority"`
	Status             domain.TicketStatus   `json:"status"`
	Channel            domain.Channel        `json:"channel"`
	AssignedAgent      domain.Agent          `json:"assigned_agent"`
	ClassifierFallback bool                  `json:"classifier_fallback"`
	Deferred           bool                  `json:"deferred"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Rating                  int          `json:"rating"`
	TimeToResolutionSeconds int64        `json:"time_to_resolution_seconds"`
	AssignedAgent           domain.Agent `json:"assigned_agent"`
}

// TicketSaveDeferredPayload payload.
type TicketSaveDeferredPayload struct {
	Reason string `json:"reason"`
}

// TicketSaveRecoveredPayload payload.
type TicketSaveRecoveredPayload struct {
	Attempts int           `json:"attempts"`
	Delay    time.Duration `json:"delay"`
}
