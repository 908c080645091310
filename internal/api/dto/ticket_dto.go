package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	CustomerName     string `json:"customer_name" validate:"max=200"`
	CustomerEmail    string `json:"customer_email" validate:"omitempty,email"`
	CustomerAge      int    `json:"customer_age" validate:"gte=0,lte=150"`
	CustomerGender   string `json:"customer_gender" validate:"omitempty,oneof=Male Female Other"`
	ProductPurchased string `json:"product_purchased" validate:"max=200"`
	DateOfPurchase   string `json:"date_of_purchase" validate:"omitempty,datetime=2006-01-02"`
	Channel          string `json:"ticket_channel"`
	Subject          string `json:"ticket_subject" validate:"max=500"`
	Description      string `json:"ticket_description" validate:"required,max=32767"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// TicketResponse mirrors the stored row.
type TicketResponse struct {
	ID                 string                `json:"ticket_id"`
	CustomerName       string                `json:"customer_name"`
	CustomerEmail      string                `json:"customer_email"`
	CustomerAge        int                   `json:"customer_age,omitempty"`
	CustomerGender     string                `json:"customer_gender,omitempty"`
	ProductPurchased   string                `json:"product_purchased"`
	DateOfPurchase     string                `json:"date_of_purchase,omitempty"`
	Subject            string                `json:"ticket_subject"`
	Description        string                `json:"ticket_description"`
	Status             domain.TicketStatus   `json:"ticket_status"`
	Resolution         string                `json:"resolution"`
	Priority           domain.TicketPriority `json:"ticket_priority"`
	Channel            domain.Channel        `json:"ticket_channel"`
	FirstResponseTime  *time.Time            `json:"first_response_time,omitempty"`
	SatisfactionRating int                   `json:"customer_satisfaction_rating,omitempty"`
	AssignedAgent      domain.Agent          `json:"assigned_agent"`
	TimeToResolution   *int64                `json:"time_to_resolution_seconds,omitempty"`
}

// SubmitTicketResponse adds the classifier output to the new ticket.
type SubmitTicketResponse struct {
	Ticket             TicketResponse `json:"ticket"`
	Category           string         `json:"category"`
	ClassifierFallback bool           `json:"classifier_fallback"`
	Deferred           bool           `json:"deferred"`
}

// NewTicketResponse converts a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:                 t.ID,
		CustomerName:       t.CustomerName,
		CustomerEmail:      t.CustomerEmail,
		CustomerAge:        t.CustomerAge,
		CustomerGender:     t.CustomerGender,
		ProductPurchased:   t.ProductPurchased,
		Subject:            t.Subject,
		Description:        t.Description,
		Status:             t.Status,
		Resolution:         t.Resolution,
		Priority:           t.Priority,
		Channel:            t.Channel,
		SatisfactionRating: t.SatisfactionRating,
		AssignedAgent:      t.AssignedAgent,
	}
	if !t.DateOfPurchase.IsZero() {
		resp.DateOfPurchase = t.DateOfPurchase.Format(domain.DateLayout)
	}
	if !t.FirstResponseTime.IsZero() {
		first := t.FirstResponseTime
		resp.FirstResponseTime = &first
	}
	if t.IsClosed() {
		secs := int64(t.TimeToResolution / time.Second)
		resp.TimeToResolution = &secs
	}
	return resp
}

// NewTicketResponses converts a slice of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}
