package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/sheet"
)

// Row store column names in storage order.
const (
	ColTicketID           = "ticket_id"
	ColCustomerName       = "customer_name"
	ColCustomerEmail      = "customer_email"
	ColCustomerAge        = "customer_age"
	ColCustomerGender     = "customer_gender"
	ColProductPurchased   = "product_purchased"
	ColDateOfPurchase     = "date_of_purchase"
	ColSubject            = "ticket_subject"
	ColDescription        = "ticket_description"
	ColStatus             = "ticket_status"
	ColResolution         = "resolution"
	ColPriority           = "ticket_priority"
	ColChannel            = "ticket_channel"
	ColFirstResponseTime  = "first_response_time"
	ColSatisfactionRating = "customer_satisfaction_rating"
	ColAssignedAgent      = "assigned_agent"
	ColTimeToResolution   = "time_to_resolution"
)

// Columns is the fixed row store header. The id column comes first.
var Columns = []string{
	ColTicketID,
	ColCustomerName,
	ColCustomerEmail,
	ColCustomerAge,
	ColCustomerGender,
	ColProductPurchased,
	ColDateOfPurchase,
	ColSubject,
	ColDescription,
	ColStatus,
	ColResolution,
	ColPriority,
	ColChannel,
	ColFirstResponseTime,
	ColSatisfactionRating,
	ColAssignedAgent,
	ColTimeToResolution,
}

// EncodeTicket renders t as a row in Columns order. Zero age, rating and
// purchase date are written as empty cells.
func EncodeTicket(t *domain.Ticket) []string {
	row := make([]string, 0, len(Columns))
	row = append(row,
		t.ID,
		t.CustomerName,
		t.CustomerEmail,
		formatInt(t.CustomerAge),
		t.CustomerGender,
		t.ProductPurchased,
		formatTime(t.DateOfPurchase, domain.DateLayout),
		t.Subject,
		t.Description,
		string(t.Status),
		t.Resolution,
		string(t.Priority),
		string(t.Channel),
		formatTime(t.FirstResponseTime, domain.TimestampLayout),
		formatInt(t.SatisfactionRating),
		string(t.AssignedAgent),
		formatResolution(t),
	)
	return row
}

// DecodeTicket parses a stored record. Enumerated columns are normalized onto
// their defaults; malformed numbers or dates are errors.
func DecodeTicket(rec sheet.Record) (*domain.Ticket, error) {
	t := &domain.Ticket{
		ID:               strings.TrimSpace(rec[ColTicketID]),
		CustomerName:     rec[ColCustomerName],
		CustomerEmail:    strings.TrimSpace(rec[ColCustomerEmail]),
		CustomerGender:   rec[ColCustomerGender],
		ProductPurchased: rec[ColProductPurchased],
		Subject:          rec[ColSubject],
		Description:      rec[ColDescription],
		Status:           domain.NormalizeTicketStatus(rec[ColStatus]),
		Resolution:       rec[ColResolution],
		Priority:         domain.NormalizeTicketPriority(rec[ColPriority]),
		Channel:          domain.NormalizeChannel(rec[ColChannel]),
		AssignedAgent:    domain.NormalizeAgent(rec[ColAssignedAgent]),
	}
	if t.ID == "" {
		return nil, fmt.Errorf("record has no %s", ColTicketID)
	}

	var err error
	if t.CustomerAge, err = parseInt(rec[ColCustomerAge]); err != nil {
		return nil, columnError(t.ID, ColCustomerAge, err)
	}
	if t.SatisfactionRating, err = parseInt(rec[ColSatisfactionRating]); err != nil {
		return nil, columnError(t.ID, ColSatisfactionRating, err)
	}
	if t.DateOfPurchase, err = parseTime(rec[ColDateOfPurchase], domain.DateLayout); err != nil {
		return nil, columnError(t.ID, ColDateOfPurchase, err)
	}
	if t.FirstResponseTime, err = parseTime(rec[ColFirstResponseTime], domain.TimestampLayout); err != nil {
		return nil, columnError(t.ID, ColFirstResponseTime, err)
	}
	if raw := strings.TrimSpace(rec[ColTimeToResolution]); raw != "" {
		if t.TimeToResolution, err = time.ParseDuration(raw); err != nil {
			return nil, columnError(t.ID, ColTimeToResolution, err)
		}
	}
	return t, nil
}

func columnError(id, column string, err error) error {
	return fmt.Errorf("ticket %s: column %s: %w", id, column, err)
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func parseInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

func parseTime(raw, layout string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(layout, raw)
}

func formatResolution(t *domain.Ticket) string {
	if !t.IsClosed() {
		return ""
	}
	return fmt.Sprintf("%ds", int64(t.TimeToResolution/time.Second))
}
