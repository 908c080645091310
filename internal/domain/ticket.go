package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusClosed     TicketStatus = "Closed"
)

// TicketStatuses lists statuses in lifecycle order.
var TicketStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed}

// TicketPriority enumerates urgency, ordered Low < Medium < High < Critical.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// TicketPriorities lists priorities in ascending order.
var TicketPriorities = []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical}

// Channel enumerates intake sources.
type Channel string

const (
	ChannelWeb         Channel = "Web"
	ChannelEmail       Channel = "Email"
	ChannelPhone       Channel = "Phone"
	ChannelChat        Channel = "Chat"
	ChannelSocialMedia Channel = "Social media"
)

// Channels lists the supported intake sources.
var Channels = []Channel{ChannelWeb, ChannelEmail, ChannelPhone, ChannelChat, ChannelSocialMedia}

// Wire formats used by the row store.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                 string
	CustomerName       string
	CustomerEmail      string
	CustomerAge        int
	CustomerGender     string
	ProductPurchased   string
	DateOfPurchase     time.Time
	Channel            Channel
	Subject            string
	Description        string
	Status             TicketStatus
	Priority           TicketPriority
	Resolution         string
	AssignedAgent      Agent
	FirstResponseTime  time.Time
	SatisfactionRating int
	TimeToResolution   time.Duration
}

// IsClosed reports whether the ticket reached its terminal status.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}

// Close marks the ticket closed at closedAt. Resolution time is counted in
// whole seconds from the first response.
func (t *Ticket) Close(closedAt time.Time, rating int) {
	t.Status = TicketStatusClosed
	t.SatisfactionRating = rating
	elapsed := closedAt.Sub(t.FirstResponseTime)
	if elapsed < 0 {
		elapsed = 0
	}
	t.TimeToResolution = elapsed.Truncate(time.Second)
}

// Rank returns the position of p in the priority order, -1 if unknown.
func (p TicketPriority) Rank() int {
	for i, candidate := range TicketPriorities {
		if candidate == p {
			return i
		}
	}
	return -1
}

// ParseTicketStatus matches raw case-insensitively against the known statuses.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	raw = normalizeToken(raw)
	for _, status := range TicketStatuses {
		if normalizeToken(string(status)) == raw {
			return status, true
		}
	}
	return "", false
}

// NormalizeTicketStatus maps raw onto a status, defaulting to Open.
func NormalizeTicketStatus(raw string) TicketStatus {
	if status, ok := ParseTicketStatus(raw); ok {
		return status
	}
	return TicketStatusOpen
}

// ParseTicketPriority matches raw case-insensitively against the known priorities.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	raw = normalizeToken(raw)
	for _, priority := range TicketPriorities {
		if normalizeToken(string(priority)) == raw {
			return priority, true
		}
	}
	return "", false
}

// NormalizeTicketPriority maps raw onto a priority, defaulting to Medium.
func NormalizeTicketPriority(raw string) TicketPriority {
	if priority, ok := ParseTicketPriority(raw); ok {
		return priority
	}
	return TicketPriorityMedium
}

// NormalizeChannel maps raw onto a channel, defaulting to Web.
func NormalizeChannel(raw string) Channel {
	raw = normalizeToken(raw)
	for _, channel := range Channels {
		if normalizeToken(string(channel)) == raw {
			return channel
		}
	}
	return ChannelWeb
}

// normalizeToken lowercases and folds "_", "-" and repeated spaces so that
// "IN_PROGRESS", "in-progress" and "In Progress" compare equal.
func normalizeToken(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.NewReplacer("_", " ", "-", " ").Replace(raw)
	return strings.Join(strings.Fields(raw), " ")
}
