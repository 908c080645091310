package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAgent(t *testing.T) {
	tests := []struct {
		raw  string
		want Agent
	}{
		{"Sales", AgentSales},
		{"  engineering\n", AgentEngineering},
		{"The best fit is Marketing.", AgentMarketing},
		{"GENERAL SUPPORT", AgentGeneralSupport},
		{"billing", AgentGeneralSupport},
		{"", AgentGeneralSupport},
		{"sales or engineering", AgentSales},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAgent(tt.raw))
		})
	}
}

func TestNormalizeEnums(t *testing.T) {
	assert.Equal(t, TicketStatusInProgress, NormalizeTicketStatus("IN_PROGRESS"))
	assert.Equal(t, TicketStatusClosed, NormalizeTicketStatus("closed"))
	assert.Equal(t, TicketStatusOpen, NormalizeTicketStatus("pending"))

	assert.Equal(t, TicketPriorityCritical, NormalizeTicketPriority("critical"))
	assert.Equal(t, TicketPriorityMedium, NormalizeTicketPriority("urgent"))

	assert.Equal(t, ChannelSocialMedia, NormalizeChannel("social-media"))
	assert.Equal(t, ChannelWeb, NormalizeChannel("fax"))

	_, ok := ParseTicketPriority("P1")
	assert.False(t, ok)
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, TicketPriorityLow.Rank(), TicketPriorityMedium.Rank())
	assert.Less(t, TicketPriorityHigh.Rank(), TicketPriorityCritical.Rank())
	assert.Equal(t, -1, TicketPriority("Urgent").Rank())
}

func TestTicketClose(t *testing.T) {
	opened := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ticket := &Ticket{Status: TicketStatusOpen, FirstResponseTime: opened}

	ticket.Close(time.Date(2024, 1, 1, 10, 5, 30, 900_000_000, time.UTC), 4)

	assert.True(t, ticket.IsClosed())
	assert.Equal(t, 4, ticket.SatisfactionRating)
	assert.Equal(t, 330*time.Second, ticket.TimeToResolution)
}
