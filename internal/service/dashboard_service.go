package service

import (
	"context"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// Count is a labeled tally.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Overview summarizes every stored ticket.
type Overview struct {
	Total      int     `json:"total"`
	ByStatus   []Count `json:"by_status"`
	ByPriority []Count `json:"by_priority"`
	ByChannel  []Count `json:"by_channel"`
}

// AgentPerformance summarizes the tickets routed to one agent group.
// Averages are nil when no ticket contributes to them.
type AgentPerformance struct {
	Agent                domain.Agent `json:"agent"`
	Tickets              int          `json:"tickets"`
	AvgResolutionSeconds *float64     `json:"avg_resolution_seconds"`
	AvgSatisfaction      *float64     `json:"avg_satisfaction"`
	ByStatus             []Count      `json:"by_status"`
}

// DashboardService computes reporting aggregates from the ticket store.
type DashboardService struct {
	tickets repository.TicketRepository
}

// NewDashboardService constructs the service.
func NewDashboardService(tickets repository.TicketRepository) *DashboardService {
	return &DashboardService{tickets: tickets}
}

// Overview counts tickets by status, priority and channel.
func (d *DashboardService) Overview(ctx context.Context) (*Overview, error) {
	tickets, err := d.tickets.List(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeOverview(tickets), nil
}

// AgentPerformance aggregates per agent group in canonical order.
func (d *DashboardService) AgentPerformance(ctx context.Context) ([]AgentPerformance, error) {
	tickets, err := d.tickets.List(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeAgentPerformance(tickets), nil
}

// ComputeOverview is the pure part of Overview. In Progress tickets are
// counted as Open.
func ComputeOverview(tickets []domain.Ticket) *Overview {
	status := map[domain.TicketStatus]int{}
	priority := map[domain.TicketPriority]int{}
	channel := map[domain.Channel]int{}
	for _, t := range tickets {
		s := t.Status
		if s == domain.TicketStatusInProgress {
			s = domain.TicketStatusOpen
		}
		status[s]++
		priority[t.Priority]++
		channel[t.Channel]++
	}

	out := &Overview{Total: len(tickets)}
	for _, s := range []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusClosed} {
		out.ByStatus = append(out.ByStatus, Count{Label: string(s), Count: status[s]})
	}
	for _, p := range domain.TicketPriorities {
		out.ByPriority = append(out.ByPriority, Count{Label: string(p), Count: priority[p]})
	}
	for _, c := range domain.Channels {
		out.ByChannel = append(out.ByChannel, Count{Label: string(c), Count: channel[c]})
	}
	return out
}

// ComputeAgentPerformance is the pure part of AgentPerformance. Resolution
// time averages closed tickets; satisfaction averages rated tickets.
func ComputeAgentPerformance(tickets []domain.Ticket) []AgentPerformance {
	type acc struct {
		tickets       int
		resolutionSum float64
		resolved      int
		ratingSum     float64
		rated         int
		status        map[domain.TicketStatus]int
	}
	byAgent := make(map[domain.Agent]*acc, len(domain.Agents))
	for _, a := range domain.Agents {
		byAgent[a] = &acc{status: map[domain.TicketStatus]int{}}
	}

	for _, t := range tickets {
		a, ok := byAgent[t.AssignedAgent]
		if !ok {
			a = byAgent[domain.AgentGeneralSupport]
		}
		a.tickets++
		a.status[t.Status]++
		if t.IsClosed() {
			a.resolutionSum += t.TimeToResolution.Seconds()
			a.resolved++
		}
		if t.SatisfactionRating > 0 {
			a.ratingSum += float64(t.SatisfactionRating)
			a.rated++
		}
	}

	out := make([]AgentPerformance, 0, len(domain.Agents))
	for _, agent := range domain.Agents {
		a := byAgent[agent]
		perf := AgentPerformance{Agent: agent, Tickets: a.tickets}
		if a.resolved > 0 {
			avg := a.resolutionSum / float64(a.resolved)
			perf.AvgResolutionSeconds = &avg
		}
		if a.rated > 0 {
			avg := a.ratingSum / float64(a.rated)
			perf.AvgSatisfaction = &avg
		}
		for _, s := range domain.TicketStatuses {
			perf.ByStatus = append(perf.ByStatus, Count{Label: string(s), Count: a.status[s]})
		}
		out = append(out, perf)
	}
	return out
}
