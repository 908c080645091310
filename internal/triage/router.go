package triage

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/llm"
	"github.com/spec-kit/ticket-triage/internal/observability"
)

// KeywordGroup lists the keywords that pull a ticket toward an agent group.
type KeywordGroup struct {
	Agent    domain.Agent
	Keywords []string
}

// KeywordGroups is ordered by tie precedence.
var KeywordGroups = []KeywordGroup{
	{Agent: domain.AgentSales, Keywords: []string{"pricing", "discount", "order", "invoice", "refund", "exchange"}},
	{Agent: domain.AgentMarketing, Keywords: []string{"promotion", "campaign", "ad", "social media"}},
	{Agent: domain.AgentEngineering, Keywords: []string{"bug", "error", "technical", "login", "feature"}},
}

// Decision records how an agent was chosen.
type Decision struct {
	Agent      domain.Agent
	Vote       domain.Agent
	Scores     map[domain.Agent]int
	Overridden bool
}

// Router assigns tickets to agent groups.
type Router struct {
	model   llm.Model
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRouter constructs a router.
func NewRouter(model llm.Model, logger *zap.Logger, metrics *observability.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{model: model, logger: logger, metrics: metrics}
}

// Assign returns the agent group for a ticket. It never fails.
func (r *Router) Assign(ctx context.Context, category, description, history string) domain.Agent {
	return r.Decide(ctx, category, description, history).Agent
}

// Decide asks the model for a vote, then lets a positive keyword score
// override it.
func (r *Router) Decide(ctx context.Context, category, description, history string) Decision {
	start := time.Now()
	defer func() { r.metrics.ObserveStage("route", time.Since(start)) }()

	vote := r.vote(ctx, category, description, history)
	decision := Decision{Agent: vote, Vote: vote, Scores: ScoreKeywords(category, description)}

	if winner, ok := keywordWinner(decision.Scores); ok {
		decision.Overridden = winner != vote
		decision.Agent = winner
		if decision.Overridden {
			r.metrics.RecordKeywordOverride()
			r.logger.Debug("keyword score overrode model vote",
				zap.String("vote", string(vote)),
				zap.String("agent", string(winner)))
		}
	}
	return decision
}

func (r *Router) vote(ctx context.Context, category, description, history string) domain.Agent {
	raw, err := r.model.Complete(ctx, llm.Request{
		Prompt:      routingPrompt(category, description, history),
		Temperature: llm.Temperature(0),
	})
	if err != nil {
		r.logger.Warn("routing request failed, defaulting vote", zap.Error(err))
		r.metrics.RecordFallback("route", "transport")
		return domain.AgentGeneralSupport
	}
	agent := domain.NormalizeAgent(raw)
	if agent == domain.AgentGeneralSupport && !strings.Contains(strings.ToLower(raw), "general support") {
		r.metrics.RecordFallback("route", "unrecognized")
	}
	return agent
}

// ScoreKeywords counts, per agent group, how many distinct keywords occur
// anywhere in lower(category + " " + description). Matching is plain
// substring containment, so "preorder" hits "order" and "address" hits "ad".
func ScoreKeywords(category, description string) map[domain.Agent]int {
	text := strings.ToLower(category + " " + description)
	scores := make(map[domain.Agent]int, len(KeywordGroups))
	for _, group := range KeywordGroups {
		scores[group.Agent] = 0
		for _, keyword := range group.Keywords {
			if strings.Contains(text, keyword) {
				scores[group.Agent]++
			}
		}
	}
	return scores
}

func keywordWinner(scores map[domain.Agent]int) (domain.Agent, bool) {
	best, bestScore := domain.Agent(""), 0
	for _, group := range KeywordGroups {
		if s := scores[group.Agent]; s > bestScore {
			best, bestScore = group.Agent, s
		}
	}
	return best, bestScore > 0
}
