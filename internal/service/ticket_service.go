package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/triage"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// KnowledgeRetriever supplies reference passages for a query.
type KnowledgeRetriever interface {
	Ready() error
	Retrieve(ctx context.Context, query string, k int) (string, error)
}

// ResolutionGenerator drafts an answer to a ticket.
type ResolutionGenerator interface {
	Generate(ctx context.Context, description, kbContext string) (string, error)
}

// TicketClassifier labels a ticket. It never fails.
type TicketClassifier interface {
	Classify(ctx context.Context, subject, description string) triage.Classification
}

// AgentRouter picks the agent group for a ticket. It never fails.
type AgentRouter interface {
	Assign(ctx context.Context, category, description, history string) domain.Agent
}

// TicketService runs the triage pipeline and the ticket lifecycle.
type TicketService struct {
	retriever  KnowledgeRetriever
	generator  ResolutionGenerator
	classifier TicketClassifier
	router     AgentRouter
	tickets    repository.TicketRepository
	pending    queue.SaveQueue
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	topK       int
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Retriever  KnowledgeRetriever
	Generator  ResolutionGenerator
	Classifier TicketClassifier
	Router     AgentRouter
	TicketRepo repository.TicketRepository
	SaveQueue  queue.SaveQueue
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	TopK       int
	Clock      func() time.Time
}

// SubmitInput describes a ticket as entered by the customer.
type SubmitInput struct {
	CustomerName     string
	CustomerEmail    string
	CustomerAge      int
	CustomerGender   string
	ProductPurchased string
	DateOfPurchase   time.Time
	Channel          string
	Subject          string
	Description      string
}

// SubmitResult is the triaged ticket. Deferred is set when the row store was
// unavailable and the ticket waits in the save queue.
type SubmitResult struct {
	Ticket         *domain.Ticket
	Classification triage.Classification
	Deferred       bool
}

// CloseResult is the closed ticket.
type CloseResult struct {
	Ticket   *domain.Ticket
	Deferred bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		retriever:  deps.Retriever,
		generator:  deps.Generator,
		classifier: deps.Classifier,
		router:     deps.Router,
		tickets:    deps.TicketRepo,
		pending:    deps.SaveQueue,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		topK:       deps.TopK,
		now:        clock,
	}
}

// NewTicketID returns an id of the form TK-XXXXXXXXXXXX.
func NewTicketID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TK-" + strings.ToUpper(hex[:12])
}

// Submit triages and persists a new ticket.
func (s *TicketService) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	input.Description = strings.TrimSpace(input.Description)
	input.Subject = strings.TrimSpace(input.Subject)
	input.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
	if input.Description == "" {
		return nil, apperrors.NewValidationError("ticket description is required", map[string]any{"field": "description"})
	}
	if err := s.retriever.Ready(); err != nil {
		return nil, apperrors.NewIndexUnavailable(err)
	}

	start := time.Now()
	defer func() { s.metrics.ObserveStage("pipeline", time.Since(start)) }()

	ticket := &domain.Ticket{
		ID:               NewTicketID(),
		CustomerName:     strings.TrimSpace(input.CustomerName),
		CustomerEmail:    input.CustomerEmail,
		CustomerAge:      input.CustomerAge,
		CustomerGender:   strings.TrimSpace(input.CustomerGender),
		ProductPurchased: strings.TrimSpace(input.ProductPurchased),
		DateOfPurchase:   input.DateOfPurchase,
		Channel:          domain.NormalizeChannel(input.Channel),
		Subject:          input.Subject,
		Description:      input.Description,
	}
	logger := s.logger.With(zap.String("ticket_id", ticket.ID))

	var (
		kbContext      string
		history        []domain.Ticket
		classification triage.Classification
	)
	stage1, stage1Ctx := errgroup.WithContext(ctx)
	stage1.Go(func() error {
		began := time.Now()
		defer func() { s.metrics.ObserveStage("retrieve", time.Since(began)) }()
		var err error
		kbContext, err = s.retriever.Retrieve(stage1Ctx, input.Description, s.topK)
		if err != nil {
			return fmt.Errorf("retrieve knowledge: %w", err)
		}
		return nil
	})
	stage1.Go(func() error {
		var err error
		history, err = s.tickets.ListByEmail(stage1Ctx, input.CustomerEmail)
		if err != nil {
			if stage1Ctx.Err() != nil {
				return stage1Ctx.Err()
			}
			logger.Warn("customer history unavailable, continuing without it", zap.Error(err))
			s.metrics.RecordFallback("history", "store")
			history = nil
		}
		return nil
	})
	stage1.Go(func() error {
		classification = s.classifier.Classify(stage1Ctx, input.Subject, input.Description)
		return nil
	})
	if err := stage1.Wait(); err != nil {
		if errors.Is(err, domain.ErrIndexUnavailable) {
			return nil, apperrors.NewIndexUnavailable(err)
		}
		return nil, err
	}
	if classification.Fallback {
		logger.Warn("classification fell back to defaults")
	}

	fullContext := BuildContext(kbContext, history)

	var (
		resolution string
		agent      domain.Agent
	)
	stage2, stage2Ctx := errgroup.WithContext(ctx)
	stage2.Go(func() error {
		var err error
		resolution, err = s.generator.Generate(stage2Ctx, input.Description, fullContext)
		return err
	})
	stage2.Go(func() error {
		agent = s.router.Assign(stage2Ctx, classification.Category, input.Description, fullContext)
		return nil
	})
	if err := stage2.Wait(); err != nil {
		return nil, err
	}

	ticket.Status = classification.Status
	ticket.Priority = classification.Priority
	ticket.Resolution = resolution
	ticket.AssignedAgent = agent
	ticket.FirstResponseTime = s.now().UTC().Truncate(time.Second)

	deferred, err := s.persist(ctx, ticket)
	if err != nil {
		return nil, err
	}

	logger.Info("ticket triaged",
		zap.String("category", classification.Category),
		zap.String("priority", string(ticket.Priority)),
		zap.String("status", string(ticket.Status)),
		zap.String("agent", string(ticket.AssignedAgent)),
		zap.Bool("deferred", deferred))
	s.publish(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
		Category:           classification.Category,
		Priority:           ticket.Priority,
		Status:             ticket.Status,
		Channel:            ticket.Channel,
		AssignedAgent:      ticket.AssignedAgent,
		ClassifierFallback: classification.Fallback,
		Deferred:           deferred,
	}))

	return &SubmitResult{Ticket: ticket, Classification: classification, Deferred: deferred}, nil
}

// Close records the customer's rating and the resolution time.
func (s *TicketService) Close(ctx context.Context, id string, rating int) (*CloseResult, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"field": "rating", "value": rating})
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, err
	}
	if ticket.IsClosed() {
		return nil, apperrors.NewConflict(domain.ErrTicketClosed.Error(), map[string]any{"ticket_id": id})
	}

	ticket.Close(s.now().UTC(), rating)
	deferred, err := s.persist(ctx, ticket)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventTicketClosed, ticket.ID, events.TicketClosedPayload{
		Rating:                  rating,
		TimeToResolutionSeconds: int64(ticket.TimeToResolution / time.Second),
		AssignedAgent:           ticket.AssignedAgent,
	}))
	return &CloseResult{Ticket: ticket, Deferred: deferred}, nil
}

// Get returns a stored ticket.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return ticket, err
}

// ListByEmail returns every ticket submitted with email.
func (s *TicketService) ListByEmail(ctx context.Context, email string) ([]domain.Ticket, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.NewValidationError("email is required", map[string]any{"field": "email"})
	}
	return s.tickets.ListByEmail(ctx, email)
}

// persist saves the ticket, deferring it to the save queue when the store
// stays unavailable. It reports whether the save was deferred.
func (s *TicketService) persist(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	err := s.tickets.Save(ctx, ticket)
	if err == nil {
		s.metrics.RecordSave("saved")
		return false, nil
	}
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		s.metrics.RecordSave("failed")
		return false, err
	}

	if s.pending != nil {
		qerr := s.pending.Push(ctx, queue.PendingSave{
			Ticket:     *ticket,
			Attempts:   1,
			EnqueuedAt: s.now().UTC(),
			LastError:  err.Error(),
		})
		if qerr == nil {
			s.metrics.RecordSave("deferred")
			s.logger.Warn("row store unavailable, ticket queued for retry",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			s.publish(ctx, events.NewEvent(events.EventTicketSaveDeferred, ticket.ID,
				events.TicketSaveDeferredPayload{Reason: err.Error()}))
			return true, nil
		}
		err = errors.Join(err, fmt.Errorf("enqueue: %w", qerr))
	}

	s.metrics.RecordSave("failed")
	return false, apperrors.NewStoreUnavailable(err, map[string]any{"ticket": TicketRow(ticket)})
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// BuildContext appends the customer's previous tickets to the knowledge
// context.
func BuildContext(kbContext string, history []domain.Ticket) string {
	if len(history) == 0 {
		return kbContext
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		lines = append(lines, fmt.Sprintf("Subject: %s, Description: %s, Status: %s", t.Subject, t.Description, t.Status))
	}
	return kbContext + "\n\nPrevious Tickets:\n" + strings.Join(lines, "\n")
}

// TicketRow renders a ticket keyed by row store column names.
func TicketRow(t *domain.Ticket) map[string]string {
	row := repository.EncodeTicket(t)
	out := make(map[string]string, len(row))
	for i, col := range repository.Columns {
		out[col] = row[i]
	}
	return out
}
