package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/llm"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/sheet"
	"github.com/spec-kit/ticket-triage/internal/triage"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRetriever struct {
	readyErr error
	text     string
	err      error
	queries  atomic.Int32
}

func (f *fakeRetriever) Ready() error { return f.readyErr }

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) (string, error) {
	f.queries.Add(1)
	return f.text, f.err
}

type fakeGenerator struct {
	mu       sync.Mutex
	answer   string
	err      error
	contexts []string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, kbContext string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts = append(f.contexts, kbContext)
	return f.answer, f.err
}

type countingClassifier struct {
	result triage.Classification
	calls  atomic.Int32
}

func (c *countingClassifier) Classify(_ context.Context, _, _ string) triage.Classification {
	c.calls.Add(1)
	return c.result
}

type fixedRouter struct {
	agent domain.Agent
}

func (r fixedRouter) Assign(_ context.Context, _, _, _ string) domain.Agent { return r.agent }

// promptModel answers according to which prompt it receives.
type promptModel struct {
	classification string
	vote           string
	resolution     string
}

func (m *promptModel) Complete(_ context.Context, req llm.Request) (string, error) {
	switch {
	case strings.Contains(req.Prompt, "Categorize the ticket"):
		return m.classification, nil
	case strings.Contains(req.Prompt, "Assign the ticket"):
		return m.vote, nil
	default:
		return m.resolution, nil
	}
}

func (m *promptModel) Name() string { return "prompt" }

// downStore fails every call.
type downStore struct{}

var errDown = errors.New("dial tcp: connection refused")

func (downStore) Header(context.Context) ([]string, error) { return nil, errDown }
func (downStore) Records(context.Context) ([]sheet.Record, error) { return nil, errDown }
func (downStore) ColumnValues(context.Context, int) ([]string, error) { return nil, errDown }
func (downStore) UpdateCell(context.Context, int, int, string) error { return errDown }
func (downStore) AppendRow(context.Context, []string) error { return errDown }
func (downStore) Ping(context.Context) error { return errDown }

type failingQueue struct{}

func (failingQueue) Push(context.Context, queue.PendingSave) error { return errors.New("redis: connection pool timeout") }
func (failingQueue) Peek(context.Context) (*queue.PendingSave, error) { return nil, nil }
func (failingQueue) Ack(context.Context) error { return nil }
func (failingQueue) UpdateHead(context.Context, queue.PendingSave) error { return nil }
func (failingQueue) Len(context.Context) (int64, error) { return 0, nil }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fastRetry() repository.RetryOptions {
	return repository.RetryOptions{Attempts: 2, Backoff: time.Millisecond}
}

func memoryRepo() repository.TicketRepository {
	return repository.NewTicketRepository(sheet.NewMemoryStore(repository.Columns), fastRetry(), nil)
}

func billingInput() SubmitInput {
	return SubmitInput{
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		CustomerAge:   36,
		Channel:       "email",
		Subject:       "Double charge",
		Description:   "I was charged twice on my invoice and need a refund",
	}
}

var ticketIDPattern = regexp.MustCompile(`^TK-[0-9A-F]{12}$`)

func TestSubmitBillingRefundScenario(t *testing.T) {
	model := &promptModel{
		classification: `{"category":"Billing","priority":"High","status":"Open"}`,
		vote:           "Engineering",
		resolution:     "  We have refunded the duplicate charge.  ",
	}
	store := sheet.NewMemoryStore(repository.Columns)
	repo := repository.NewTicketRepository(store, fastRetry(), nil)
	dispatcher := events.NewInMemoryDispatcher()
	var created []events.Event
	dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		created = append(created, e)
		return nil
	})
	metrics := observability.NewMetrics()

	svc := NewTicketService(TicketDependencies{
		Retriever:  &fakeRetriever{text: "Refunds are issued within 14 days."},
		Generator:  triage.NewGenerator(model, triage.GeneratorOptions{Retries: 1, Backoff: time.Millisecond}, nil, metrics),
		Classifier: triage.NewClassifier(model, nil, metrics),
		Router:     triage.NewRouter(model, nil, metrics),
		TicketRepo: repo,
		SaveQueue:  queue.NewMemoryQueue(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})

	result, err := svc.Submit(context.Background(), billingInput())
	require.NoError(t, err)
	assert.False(t, result.Deferred)

	ticket := result.Ticket
	assert.Regexp(t, ticketIDPattern, ticket.ID)
	assert.Equal(t, "Billing", result.Classification.Category)
	assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.AgentSales, ticket.AssignedAgent)
	assert.Equal(t, domain.ChannelEmail, ticket.Channel)
	assert.Equal(t, "We have refunded the duplicate charge.", ticket.Resolution)
	assert.False(t, ticket.FirstResponseTime.IsZero())

	stored, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket, stored)
	assert.Equal(t, 2, store.Len())

	require.Len(t, created, 1)
	payload, ok := created[0].Payload.(events.TicketCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, "Billing", payload.Category)
	assert.Equal(t, domain.AgentSales, payload.AssignedAgent)
}

func TestSubmitIndexUnavailableAbortsBeforeClassifier(t *testing.T) {
	retriever := &fakeRetriever{readyErr: domain.ErrIndexUnavailable}
	classifier := &countingClassifier{result: triage.FallbackClassification()}
	generator := &fakeGenerator{answer: "x"}
	store := sheet.NewMemoryStore(repository.Columns)

	svc := NewTicketService(TicketDependencies{
		Retriever:  retriever,
		Generator:  generator,
		Classifier: classifier,
		Router:     fixedRouter{agent: domain.AgentSales},
		TicketRepo: repository.NewTicketRepository(store, fastRetry(), nil),
	})

	_, err := svc.Submit(context.Background(), billingInput())
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INDEX_UNAVAILABLE", domainErr.Code)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)

	assert.Zero(t, classifier.calls.Load())
	assert.Zero(t, retriever.queries.Load())
	assert.Empty(t, generator.contexts)
	assert.Equal(t, 1, store.Len())
}

func TestSubmitAddsCustomerHistoryToContext(t *testing.T) {
	repo := memoryRepo()
	previous := &domain.Ticket{
		ID:            "TK-AAAAAAAAAAAA",
		CustomerEmail: "ada@example.com",
		Subject:       "Late order",
		Description:   "My order has not arrived",
		Status:        domain.TicketStatusClosed,
		Priority:      domain.TicketPriorityLow,
		Channel:       domain.ChannelWeb,
		AssignedAgent: domain.AgentSales,
	}
	require.NoError(t, repo.Save(context.Background(), previous))

	generator := &fakeGenerator{answer: "ok"}
	svc := NewTicketService(TicketDependencies{
		Retriever:  &fakeRetriever{text: "KB passage"},
		Generator:  generator,
		Classifier: &countingClassifier{result: triage.FallbackClassification()},
		Router:     fixedRouter{agent: domain.AgentGeneralSupport},
		TicketRepo: repo,
	})

	_, err := svc.Submit(context.Background(), billingInput())
	require.NoError(t, err)

	require.Len(t, generator.contexts, 1)
	assert.Equal(t,
		"KB passage\n\nPrevious Tickets:\nSubject: Late order, Description: My order has not arrived, Status: Closed",
		generator.contexts[0])
}

func TestSubmitGenerationFailureSavesNothing(t *testing.T) {
	store := sheet.NewMemoryStore(repository.Columns)
	svc := NewTicketService(TicketDependencies{
		Retriever:  &fakeRetriever{text: "kb"},
		Generator:  &fakeGenerator{err: fmt.Errorf("%w: 503 from provider", domain.ErrGeneration)},
		Classifier: &countingClassifier{result: triage.FallbackClassification()},
		Router:     fixedRouter{agent: domain.AgentSales},
		TicketRepo: repository.NewTicketRepository(store, fastRetry(), nil),
	})

	_, err := svc.Submit(context.Background(), billingInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.Equal(t, "GENERATION_FAILED", apperrors.ToDomainError(err).Code)
	assert.Equal(t, 1, store.Len())
}

func TestSubmitRequiresDescription(t *testing.T) {
	svc := NewTicketService(TicketDependencies{
		Retriever:  &fakeRetriever{},
		TicketRepo: memoryRepo(),
	})

	input := billingInput()
	input.Description = "   "
	_, err := svc.Submit(context.Background(), input)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestSubmitDefersSaveWhenStoreUnavailable(t *testing.T) {
	pending := queue.NewMemoryQueue()
	dispatcher := events.NewInMemoryDispatcher()
	var deferred []string
	dispatcher.Subscribe(events.EventTicketSaveDeferred, func(_ context.Context, e events.Event) error {
		deferred = append(deferred, e.TicketID)
		return nil
	})

	svc := NewTicketService(TicketDependencies{
		Retriever:  &fakeRetriever{text: "kb"},
		Generator:  &fakeGenerator{answer: "ok"},
		Classifier: &countingClassifier{result: triage.FallbackClassification()},
		Router:     fixedRouter{agent: domain.AgentSales},
		TicketRepo: repository.NewTicketRepository(downStore{}, fastRetry(), nil),
		SaveQueue:  pending,
		Dispatcher: dispatcher,
	})

	result, err := svc.Submit(context.Background(), billingInput())
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.Equal(t, []string{result.Ticket.ID}, deferred)

	item, err := pending.Peek(context.Background())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, result.Ticket.ID, item.Ticket.ID)
	assert.Contains(t, item.LastError, "connection refused")
}

func TestSubmitReturnsTicketWhenStoreAndQueueFail(t *testing.T) {
	svc := NewTicketService(TicketDependencies{
		Retriever:  &fakeRetriever{text: "kb"},
		Generator:  &fakeGenerator{answer: "ok"},
		Classifier: &countingClassifier{result: triage.FallbackClassification()},
		Router:     fixedRouter{agent: domain.AgentSales},
		TicketRepo: repository.NewTicketRepository(downStore{}, fastRetry(), nil),
		SaveQueue:  failingQueue{},
	})

	_, err := svc.Submit(context.Background(), billingInput())
	require.Error(t, err)

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "STORE_UNAVAILABLE", domainErr.Code)
	row, ok := domainErr.Details["ticket"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "I was charged twice on my invoice and need a refund", row[repository.ColDescription])
	assert.Equal(t, "Sales", row[repository.ColAssignedAgent])
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestCloseRecordsResolutionTime(t *testing.T) {
	clk := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 250*int(time.Millisecond), time.UTC)}
	repo := memoryRepo()
	dispatcher := events.NewInMemoryDispatcher()
	var closed []events.TicketClosedPayload
	dispatcher.Subscribe(events.EventTicketClosed, func(_ context.Context, e events.Event) error {
		closed = append(closed, e.Payload.(events.TicketClosedPayload))
		return nil
	})

	svc := NewTicketService(TicketDependencies{
		Retriever:  &fakeRetriever{text: "kb"},
		Generator:  &fakeGenerator{answer: "ok"},
		Classifier: &countingClassifier{result: triage.FallbackClassification()},
		Router:     fixedRouter{agent: domain.AgentEngineering},
		TicketRepo: repo,
		Dispatcher: dispatcher,
		Clock:      clk.Now,
	})
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, billingInput())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), submitted.Ticket.FirstResponseTime)

	clk.Advance(330*time.Second + 700*time.Millisecond)
	result, err := svc.Close(ctx, submitted.Ticket.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, result.Ticket.Status)
	assert.Equal(t, 330*time.Second, result.Ticket.TimeToResolution)
	assert.Equal(t, 4, result.Ticket.SatisfactionRating)

	stored, err := svc.Get(ctx, submitted.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 330*time.Second, stored.TimeToResolution)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)

	require.Len(t, closed, 1)
	assert.Equal(t, int64(330), closed[0].TimeToResolutionSeconds)

	_, err = svc.Close(ctx, submitted.Ticket.ID, 5)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestCloseValidatesInput(t *testing.T) {
	svc := NewTicketService(TicketDependencies{TicketRepo: memoryRepo()})

	_, err := svc.Close(context.Background(), "TK-000000000000", 6)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = svc.Close(context.Background(), "TK-000000000000", 3)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestListByEmailRequiresEmail(t *testing.T) {
	svc := NewTicketService(TicketDependencies{TicketRepo: memoryRepo()})

	_, err := svc.ListByEmail(context.Background(), " ")
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestBuildContext(t *testing.T) {
	assert.Equal(t, "kb", BuildContext("kb", nil))

	got := BuildContext("kb", []domain.Ticket{
		{Subject: "A", Description: "first", Status: domain.TicketStatusOpen},
		{Subject: "B", Description: "second", Status: domain.TicketStatusInProgress},
	})
	assert.Equal(t, "kb\n\nPrevious Tickets:\nSubject: A, Description: first, Status: Open\nSubject: B, Description: second, Status: In Progress", got)
}

func TestNewTicketIDFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewTicketID()
		assert.Regexp(t, ticketIDPattern, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
