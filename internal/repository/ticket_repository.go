package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/sheet"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Save upserts t keyed on its id.
	Save(ctx context.Context, t *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// ListByEmail returns prior tickets of a customer, matched exactly.
	ListByEmail(ctx context.Context, email string) ([]domain.Ticket, error)
	List(ctx context.Context) ([]domain.Ticket, error)
	Ping(ctx context.Context) error
}

// RetryOptions bounds store retries.
type RetryOptions struct {
	Attempts int
	Backoff  time.Duration
}

type ticketRepository struct {
	store  sheet.RowStore
	retry  RetryOptions
	logger *zap.Logger
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(store sheet.RowStore, opts RetryOptions, logger *zap.Logger) TicketRepository {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ticketRepository{store: store, retry: opts, logger: logger}
}

func (r *ticketRepository) backoff() retry.Backoff {
	return retry.WithMaxRetries(uint64(r.retry.Attempts-1), retry.NewExponential(r.retry.Backoff))
}

// withRetry runs fn under the retry policy and maps exhausted failures onto
// domain.ErrStoreUnavailable.
func (r *ticketRepository) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || permanent(err) {
			return err
		}
		r.logger.Warn("row store call failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, sheet.ErrCellTooLong) {
		return fmt.Errorf("%w: %s: %w", domain.ErrFieldTooLong, op, err)
	}
	if permanent(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// permanent errors are not retried and do not mean the store is down.
func permanent(err error) bool {
	return errors.Is(err, sheet.ErrInvalidCoordinate) || errors.Is(err, sheet.ErrCellTooLong)
}

func (r *ticketRepository) Save(ctx context.Context, t *domain.Ticket) error {
	if t == nil || t.ID == "" {
		return errors.New("ticket id is required")
	}
	row := EncodeTicket(t)
	if err := sheet.CheckCellLengths(r.store, row...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFieldTooLong, err)
	}
	return r.withRetry(ctx, "save", func(ctx context.Context) error {
		return r.upsert(ctx, t.ID, row)
	})
}

func (r *ticketRepository) upsert(ctx context.Context, id string, row []string) error {
	ids, err := r.store.ColumnValues(ctx, 1)
	if err != nil {
		return err
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] != id {
			continue
		}
		rowIndex := i + 1
		for col, value := range row {
			if err := r.store.UpdateCell(ctx, rowIndex, col+1, value); err != nil {
				return err
			}
		}
		return nil
	}
	return r.store.AppendRow(ctx, row)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	tickets, err := r.load(ctx, func(rec sheet.Record) bool { return rec[ColTicketID] == id })
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, domain.ErrTicketNotFound
	}
	return &tickets[0], nil
}

func (r *ticketRepository) ListByEmail(ctx context.Context, email string) ([]domain.Ticket, error) {
	if email == "" {
		return nil, nil
	}
	return r.load(ctx, func(rec sheet.Record) bool { return rec[ColCustomerEmail] == email })
}

func (r *ticketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	return r.load(ctx, nil)
}

func (r *ticketRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// load reads all records once and decodes the ones accepted by match.
// Undecodable rows are skipped with a warning.
func (r *ticketRepository) load(ctx context.Context, match func(sheet.Record) bool) ([]domain.Ticket, error) {
	var records []sheet.Record
	err := r.withRetry(ctx, "read", func(ctx context.Context) error {
		var err error
		records, err = r.store.Records(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	tickets := make([]domain.Ticket, 0, len(records))
	for _, rec := range records {
		if match != nil && !match(rec) {
			continue
		}
		t, err := DecodeTicket(rec)
		if err != nil {
			r.logger.Warn("skipping undecodable row", zap.Error(err))
			continue
		}
		tickets = append(tickets, *t)
	}
	return tickets, nil
}
