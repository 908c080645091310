package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/llm"
	"github.com/spec-kit/ticket-triage/internal/observability"
)

const resolutionTemperature = 0.4

// MaxGenerationRetries caps GeneratorOptions.Retries: a draft is retried at
// most once.
const MaxGenerationRetries = 1

// GeneratorOptions tunes retries of resolution drafting.
type GeneratorOptions struct {
	Retries int
	Backoff time.Duration
}

// Generator drafts a resolution for a ticket from retrieved context.
type Generator struct {
	model   llm.Model
	retries uint64
	backoff time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewGenerator constructs a generator.
func NewGenerator(model llm.Model, opts GeneratorOptions, logger *zap.Logger, metrics *observability.Metrics) *Generator {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Retries > MaxGenerationRetries {
		opts.Retries = MaxGenerationRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		model:   model,
		retries: uint64(opts.Retries),
		backoff: opts.Backoff,
		logger:  logger,
		metrics: metrics,
	}
}

// Generate answers description using kbContext. Provider failures are retried
// and then surface wrapped in domain.ErrGeneration.
func (g *Generator) Generate(ctx context.Context, description, kbContext string) (string, error) {
	start := time.Now()
	defer func() { g.metrics.ObserveStage("generate", time.Since(start)) }()

	req := llm.Request{
		Prompt:      resolutionPrompt(description, kbContext),
		Temperature: llm.Temperature(resolutionTemperature),
	}

	attempt := 0
	backoff := retry.WithMaxRetries(g.retries, retry.NewExponential(g.backoff))
	answer, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (string, error) {
		attempt++
		out, err := g.model.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			g.logger.Warn("resolution attempt failed",
				zap.Int("attempt", attempt),
				zap.String("model", g.model.Name()),
				zap.Error(err))
			return "", retry.RetryableError(err)
		}
		return out, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	return strings.TrimSpace(answer), nil
}
