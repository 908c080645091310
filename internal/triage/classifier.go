package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/llm"
	"github.com/spec-kit/ticket-triage/internal/observability"
)

// DefaultCategory is the category used when classification fails.
const DefaultCategory = "General"

var classificationKeys = []string{"category", "priority", "status"}

// Classification is the labeled result of classifying a ticket. Fallback is
// set when the model output could not be used.
type Classification struct {
	Category string                `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	Status   domain.TicketStatus   `json:"status"`
	Fallback bool                  `json:"fallback"`
}

// FallbackClassification is returned whenever the model output is unusable.
func FallbackClassification() Classification {
	return Classification{
		Category: DefaultCategory,
		Priority: domain.TicketPriorityMedium,
		Status:   domain.TicketStatusOpen,
		Fallback: true,
	}
}

// Classifier labels tickets with category, priority and status.
type Classifier struct {
	model   llm.Model
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewClassifier constructs a classifier.
func NewClassifier(model llm.Model, logger *zap.Logger, metrics *observability.Metrics) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{model: model, logger: logger, metrics: metrics}
}

// Classify never fails: transport errors and malformed output both yield
// FallbackClassification.
func (c *Classifier) Classify(ctx context.Context, subject, description string) Classification {
	start := time.Now()
	defer func() { c.metrics.ObserveStage("classify", time.Since(start)) }()

	raw, err := c.model.Complete(ctx, llm.Request{
		Prompt:      classificationPrompt(subject, description),
		Temperature: llm.Temperature(0),
		JSONMode:    true,
	})
	if err != nil {
		c.logger.Warn("classification request failed, using fallback", zap.Error(err))
		c.metrics.RecordFallback("classify", "transport")
		return FallbackClassification()
	}

	result, err := ParseClassification(raw)
	if err != nil {
		c.logger.Warn("classification output rejected, using fallback",
			zap.Error(err),
			zap.String("output", truncate(raw, 200)))
		c.metrics.RecordFallback("classify", "malformed")
		return FallbackClassification()
	}
	return result
}

// ParseClassification decodes a model answer. The payload must be a JSON
// object, optionally inside a markdown code fence, holding exactly the keys
// category, priority and status as strings.
func ParseClassification(raw string) (Classification, error) {
	payload := stripCodeFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", domain.ErrMalformedModelOutput, err)
	}
	if len(fields) != len(classificationKeys) {
		return Classification{}, fmt.Errorf("%w: expected %d keys, got %d",
			domain.ErrMalformedModelOutput, len(classificationKeys), len(fields))
	}

	values := make(map[string]string, len(classificationKeys))
	for _, key := range classificationKeys {
		rawValue, ok := fields[key]
		if !ok {
			return Classification{}, fmt.Errorf("%w: missing key %q", domain.ErrMalformedModelOutput, key)
		}
		var value string
		if err := json.Unmarshal(rawValue, &value); err != nil {
			return Classification{}, fmt.Errorf("%w: key %q is not a string", domain.ErrMalformedModelOutput, key)
		}
		values[key] = strings.TrimSpace(value)
	}

	if values["category"] == "" {
		return Classification{}, fmt.Errorf("%w: empty category", domain.ErrMalformedModelOutput)
	}
	priority, ok := domain.ParseTicketPriority(values["priority"])
	if !ok {
		return Classification{}, fmt.Errorf("%w: unknown priority %q", domain.ErrMalformedModelOutput, values["priority"])
	}
	status, ok := domain.ParseTicketStatus(values["status"])
	if !ok {
		return Classification{}, fmt.Errorf("%w: unknown status %q", domain.ErrMalformedModelOutput, values["status"])
	}

	return Classification{
		Category: values["category"],
		Priority: priority,
		Status:   status,
	}, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
