package http

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-triage/internal/domain"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

func TestToDomainErrorMapsSentinels(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"index", fmt.Errorf("load: %w", domain.ErrIndexUnavailable), "INDEX_UNAVAILABLE", fiber.StatusServiceUnavailable},
		{"generation", fmt.Errorf("groq: %w", domain.ErrGeneration), "GENERATION_FAILED", fiber.StatusBadGateway},
		{"store", domain.ErrStoreUnavailable, "STORE_UNAVAILABLE", fiber.StatusServiceUnavailable},
		{"field too long", fmt.Errorf("%w: resolution", domain.ErrFieldTooLong), "VALIDATION_FAILED", fiber.StatusBadRequest},
		{"not found", domain.ErrTicketNotFound, "NOT_FOUND", fiber.StatusNotFound},
		{"closed", domain.ErrTicketClosed, "CONFLICT", fiber.StatusConflict},
		{"fiber", fiber.ErrMethodNotAllowed, "METHOD_NOT_ALLOWED", fiber.StatusMethodNotAllowed},
		{"deadline", fmt.Errorf("pipeline: %w", context.DeadlineExceeded), "TIMEOUT", fiber.StatusGatewayTimeout},
		{"other", errors.New("boom"), "INTERNAL_ERROR", fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := toDomainError(tt.err)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
		})
	}
}

func TestToDomainErrorKeepsDetails(t *testing.T) {
	err := fmt.Errorf("persist: %w", apperrors.NewStoreUnavailable(domain.ErrStoreUnavailable, map[string]any{"ticket": "TK-1"}))

	de := toDomainError(err)
	assert.Equal(t, "STORE_UNAVAILABLE", de.Code)
	assert.Equal(t, "TK-1", de.Details["ticket"])
}
