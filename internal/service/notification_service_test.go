package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
)

func TestNotificationServiceLogsLifecycleEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	notifications := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{
		EmailFrom:  "noreply@example.com",
		WebhookURL: "https://hooks.example.com/tickets",
	})
	notifications.RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventTicketCreated, "TK-1",
		events.TicketCreatedPayload{Category: "Billing", AssignedAgent: domain.AgentSales})))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventTicketSaveDeferred, "TK-1",
		events.TicketSaveDeferredPayload{Reason: "timeout"})))

	assert.Equal(t, 1, logs.FilterMessage("TicketCreated").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendEmailNotificationStub").Len())
	assert.Equal(t, 2, logs.FilterMessage("sendWebhookNotificationStub").Len())

	deferred := logs.FilterMessage("TicketSaveDeferred").All()
	require.Len(t, deferred, 1)
	assert.Equal(t, zapcore.WarnLevel, deferred[0].Level)
}

func TestNotificationStubsSkippedWithoutTargets(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketClosed, "TK-2",
		events.TicketClosedPayload{Rating: 5})))

	assert.Equal(t, 1, logs.FilterMessage("TicketClosed").Len())
	assert.Zero(t, logs.FilterMessage("sendWebhookNotificationStub").Len())
}
