// Package triage holds the model-backed steps of ticket triage: drafting a
// resolution, classifying the ticket and routing it to an agent group.
package triage

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

const resolutionTemplate = `You are a helpful AI assistant for customer support.
Use the following context from the knowledge base to answer the question.

Context:
%s

Question:
%s

Answer in a concise and professional way:`

const classificationTemplate = `You are a customer support assistant.
Categorize the ticket based on subject and description.
Return only a JSON object with exactly these string keys: "category", "priority", "status".
priority must be one of: %s.
status must be one of: %s.

Ticket Subject: %s
Ticket Description: %s`

const routingTemplate = `You are an AI assistant for a customer support system.
Assign the ticket to the most suitable agent from this list ONLY:

%s

Ticket Category: %s
Ticket Description: %s

Previous Customer Tickets (if any):
%s

Return ONLY one of these exact agent names as plain text.`

func resolutionPrompt(description, context string) string {
	return fmt.Sprintf(resolutionTemplate, context, description)
}

func classificationPrompt(subject, description string) string {
	priorities := make([]string, 0, len(domain.TicketPriorities))
	for _, p := range domain.TicketPriorities {
		priorities = append(priorities, string(p))
	}
	statuses := make([]string, 0, len(domain.TicketStatuses))
	for _, s := range domain.TicketStatuses {
		statuses = append(statuses, string(s))
	}
	return fmt.Sprintf(classificationTemplate,
		strings.Join(priorities, ", "),
		strings.Join(statuses, ", "),
		subject, description)
}

func routingPrompt(category, description, context string) string {
	var agents strings.Builder
	for i, a := range domain.Agents {
		if i > 0 {
			agents.WriteByte('\n')
		}
		agents.WriteString("- ")
		agents.WriteString(string(a))
	}
	if strings.TrimSpace(context) == "" {
		context = "None"
	}
	return fmt.Sprintf(routingTemplate, agents.String(), category, description, context)
}
