package domain

import "strings"

// Agent is the support group a ticket is routed to.
type Agent string

const (
	AgentSales          Agent = "Sales"
	AgentMarketing      Agent = "Marketing"
	AgentEngineering    Agent = "Engineering"
	AgentGeneralSupport Agent = "General Support"
)

// Agents lists the groups in canonical order. NormalizeAgent and the keyword
// tie-break both depend on this order.
var Agents = []Agent{AgentSales, AgentMarketing, AgentEngineering, AgentGeneralSupport}

// NormalizeAgent maps free text onto an agent group. The first canonical name
// contained in raw (case-insensitive) wins; anything else is General Support.
func NormalizeAgent(raw string) Agent {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return AgentGeneralSupport
	}
	for _, agent := range Agents {
		if strings.Contains(lowered, strings.ToLower(string(agent))) {
			return agent
		}
	}
	return AgentGeneralSupport
}

// Valid reports whether a is one of the four groups.
func (a Agent) Valid() bool {
	for _, agent := range Agents {
		if agent == a {
			return true
		}
	}
	return false
}
