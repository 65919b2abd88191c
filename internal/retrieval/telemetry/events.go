package telemetry

// EventType discriminates lines in the execution log.
type EventType string

const (
	EventExclusionSkip      EventType = "EXCLUSION_SKIP"
	EventScoutQuery         EventType = "SCOUT_QUERY"
	EventGatekeeperDecision EventType = "GATEKEEPER_DECISION"
	EventFetchResult        EventType = "FETCH_RESULT"
	EventPipelineTerminal   EventType = "PIPELINE_TERMINAL"
	EventBudgetWarning      EventType = "BUDGET_WARNING"
	EventValidationFailure  EventType = "validation_failure"
	EventFallbackTriggered  EventType = "fallback_triggered"
	EventAgentToolCall      EventType = "agent_tool_call"
)
