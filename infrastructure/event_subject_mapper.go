package infrastructure

import (
	"fmt"
	"strings"

	"gambler/arena/domain/events"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch e := event.(type) {
	case events.ChangeEvent:
		return m.ChangeSubject(e.MatchID, e.Table)
	case events.MatchStateChangeEvent:
		return fmt.Sprintf("matches.%s.state_changed", token(e.MatchID))
	case events.BalanceChangeEvent:
		return fmt.Sprintf("wallets.%s.balance_changed", token(e.UserID))
	default:
		// Fallback for unknown event types
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// ChangeSubject is the subject carrying changes of one table of one match
func (m *EventSubjectMapper) ChangeSubject(matchID string, table events.Table) string {
	return fmt.Sprintf("matches.%s.%s", token(matchID), table)
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"matches.>",
		"wallets.>",
	}
}

// token makes an id safe to use as a single subject token
func token(id string) string {
	if id == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(id)
}
