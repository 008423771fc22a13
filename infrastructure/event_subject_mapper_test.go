package infrastructure

import (
	"encoding/json"
	"testing"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSubjectMapper_MapEventToSubject(t *testing.T) {
	mapper := NewEventSubjectMapper()

	tests := []struct {
		name     string
		event    events.Event
		expected string
	}{
		{
			name:     "participant change",
			event:    events.ChangeEvent{MatchID: "3f2a", Table: events.TableParticipants},
			expected: "matches.3f2a.match_participants",
		},
		{
			name:     "result change",
			event:    events.ChangeEvent{MatchID: "3f2a", Table: events.TableResults},
			expected: "matches.3f2a.match_results",
		},
		{
			name:     "state change",
			event:    events.MatchStateChangeEvent{MatchID: "3f2a", NewStatus: entities.MatchStatusInProgress},
			expected: "matches.3f2a.state_changed",
		},
		{
			name:     "balance change with dotted user id",
			event:    events.BalanceChangeEvent{UserID: "user.one", Amount: decimal.NewFromInt(5)},
			expected: "wallets.user_one.balance_changed",
		},
		{
			name:     "missing match id",
			event:    events.ChangeEvent{Table: events.TableMatches},
			expected: "matches._.matches",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mapper.MapEventToSubject(tt.event))
		})
	}
}

func TestEventSubjectMapper_StreamCoversEverySubject(t *testing.T) {
	mapper := NewEventSubjectMapper()
	assert.Equal(t, []string{"matches.>", "wallets.>"}, mapper.GetAllSubjects())
}

func TestDecodeChangeEvent(t *testing.T) {
	change := events.ChangeEvent{
		MatchID:    "3f2a",
		Table:      events.TableResults,
		Op:         events.OpUpdate,
		Row:        json.RawMessage(`{"status":"disputed"}`),
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	envelope, err := NewEventEnvelope(change)
	require.NoError(t, err)
	assert.Equal(t, string(events.EventTypeMatchChange), envelope.EventType)
	assert.Equal(t, SourceService, envelope.SourceService)
	assert.NotEmpty(t, envelope.EventID)

	data, err := json.Marshal(envelope)
	require.NoError(t, err)

	decoded, err := DecodeChangeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, change.MatchID, decoded.MatchID)
	assert.Equal(t, change.Table, decoded.Table)
	assert.Equal(t, change.Op, decoded.Op)
	assert.JSONEq(t, string(change.Row), string(decoded.Row))
	assert.True(t, change.OccurredAt.Equal(decoded.OccurredAt))
}

func TestDecodeChangeEvent_RejectsOtherEvents(t *testing.T) {
	envelope, err := NewEventEnvelope(events.MatchStateChangeEvent{MatchID: "3f2a"})
	require.NoError(t, err)
	data, err := json.Marshal(envelope)
	require.NoError(t, err)

	_, err = DecodeChangeEvent(data)
	assert.Error(t, err)

	_, err = DecodeChangeEvent([]byte("not json"))
	assert.Error(t, err)
}
