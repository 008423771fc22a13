package lifecycle_test

import (
	"testing"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/lifecycle"
	"gambler/arena/domain/testhelpers"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	team := func() *testhelpers.SnapshotBuilder {
		return testhelpers.NewSnapshot("m1", "a1", 2, "5").
			With("a2", entities.SideA).
			With("b1", entities.SideB).
			With("b2", entities.SideB).
			Status(entities.MatchStatusInProgress)
	}

	tests := []struct {
		name     string
		snapshot *entities.MatchSnapshot
		want     lifecycle.Verdict
	}{
		{
			name:     "nobody declared",
			snapshot: team().Build(),
			want:     lifecycle.Verdict{Outcome: lifecycle.OutcomePending},
		},
		{
			name:     "one side declared",
			snapshot: team().Declared("a1", entities.ResultWin).Build(),
			want:     lifecycle.Verdict{Outcome: lifecycle.OutcomePending},
		},
		{
			name:     "sides agree A won",
			snapshot: team().Declared("a1", entities.ResultWin).Declared("b2", entities.ResultLoss).Build(),
			want:     lifecycle.Verdict{Outcome: lifecycle.OutcomeConcordant, Winner: entities.SideA},
		},
		{
			name:     "sides agree B won",
			snapshot: team().Declared("a2", entities.ResultLoss).Declared("b1", entities.ResultWin).Build(),
			want:     lifecycle.Verdict{Outcome: lifecycle.OutcomeConcordant, Winner: entities.SideB},
		},
		{
			name:     "both claim the win",
			snapshot: team().Declared("a1", entities.ResultWin).Declared("b1", entities.ResultWin).Build(),
			want:     lifecycle.Verdict{Outcome: lifecycle.OutcomeDiscordant},
		},
		{
			name:     "both claim the loss",
			snapshot: team().Declared("a1", entities.ResultLoss).Declared("b1", entities.ResultLoss).Build(),
			want:     lifecycle.Verdict{Outcome: lifecycle.OutcomeDiscordant},
		},
		{
			name:     "teammates disagree",
			snapshot: team().Declared("a1", entities.ResultWin).Declared("a2", entities.ResultLoss).Build(),
			want:     lifecycle.Verdict{Outcome: lifecycle.OutcomeDiscordant},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, lifecycle.Resolve(tt.snapshot.Participants))
		})
	}
}

func TestAfterTransitions(t *testing.T) {
	t.Parallel()

	t.Run("join fills last slot", func(t *testing.T) {
		s := testhelpers.NewSnapshot("m1", "c", 1, "5").With("o", entities.SideB).Build()
		assert.Equal(t, entities.MatchStatusReadyCheck, lifecycle.AfterJoin(s))
	})

	t.Run("join leaves seats open", func(t *testing.T) {
		s := testhelpers.NewSnapshot("m1", "c", 2, "5").With("o", entities.SideB).Build()
		assert.Equal(t, entities.MatchStatusOpen, lifecycle.AfterJoin(s))
	})

	t.Run("partial ready", func(t *testing.T) {
		s := testhelpers.NewSnapshot("m1", "c", 1, "5").With("o", entities.SideB).
			Status(entities.MatchStatusReadyCheck).Ready("c").Build()
		assert.Equal(t, entities.MatchStatusReadyCheck, lifecycle.AfterReady(s))
	})

	t.Run("everyone ready", func(t *testing.T) {
		s := testhelpers.NewSnapshot("m1", "c", 1, "5").With("o", entities.SideB).
			Status(entities.MatchStatusReadyCheck).AllReady().Build()
		assert.Equal(t, entities.MatchStatusInProgress, lifecycle.AfterReady(s))
	})

	t.Run("declaration awaiting opponent", func(t *testing.T) {
		s := testhelpers.NewSnapshot("m1", "c", 1, "5").With("o", entities.SideB).
			Status(entities.MatchStatusInProgress).Declared("c", entities.ResultWin).Build()
		status, v := lifecycle.AfterDeclare(s)
		assert.Equal(t, entities.MatchStatusResultPending, status)
		assert.Equal(t, lifecycle.OutcomePending, v.Outcome)
	})

	t.Run("concordant declaration completes", func(t *testing.T) {
		s := testhelpers.NewSnapshot("m1", "c", 1, "5").With("o", entities.SideB).
			Status(entities.MatchStatusResultPending).
			Declared("c", entities.ResultWin).Declared("o", entities.ResultLoss).Build()
		status, v := lifecycle.AfterDeclare(s)
		assert.Equal(t, entities.MatchStatusCompleted, status)
		assert.Equal(t, entities.SideA, v.Winner)
	})

	t.Run("discordant declaration disputes", func(t *testing.T) {
		s := testhelpers.NewSnapshot("m1", "c", 1, "5").With("o", entities.SideB).
			Status(entities.MatchStatusResultPending).
			Declared("c", entities.ResultWin).Declared("o", entities.ResultWin).Build()
		status, _ := lifecycle.AfterDeclare(s)
		assert.Equal(t, entities.MatchStatusDisputed, status)
	})
}
