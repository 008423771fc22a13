package testhelpers

import (
	"time"

	"gambler/arena/domain/entities"

	"github.com/shopspring/decimal"
)

// FixtureNow is the fixed clock used by snapshot fixtures
var FixtureNow = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

// SnapshotBuilder assembles match snapshots for tests
type SnapshotBuilder struct {
	snapshot *entities.MatchSnapshot
	joined   int
}

// NewSnapshot starts a snapshot of an open match created by creatorID on side A
func NewSnapshot(matchID, creatorID string, teamSize int, entryFee string) *SnapshotBuilder {
	fee := decimal.RequireFromString(entryFee)
	b := &SnapshotBuilder{
		snapshot: &entities.MatchSnapshot{
			Match: &entities.Match{
				ID:        matchID,
				Status:    entities.MatchStatusOpen,
				TeamSize:  teamSize,
				EntryFee:  fee,
				CreatorID: creatorID,
				Region:    "eu-west",
				CreatedAt: FixtureNow.Add(-time.Minute),
				ExpiresAt: FixtureNow.Add(30 * time.Minute),
			},
			FetchedAt: FixtureNow,
		},
	}
	return b.With(creatorID, entities.SideA)
}

// With seats a user on a side, locking the entry fee
func (b *SnapshotBuilder) With(userID string, side entities.TeamSide) *SnapshotBuilder {
	b.joined++
	b.snapshot.Participants = append(b.snapshot.Participants, &entities.Participant{
		MatchID:      b.snapshot.Match.ID,
		UserID:       userID,
		Side:         side,
		LockedAmount: b.snapshot.Match.EntryFee,
		JoinedAt:     b.snapshot.Match.CreatedAt.Add(time.Duration(b.joined) * time.Second),
	})
	return b
}

// Status sets the match status
func (b *SnapshotBuilder) Status(status entities.MatchStatus) *SnapshotBuilder {
	b.snapshot.Match.Status = status
	return b
}

// Private marks the match as private
func (b *SnapshotBuilder) Private() *SnapshotBuilder {
	b.snapshot.Match.IsPrivate = true
	return b
}

// ExpiresAt overrides the expiry time
func (b *SnapshotBuilder) ExpiresAt(t time.Time) *SnapshotBuilder {
	b.snapshot.Match.ExpiresAt = t
	return b
}

// Ready marks users as ready
func (b *SnapshotBuilder) Ready(userIDs ...string) *SnapshotBuilder {
	for _, id := range userIDs {
		if p := b.snapshot.Participant(id); p != nil {
			p.Ready = true
		}
	}
	return b
}

// AllReady marks every participant ready
func (b *SnapshotBuilder) AllReady() *SnapshotBuilder {
	for _, p := range b.snapshot.Participants {
		p.Ready = true
	}
	return b
}

// Declared records a result choice for a user
func (b *SnapshotBuilder) Declared(userID string, choice entities.ResultChoice) *SnapshotBuilder {
	if p := b.snapshot.Participant(userID); p != nil {
		c := choice
		p.ResultChoice = &c
	}
	return b
}

// Build returns the snapshot
func (b *SnapshotBuilder) Build() *entities.MatchSnapshot {
	return b.snapshot
}

// Decimal parses a decimal literal for tests
func Decimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecimalPtr parses a decimal literal and returns its address
func DecimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
