package testutil

import (
	"time"

	"gambler/arena/domain/entities"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTestMatch creates an open match with sensible defaults
func CreateTestMatch(creatorID string, teamSize int, entryFee string) *entities.Match {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &entities.Match{
		ID:        uuid.New().String(),
		Status:    entities.MatchStatusOpen,
		TeamSize:  teamSize,
		EntryFee:  decimal.RequireFromString(entryFee),
		CreatorID: creatorID,
		Region:    "eu-west",
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
}

// CreateTestParticipant seats a user with their full stake locked
func CreateTestParticipant(match *entities.Match, userID string, side entities.TeamSide, joinedAt time.Time) *entities.Participant {
	return &entities.Participant{
		MatchID:      match.ID,
		UserID:       userID,
		Side:         side,
		LockedAmount: match.EntryFee,
		JoinedAt:     joinedAt.UTC().Truncate(time.Microsecond),
	}
}
