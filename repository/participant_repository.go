package repository

import (
	"context"
	"fmt"

	"gambler/arena/database"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// ParticipantRepository implements match participant data access
type ParticipantRepository struct {
	q queryable
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *database.DB) *ParticipantRepository {
	return &ParticipantRepository{q: db.Pool}
}

// newParticipantRepositoryWithTx creates a new participant repository with a transaction
func newParticipantRepositoryWithTx(tx queryable) interfaces.ParticipantRepository {
	return &ParticipantRepository{q: tx}
}

// Add seats a participant
func (r *ParticipantRepository) Add(ctx context.Context, p *entities.Participant) error {
	query := `
		INSERT INTO match_participants (
			match_id, user_id, side, team_id, ready, result_choice, locked_amount, joined_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		p.MatchID,
		p.UserID,
		string(p.Side),
		p.TeamID,
		p.Ready,
		choiceString(p.ResultChoice),
		p.LockedAmount,
		p.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add participant %s to match %s: %w", p.UserID, p.MatchID, err)
	}
	return nil
}

// Remove deletes a participant from a match
func (r *ParticipantRepository) Remove(ctx context.Context, matchID, userID string) error {
	query := `DELETE FROM match_participants WHERE match_id = $1 AND user_id = $2`

	tag, err := r.q.Exec(ctx, query, matchID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("participant %s not found in match %s", userID, matchID)
	}
	return nil
}

// Update persists ready flag, result choice and locked amount
func (r *ParticipantRepository) Update(ctx context.Context, p *entities.Participant) error {
	query := `
		UPDATE match_participants
		SET ready = $3, result_choice = $4, locked_amount = $5, team_id = $6
		WHERE match_id = $1 AND user_id = $2
	`

	tag, err := r.q.Exec(ctx, query,
		p.MatchID,
		p.UserID,
		p.Ready,
		choiceString(p.ResultChoice),
		p.LockedAmount,
		p.TeamID,
	)
	if err != nil {
		return fmt.Errorf("failed to update participant %s: %w", p.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("participant %s not found in match %s", p.UserID, p.MatchID)
	}
	return nil
}

// GetByMatch returns participants ordered by join time
func (r *ParticipantRepository) GetByMatch(ctx context.Context, matchID string) ([]*entities.Participant, error) {
	query := `
		SELECT match_id::text, user_id, side, team_id, ready, result_choice, locked_amount, joined_at
		FROM match_participants
		WHERE match_id = $1
		ORDER BY joined_at, user_id
	`

	rows, err := r.q.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []*entities.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return participants, nil
}

func scanParticipant(row pgx.Row) (*entities.Participant, error) {
	var p entities.Participant
	var side string
	var choice *string
	err := row.Scan(
		&p.MatchID,
		&p.UserID,
		&side,
		&p.TeamID,
		&p.Ready,
		&choice,
		&p.LockedAmount,
		&p.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Side = entities.TeamSide(side)
	if choice != nil {
		c := entities.ResultChoice(*choice)
		p.ResultChoice = &c
	}
	return &p, nil
}

func choiceString(c *entities.ResultChoice) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}
