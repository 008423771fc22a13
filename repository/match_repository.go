package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gambler/arena/database"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const matchColumns = `
	id::text, status, team_size, entry_fee, creator_id, region, is_private,
	created_at, expires_at, started_at, finished_at
`

// MatchRepository implements match data access
type MatchRepository struct {
	q queryable
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *database.DB) *MatchRepository {
	return &MatchRepository{q: db.Pool}
}

// newMatchRepositoryWithTx creates a new match repository with a transaction
func newMatchRepositoryWithTx(tx queryable) interfaces.MatchRepository {
	return &MatchRepository{q: tx}
}

// Create inserts a new match
func (r *MatchRepository) Create(ctx context.Context, match *entities.Match) error {
	query := `
		INSERT INTO matches (
			id, status, team_size, entry_fee, creator_id, region, is_private,
			created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		match.ID,
		string(match.Status),
		match.TeamSize,
		match.EntryFee,
		match.CreatorID,
		match.Region,
		match.IsPrivate,
		match.CreatedAt,
		match.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

// GetByID retrieves a match by id
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*entities.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a match and locks its row
func (r *MatchRepository) GetByIDForUpdate(ctx context.Context, id string) (*entities.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *MatchRepository) getOne(ctx context.Context, query, id string) (*entities.Match, error) {
	if !isUUID(id) {
		return nil, nil
	}
	match, err := scanMatch(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	return match, nil
}

// GetSnapshot reads a match with its participants and result
func (r *MatchRepository) GetSnapshot(ctx context.Context, id string) (*entities.MatchSnapshot, error) {
	match, err := r.GetByID(ctx, id)
	if err != nil || match == nil {
		return nil, err
	}

	participants, err := (&ParticipantRepository{q: r.q}).GetByMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := (&ResultRepository{q: r.q}).GetByMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	return &entities.MatchSnapshot{
		Match:        match,
		Participants: participants,
		Result:       result,
	}, nil
}

// Update persists status and timestamps of a match
func (r *MatchRepository) Update(ctx context.Context, match *entities.Match) error {
	query := `
		UPDATE matches
		SET status = $2, started_at = $3, finished_at = $4, expires_at = $5
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		match.ID,
		string(match.Status),
		match.StartedAt,
		match.FinishedAt,
		match.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update match %s: %w", match.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match %s: %w", match.ID, entities.ErrMatchNotFound)
	}
	return nil
}

// GetExpiredOpen returns open matches whose expiry time has passed
func (r *MatchRepository) GetExpiredOpen(ctx context.Context, now time.Time) ([]*entities.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status = 'open' AND expires_at < $1
		ORDER BY expires_at
	`
	return r.list(ctx, query, now)
}

// GetActiveMatchIDForUser returns the id of the user's non-terminal match
func (r *MatchRepository) GetActiveMatchIDForUser(ctx context.Context, userID string) (*string, error) {
	query := `
		SELECT m.id::text
		FROM matches m
		JOIN match_participants mp ON mp.match_id = m.id
		WHERE mp.user_id = $1
		  AND m.status NOT IN ('completed', 'admin_resolved', 'canceled', 'expired')
		ORDER BY m.created_at DESC
		LIMIT 1
	`

	var id string
	err := r.q.QueryRow(ctx, query, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active match for %s: %w", userID, err)
	}
	return &id, nil
}

// ListByStatus returns matches in any of the given statuses, newest first
func (r *MatchRepository) ListByStatus(ctx context.Context, statuses []entities.MatchStatus, limit int) ([]*entities.Match, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, names, limit)
}

func (r *MatchRepository) list(ctx context.Context, query string, args ...any) ([]*entities.Match, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*entities.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

func scanMatch(row pgx.Row) (*entities.Match, error) {
	var match entities.Match
	var status string
	err := row.Scan(
		&match.ID,
		&status,
		&match.TeamSize,
		&match.EntryFee,
		&match.CreatorID,
		&match.Region,
		&match.IsPrivate,
		&match.CreatedAt,
		&match.ExpiresAt,
		&match.StartedAt,
		&match.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	match.Status = entities.MatchStatus(status)
	return &match, nil
}

// isUUID reports whether id can name a stored match
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
