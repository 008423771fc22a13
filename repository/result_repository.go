package repository

import (
	"context"
	"errors"
	"fmt"

	"gambler/arena/database"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ResultRepository implements match result data access
type ResultRepository struct {
	q queryable
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *database.DB) *ResultRepository {
	return &ResultRepository{q: db.Pool}
}

// newResultRepositoryWithTx creates a new result repository with a transaction
func newResultRepositoryWithTx(tx queryable) interfaces.ResultRepository {
	return &ResultRepository{q: tx}
}

// Upsert creates or replaces the single result row of a match
func (r *ResultRepository) Upsert(ctx context.Context, result *entities.Result) error {
	query := `
		INSERT INTO match_results (
			match_id, winner_user_id, winner_side, status, dispute_reason, admin_notes,
			winner_confirmed, loser_confirmed, prize, platform_fee, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (match_id) DO UPDATE SET
			winner_user_id = EXCLUDED.winner_user_id,
			winner_side = EXCLUDED.winner_side,
			status = EXCLUDED.status,
			dispute_reason = EXCLUDED.dispute_reason,
			admin_notes = EXCLUDED.admin_notes,
			winner_confirmed = EXCLUDED.winner_confirmed,
			loser_confirmed = EXCLUDED.loser_confirmed,
			prize = EXCLUDED.prize,
			platform_fee = EXCLUDED.platform_fee,
			updated_at = EXCLUDED.updated_at
	`

	var side *string
	if result.WinnerSide != nil {
		s := string(*result.WinnerSide)
		side = &s
	}

	_, err := r.q.Exec(ctx, query,
		result.MatchID,
		result.WinnerUserID,
		side,
		string(result.Status),
		result.DisputeReason,
		result.AdminNotes,
		result.WinnerConfirmed,
		result.LoserConfirmed,
		nullDecimal(result.Prize),
		nullDecimal(result.PlatformFee),
		result.CreatedAt,
		result.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert result for match %s: %w", result.MatchID, err)
	}
	return nil
}

// GetByMatch returns the result, nil when resolution has not begun
func (r *ResultRepository) GetByMatch(ctx context.Context, matchID string) (*entities.Result, error) {
	query := `
		SELECT match_id::text, winner_user_id, winner_side, status, dispute_reason, admin_notes,
			winner_confirmed, loser_confirmed, prize, platform_fee, created_at, updated_at
		FROM match_results
		WHERE match_id = $1
	`

	var result entities.Result
	var side *string
	var status string
	var prize, fee decimal.NullDecimal
	err := r.q.QueryRow(ctx, query, matchID).Scan(
		&result.MatchID,
		&result.WinnerUserID,
		&side,
		&status,
		&result.DisputeReason,
		&result.AdminNotes,
		&result.WinnerConfirmed,
		&result.LoserConfirmed,
		&prize,
		&fee,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result for match %s: %w", matchID, err)
	}

	result.Status = entities.ResultStatus(status)
	if side != nil {
		s := entities.TeamSide(*side)
		result.WinnerSide = &s
	}
	if prize.Valid {
		result.Prize = &prize.Decimal
	}
	if fee.Valid {
		result.PlatformFee = &fee.Decimal
	}
	return &result, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
