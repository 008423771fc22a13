package repository

import (
	"context"
	"fmt"

	"gambler/arena/database"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"
)

// LedgerEntryRepository implements escrow movement tracking
type LedgerEntryRepository struct {
	q queryable
}

// NewLedgerEntryRepository creates a new ledger entry repository
func NewLedgerEntryRepository(db *database.DB) *LedgerEntryRepository {
	return &LedgerEntryRepository{q: db.Pool}
}

// newLedgerEntryRepositoryWithTx creates a new ledger entry repository with a transaction
func newLedgerEntryRepositoryWithTx(tx queryable) interfaces.LedgerEntryRepository {
	return &LedgerEntryRepository{q: tx}
}

// Record creates a new ledger entry
func (r *LedgerEntryRepository) Record(ctx context.Context, entry *entities.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (
			user_id, match_id, entry_type, amount,
			available_before, available_after, locked_before, locked_after, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	err := r.q.QueryRow(ctx, query,
		entry.UserID,
		entry.MatchID,
		string(entry.EntryType),
		entry.Amount,
		entry.AvailableBefore,
		entry.AvailableAfter,
		entry.LockedBefore,
		entry.LockedAfter,
		metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record %s entry for %s: %w", entry.EntryType, entry.UserID, err)
	}
	return nil
}

// GetByMatch returns every entry recorded against a match in insertion order
func (r *LedgerEntryRepository) GetByMatch(ctx context.Context, matchID string) ([]*entities.LedgerEntry, error) {
	query := `
		SELECT id, user_id, match_id::text, entry_type, amount,
			available_before, available_after, locked_before, locked_after, metadata, created_at
		FROM ledger_entries
		WHERE match_id = $1
		ORDER BY id
	`
	return r.list(ctx, query, matchID)
}

// GetByUser returns the latest entries for a user
func (r *LedgerEntryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*entities.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, match_id::text, entry_type, amount,
			available_before, available_after, locked_before, locked_after, metadata, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

func (r *LedgerEntryRepository) list(ctx context.Context, query string, args ...any) ([]*entities.LedgerEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*entities.LedgerEntry
	for rows.Next() {
		var e entities.LedgerEntry
		var entryType string
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.MatchID,
			&entryType,
			&e.Amount,
			&e.AvailableBefore,
			&e.AvailableAfter,
			&e.LockedBefore,
			&e.LockedAfter,
			&e.Metadata,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.EntryType = entities.EntryType(entryType)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}
