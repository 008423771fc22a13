package interfaces

import (
	"context"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/events"

	"github.com/shopspring/decimal"
)

// MatchRepository defines the interface for match data access
type MatchRepository interface {
	// Create inserts a new match
	Create(ctx context.Context, match *entities.Match) error

	// GetByID retrieves a match by id, nil when it does not exist
	GetByID(ctx context.Context, id string) (*entities.Match, error)

	// GetByIDForUpdate retrieves a match and holds a row lock until the transaction ends
	GetByIDForUpdate(ctx context.Context, id string) (*entities.Match, error)

	// GetSnapshot reads a match with its participants and result, nil when it does not exist
	GetSnapshot(ctx context.Context, id string) (*entities.MatchSnapshot, error)

	// Update persists status and timestamps of a match
	Update(ctx context.Context, match *entities.Match) error

	// GetExpiredOpen returns open matches whose expiry time has passed
	GetExpiredOpen(ctx context.Context, now time.Time) ([]*entities.Match, error)

	// GetActiveMatchIDForUser returns the id of the user's non-terminal match, nil when none
	GetActiveMatchIDForUser(ctx context.Context, userID string) (*string, error)

	// ListByStatus returns matches in any of the given statuses, newest first
	ListByStatus(ctx context.Context, statuses []entities.MatchStatus, limit int) ([]*entities.Match, error)
}

// ParticipantRepository defines the interface for match participant data access
type ParticipantRepository interface {
	// Add seats a participant
	Add(ctx context.Context, participant *entities.Participant) error

	// Remove deletes a participant from a match
	Remove(ctx context.Context, matchID, userID string) error

	// Update persists ready flag, result choice and locked amount
	Update(ctx context.Context, participant *entities.Participant) error

	// GetByMatch returns participants ordered by join time
	GetByMatch(ctx context.Context, matchID string) ([]*entities.Participant, error)
}

// ResultRepository defines the interface for match result data access
type ResultRepository interface {
	// Upsert creates or replaces the single result row of a match
	Upsert(ctx context.Context, result *entities.Result) error

	// GetByMatch returns the result, nil when resolution has not begun
	GetByMatch(ctx context.Context, matchID string) (*entities.Result, error)
}

// WalletRepository defines the interface for wallet data access
type WalletRepository interface {
	// GetOrCreate returns the wallet, creating it with a starting balance on first use.
	// created reports whether this call inserted the wallet.
	GetOrCreate(ctx context.Context, userID string, startingBalance decimal.Decimal) (wallet *entities.Wallet, created bool, err error)

	// GetForUpdate returns the wallet and holds a row lock, nil when it does not exist
	GetForUpdate(ctx context.Context, userID string) (*entities.Wallet, error)

	// Update persists both balances
	Update(ctx context.Context, wallet *entities.Wallet) error
}

// LedgerEntryRepository defines the interface for escrow movement tracking
type LedgerEntryRepository interface {
	// Record creates a new ledger entry
	Record(ctx context.Context, entry *entities.LedgerEntry) error

	// GetByMatch returns every entry recorded against a match
	GetByMatch(ctx context.Context, matchID string) ([]*entities.LedgerEntry, error)

	// GetByUser returns the latest entries for a user
	GetByUser(ctx context.Context, userID string, limit int) ([]*entities.LedgerEntry, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalPublisher holds events until the surrounding transaction commits
type TransactionalPublisher interface {
	EventPublisher
	Flush(ctx context.Context) error
	Discard()
}
