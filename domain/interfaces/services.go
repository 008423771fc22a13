package interfaces

import (
	"context"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/lifecycle"

	"github.com/shopspring/decimal"
)

// MatchService defines the authoritative match operations of the ledger
type MatchService interface {
	// CreateMatch opens a match and locks the creator's entry fee
	CreateMatch(ctx context.Context, actor lifecycle.Actor, params entities.CreateMatchParams) (entities.ActionResult, error)

	// JoinMatch seats the actor and locks their entry fee
	JoinMatch(ctx context.Context, actor lifecycle.Actor, matchID string, opts entities.JoinOptions) (entities.ActionResult, error)

	// LeaveMatch removes a non-creator during the ready check and cancels the match
	LeaveMatch(ctx context.Context, actor lifecycle.Actor, matchID string) (entities.ActionResult, error)

	// CancelMatch cancels an open match before any opponent joins
	CancelMatch(ctx context.Context, actor lifecycle.Actor, matchID string) (entities.ActionResult, error)

	// SetReady marks the actor ready and starts the match once everyone is
	SetReady(ctx context.Context, actor lifecycle.Actor, matchID string) (entities.ActionResult, error)

	// DeclareResult records the actor's result for their side
	DeclareResult(ctx context.Context, actor lifecycle.Actor, matchID string, choice entities.ResultChoice) (entities.ActionResult, error)

	// RaiseDispute freezes the match for admin review
	RaiseDispute(ctx context.Context, actor lifecycle.Actor, matchID string, reason string) (entities.ActionResult, error)

	// AdminResolve settles a disputed match by award or refund
	AdminResolve(ctx context.Context, actor lifecycle.Actor, matchID string, action entities.AdminAction, notes *string) (entities.ActionResult, error)

	// LockFunds locks an additional amount for a participant of a match
	LockFunds(ctx context.Context, actor lifecycle.Actor, matchID string, amount decimal.Decimal) (entities.ActionResult, error)

	// ReadMatch returns the full snapshot, entities.ErrAccessDenied when the actor may not see it
	ReadMatch(ctx context.Context, actor lifecycle.Actor, matchID string) (*entities.MatchSnapshot, error)

	// ReadMatchPublic returns the reduced snapshot anyone may see
	ReadMatchPublic(ctx context.Context, matchID string) (*entities.PublicMatchSnapshot, error)

	// ExpireMatches expires every open match past its expiry time
	ExpireMatches(ctx context.Context, now time.Time) (int, error)

	// ExpiredMatchIDs lists open matches whose expiry time has passed at now
	ExpiredMatchIDs(ctx context.Context, now time.Time) ([]string, error)

	// ExpireMatch expires one match if it is still due at now, refunding every seat
	ExpireMatch(ctx context.Context, matchID string, now time.Time) (bool, error)

	// GetWallet returns the actor's wallet, creating it on first use
	GetWallet(ctx context.Context, actor lifecycle.Actor) (*entities.Wallet, error)

	// GetWalletHistory returns the actor's latest escrow movements, newest first
	GetWalletHistory(ctx context.Context, actor lifecycle.Actor, limit int) ([]*entities.LedgerEntry, error)

	// ListMatches returns matches in the given statuses; private matches are listed to admins only
	ListMatches(ctx context.Context, actor lifecycle.Actor, statuses []entities.MatchStatus, limit int) ([]*entities.Match, error)

	// GetMatchLedger returns every escrow movement of a match, entities.ErrAccessDenied for non-admins
	GetMatchLedger(ctx context.Context, actor lifecycle.Actor, matchID string) ([]*entities.LedgerEntry, error)
}

// EscrowService defines the balance moves implied by match transitions
type EscrowService interface {
	// Lock moves an amount from available to locked for a user
	Lock(ctx context.Context, userID, matchID string, amount decimal.Decimal) (*entities.Wallet, error)

	// Refund returns a participant's locked stake to their available balance
	Refund(ctx context.Context, participant *entities.Participant) error

	// RefundAll refunds every participant of a snapshot
	RefundAll(ctx context.Context, snapshot *entities.MatchSnapshot) error

	// Settle releases all stakes, pays the winners and records the platform fee
	Settle(ctx context.Context, snapshot *entities.MatchSnapshot, winner entities.TeamSide) (entities.PrizeSplit, error)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	MatchRepository() MatchRepository
	ParticipantRepository() ParticipantRepository
	ResultRepository() ResultRepository
	WalletRepository() WalletRepository
	LedgerEntryRepository() LedgerEntryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
