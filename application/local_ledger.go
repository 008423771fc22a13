package application

import (
	"context"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"
	"gambler/arena/domain/lifecycle"

	"github.com/shopspring/decimal"
)

// StaticIdentity is an identity fixed at construction, such as a CLI session
type StaticIdentity struct {
	UserID string
	Admin  bool
}

// CurrentUserID returns the fixed user id
func (i StaticIdentity) CurrentUserID() string { return i.UserID }

// IsAdmin reports the fixed admin flag
func (i StaticIdentity) IsAdmin() bool { return i.Admin }

// LocalLedger serves the ledger client interface from an in-process match service
type LocalLedger struct {
	matches  interfaces.MatchService
	identity interfaces.IdentityProvider
}

// NewLocalLedger binds a match service to the session identity
func NewLocalLedger(matches interfaces.MatchService, identity interfaces.IdentityProvider) *LocalLedger {
	return &LocalLedger{matches: matches, identity: identity}
}

func (l *LocalLedger) actor() lifecycle.Actor {
	return lifecycle.Actor{UserID: l.identity.CurrentUserID(), IsAdmin: l.identity.IsAdmin()}
}

// CreateMatch opens a match as the current user
func (l *LocalLedger) CreateMatch(ctx context.Context, params entities.CreateMatchParams) (entities.ActionResult, error) {
	return l.matches.CreateMatch(ctx, l.actor(), params)
}

// LockFunds locks an extra amount against the current user's seat
func (l *LocalLedger) LockFunds(ctx context.Context, matchID string, amount decimal.Decimal) (entities.ActionResult, error) {
	return l.matches.LockFunds(ctx, l.actor(), matchID, amount)
}

// JoinMatch seats the current user
func (l *LocalLedger) JoinMatch(ctx context.Context, matchID string, opts entities.JoinOptions) (entities.ActionResult, error) {
	return l.matches.JoinMatch(ctx, l.actor(), matchID, opts)
}

// LeaveMatch gives up the current user's seat
func (l *LocalLedger) LeaveMatch(ctx context.Context, matchID string) (entities.ActionResult, error) {
	return l.matches.LeaveMatch(ctx, l.actor(), matchID)
}

// CancelMatch cancels the match; creator only
func (l *LocalLedger) CancelMatch(ctx context.Context, matchID string) (entities.ActionResult, error) {
	return l.matches.CancelMatch(ctx, l.actor(), matchID)
}

// SetReady marks the current user ready
func (l *LocalLedger) SetReady(ctx context.Context, matchID string) (entities.ActionResult, error) {
	return l.matches.SetReady(ctx, l.actor(), matchID)
}

// DeclareResult reports the current user's outcome
func (l *LocalLedger) DeclareResult(ctx context.Context, matchID string, choice entities.ResultChoice) (entities.ActionResult, error) {
	return l.matches.DeclareResult(ctx, l.actor(), matchID, choice)
}

// RaiseDispute contests the declared results
func (l *LocalLedger) RaiseDispute(ctx context.Context, matchID string, reason string) (entities.ActionResult, error) {
	return l.matches.RaiseDispute(ctx, l.actor(), matchID, reason)
}

// AdminResolve settles a disputed match; admin only
func (l *LocalLedger) AdminResolve(ctx context.Context, matchID string, action entities.AdminAction, notes *string) (entities.ActionResult, error) {
	return l.matches.AdminResolve(ctx, l.actor(), matchID, action, notes)
}

// ReadMatch returns the full snapshot the current user may see
func (l *LocalLedger) ReadMatch(ctx context.Context, matchID string) (*entities.MatchSnapshot, error) {
	return l.matches.ReadMatch(ctx, l.actor(), matchID)
}

// ReadMatchPublic returns the reduced snapshot
func (l *LocalLedger) ReadMatchPublic(ctx context.Context, matchID string) (*entities.PublicMatchSnapshot, error) {
	return l.matches.ReadMatchPublic(ctx, matchID)
}

// ReadWallet returns the current user's wallet
func (l *LocalLedger) ReadWallet(ctx context.Context) (*entities.Wallet, error) {
	return l.matches.GetWallet(ctx, l.actor())
}

var _ interfaces.LedgerService = (*LocalLedger)(nil)
