package interfaces

import (
	"context"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/events"

	"github.com/shopspring/decimal"
)

// IdentityProvider supplies the already authenticated current user
type IdentityProvider interface {
	CurrentUserID() string
	IsAdmin() bool
}

// LedgerService is the client view of the remote ledger. The actor is implied by the session.
// A returned error is a transport failure; refusals come back as a failed ActionResult.
type LedgerService interface {
	CreateMatch(ctx context.Context, params entities.CreateMatchParams) (entities.ActionResult, error)
	LockFunds(ctx context.Context, matchID string, amount decimal.Decimal) (entities.ActionResult, error)
	JoinMatch(ctx context.Context, matchID string, opts entities.JoinOptions) (entities.ActionResult, error)
	LeaveMatch(ctx context.Context, matchID string) (entities.ActionResult, error)
	CancelMatch(ctx context.Context, matchID string) (entities.ActionResult, error)
	SetReady(ctx context.Context, matchID string) (entities.ActionResult, error)
	DeclareResult(ctx context.Context, matchID string, choice entities.ResultChoice) (entities.ActionResult, error)
	RaiseDispute(ctx context.Context, matchID string, reason string) (entities.ActionResult, error)
	AdminResolve(ctx context.Context, matchID string, action entities.AdminAction, notes *string) (entities.ActionResult, error)

	// ReadMatch returns entities.ErrAccessDenied when the session may not see the full view
	ReadMatch(ctx context.Context, matchID string) (*entities.MatchSnapshot, error)
	ReadMatchPublic(ctx context.Context, matchID string) (*entities.PublicMatchSnapshot, error)
	ReadWallet(ctx context.Context) (*entities.Wallet, error)
}

// ChangeHandler receives change events of one table
type ChangeHandler func(event events.ChangeEvent)

// Subscription is an open change stream
type Subscription interface {
	Unsubscribe() error
}

// ChangeChannel pushes row changes keyed by match id and table.
// Delivery is ordered within a table, not across tables.
type ChangeChannel interface {
	Subscribe(ctx context.Context, matchID string, table events.Table, handler ChangeHandler) (Subscription, error)
}
