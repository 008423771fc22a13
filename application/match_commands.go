package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"
	"gambler/arena/domain/lifecycle"
	"gambler/arena/domain/services"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// MatchCommands runs every match service call in its own unit of work.
// Actions commit only when they succeed; a refusal rolls back whatever the attempt touched.
type MatchCommands struct {
	uowFactory interfaces.UnitOfWorkFactory
}

// NewMatchCommands creates the transactional match service
func NewMatchCommands(uowFactory interfaces.UnitOfWorkFactory) *MatchCommands {
	return &MatchCommands{uowFactory: uowFactory}
}

func newMatchService(uow interfaces.UnitOfWork) interfaces.MatchService {
	return services.NewMatchService(
		uow.MatchRepository(),
		uow.ParticipantRepository(),
		uow.ResultRepository(),
		uow.WalletRepository(),
		uow.LedgerEntryRepository(),
		uow.EventBus(),
	)
}

// act runs an action and commits only a successful result
func (c *MatchCommands) act(ctx context.Context, name, matchID string, fn func(interfaces.MatchService) (entities.ActionResult, error)) (entities.ActionResult, error) {
	uow := c.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return entities.ActionResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	result, err := fn(newMatchService(uow))
	if err != nil {
		return entities.ActionResult{}, fmt.Errorf("%s failed: %w", name, err)
	}
	if !result.Success {
		log.WithFields(log.Fields{
			"action":  name,
			"matchID": matchID,
			"reason":  result.ReasonCode,
		}).Debug("Match action refused")
		return result, nil
	}

	if err := uow.Commit(); err != nil {
		return entities.ActionResult{}, fmt.Errorf("failed to commit %s: %w", name, err)
	}
	return result, nil
}

// read runs a query in a unit of work, committing any wallet it had to create
func read[T any](ctx context.Context, c *MatchCommands, fn func(interfaces.MatchService) (T, error)) (T, error) {
	var zero T
	uow := c.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	out, err := fn(newMatchService(uow))
	if err != nil {
		return zero, err
	}
	if err := uow.Commit(); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return out, nil
}

// CreateMatch opens a match and commits it with the creator's locked fee
func (c *MatchCommands) CreateMatch(ctx context.Context, actor lifecycle.Actor, params entities.CreateMatchParams) (entities.ActionResult, error) {
	return c.act(ctx, "create", "", func(s interfaces.MatchService) (entities.ActionResult, error) {
		return s.CreateMatch(ctx, actor, params)
	})
}

// JoinMatch seats the actor and commits the locked entry fee
func (c *MatchCommands) JoinMatch(ctx context.Context, actor lifecycle.Actor, matchID string, opts entities.JoinOptions) (entities.ActionResult, error) {
	return c.act(ctx, "join", matchID, func(s interfaces.MatchService) (entities.ActionResult, error) {
		return s.JoinMatch(ctx, actor, matchID, opts)
	})
}

// LeaveMatch removes the actor from the match and commits their refund
func (c *MatchCommands) LeaveMatch(ctx context.Context, actor lifecycle.Actor, matchID string) (entities.ActionResult, error) {
	return c.act(ctx, "leave", matchID, func(s interfaces.MatchService) (entities.ActionResult, error) {
		return s.LeaveMatch(ctx, actor, matchID)
	})
}

// CancelMatch cancels the match for its creator, refunding every seat
func (c *MatchCommands) CancelMatch(ctx context.Context, actor lifecycle.Actor, matchID string) (entities.ActionResult, error) {
	return c.act(ctx, "cancel", matchID, func(s interfaces.MatchService) (entities.ActionResult, error) {
		return s.CancelMatch(ctx, actor, matchID)
	})
}

// SetReady marks the actor ready, starting the match when everyone is
func (c *MatchCommands) SetReady(ctx context.Context, actor lifecycle.Actor, matchID string) (entities.ActionResult, error) {
	return c.act(ctx, "ready", matchID, func(s interfaces.MatchService) (entities.ActionResult, error) {
		return s.SetReady(ctx, actor, matchID)
	})
}

// DeclareResult records the actor's result and commits any settlement it triggers
func (c *MatchCommands) DeclareResult(ctx context.Context, actor lifecycle.Actor, matchID string, choice entities.ResultChoice) (entities.ActionResult, error) {
	return c.act(ctx, "declare_result", matchID, func(s interfaces.MatchService) (entities.ActionResult, error) {
		return s.DeclareResult(ctx, actor, matchID, choice)
	})
}

// RaiseDispute freezes the match for admin review
func (c *MatchCommands) RaiseDispute(ctx context.Context, actor lifecycle.Actor, matchID string, reason string) (entities.ActionResult, error) {
	return c.act(ctx, "dispute", matchID, func(s interfaces.MatchService) (entities.ActionResult, error) {
		return s.RaiseDispute(ctx, actor, matchID, reason)
	})
}

// AdminResolve commits an admin award or refund of a disputed match
func (c *MatchCommands) AdminResolve(ctx context.Context, actor lifecycle.Actor, matchID string, action entities.AdminAction, notes *string) (entities.ActionResult, error) {
	return c.act(ctx, "admin_resolve", matchID, func(s interfaces.MatchService) (entities.ActionResult, error) {
		return s.AdminResolve(ctx, actor, matchID, action, notes)
	})
}

// LockFunds commits a top-up lock against the actor's seat
func (c *MatchCommands) LockFunds(ctx context.Context, actor lifecycle.Actor, matchID string, amount decimal.Decimal) (entities.ActionResult, error) {
	return c.act(ctx, "lock", matchID, func(s interfaces.MatchService) (entities.ActionResult, error) {
		return s.LockFunds(ctx, actor, matchID, amount)
	})
}

// ReadMatch returns the full snapshot, entities.ErrAccessDenied when the actor may not see it
func (c *MatchCommands) ReadMatch(ctx context.Context, actor lifecycle.Actor, matchID string) (*entities.MatchSnapshot, error) {
	return read(ctx, c, func(s interfaces.MatchService) (*entities.MatchSnapshot, error) {
		return s.ReadMatch(ctx, actor, matchID)
	})
}

// ReadMatchPublic returns the reduced snapshot anyone may see
func (c *MatchCommands) ReadMatchPublic(ctx context.Context, matchID string) (*entities.PublicMatchSnapshot, error) {
	return read(ctx, c, func(s interfaces.MatchService) (*entities.PublicMatchSnapshot, error) {
		return s.ReadMatchPublic(ctx, matchID)
	})
}

// ExpireMatches expires every match due at now, each in its own unit of work.
// A match that fails is logged and left as it was; the rest still expire.
func (c *MatchCommands) ExpireMatches(ctx context.Context, now time.Time) (int, error) {
	ids, err := c.ExpiredMatchIDs(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		expired, err := c.ExpireMatch(ctx, id, now)
		if err != nil {
			log.WithFields(log.Fields{
				"matchID": id,
				"error":   err,
			}).Error("Failed to expire match")
			errs = append(errs, fmt.Errorf("match %s: %w", id, err))
			continue
		}
		if expired {
			count++
		}
	}
	return count, errors.Join(errs...)
}

// ExpiredMatchIDs lists open matches due to expire at now
func (c *MatchCommands) ExpiredMatchIDs(ctx context.Context, now time.Time) ([]string, error) {
	return read(ctx, c, func(s interfaces.MatchService) ([]string, error) {
		return s.ExpiredMatchIDs(ctx, now)
	})
}

// ExpireMatch expires one match in its own unit of work, committing only a real expiry
func (c *MatchCommands) ExpireMatch(ctx context.Context, matchID string, now time.Time) (bool, error) {
	uow := c.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	expired, err := newMatchService(uow).ExpireMatch(ctx, matchID, now)
	if err != nil || !expired {
		return false, err
	}
	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit expiry of %s: %w", matchID, err)
	}
	return true, nil
}

// GetWallet returns the actor's wallet, committing it when first created
func (c *MatchCommands) GetWallet(ctx context.Context, actor lifecycle.Actor) (*entities.Wallet, error) {
	return read(ctx, c, func(s interfaces.MatchService) (*entities.Wallet, error) {
		return s.GetWallet(ctx, actor)
	})
}

// GetWalletHistory returns the actor's latest escrow movements, newest first
func (c *MatchCommands) GetWalletHistory(ctx context.Context, actor lifecycle.Actor, limit int) ([]*entities.LedgerEntry, error) {
	return read(ctx, c, func(s interfaces.MatchService) ([]*entities.LedgerEntry, error) {
		return s.GetWalletHistory(ctx, actor, limit)
	})
}

// ListMatches returns the lobby listing for the actor
func (c *MatchCommands) ListMatches(ctx context.Context, actor lifecycle.Actor, statuses []entities.MatchStatus, limit int) ([]*entities.Match, error) {
	return read(ctx, c, func(s interfaces.MatchService) ([]*entities.Match, error) {
		return s.ListMatches(ctx, actor, statuses, limit)
	})
}

// GetMatchLedger returns every escrow movement of a match to admins
func (c *MatchCommands) GetMatchLedger(ctx context.Context, actor lifecycle.Actor, matchID string) ([]*entities.LedgerEntry, error) {
	return read(ctx, c, func(s interfaces.MatchService) ([]*entities.LedgerEntry, error) {
		return s.GetMatchLedger(ctx, actor, matchID)
	})
}

var _ interfaces.MatchService = (*MatchCommands)(nil)
