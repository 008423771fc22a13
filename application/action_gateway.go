package application

import (
	"context"
	"sync"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"
	"gambler/arena/domain/lifecycle"
	"gambler/arena/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// ActionGateway sends the actions of one match view to the ledger.
// Guards are checked locally against the last snapshot before any remote call.
type ActionGateway struct {
	matchID     string
	ledger      interfaces.LedgerService
	identity    interfaces.IdentityProvider
	coordinator *FetchCoordinator
	now         func() time.Time

	mu      sync.Mutex
	pending bool
}

// NewActionGateway creates a gateway bound to a view's coordinator
func NewActionGateway(ledger interfaces.LedgerService, identity interfaces.IdentityProvider, coordinator *FetchCoordinator) *ActionGateway {
	return &ActionGateway{
		matchID:     coordinator.MatchID(),
		ledger:      ledger,
		identity:    identity,
		coordinator: coordinator,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Pending reports whether an action is in flight
func (g *ActionGateway) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

func (g *ActionGateway) actor() lifecycle.Actor {
	return lifecycle.Actor{UserID: g.identity.CurrentUserID(), IsAdmin: g.identity.IsAdmin()}
}

// run checks the guard, calls the ledger and refreshes after a success.
// A transport failure returns an UNKNOWN result together with the error.
func (g *ActionGateway) run(ctx context.Context, trigger lifecycle.Trigger, in lifecycle.Input, call func(context.Context) (entities.ActionResult, error)) (entities.ActionResult, error) {
	g.mu.Lock()
	if g.pending {
		g.mu.Unlock()
		g.record(trigger, observability.OutcomeRefused, entities.ReasonActionPending)
		return entities.Failed(entities.ReasonActionPending, "another action is in flight"), nil
	}
	g.pending = true
	g.mu.Unlock()

	result, err := g.attempt(ctx, trigger, in, call)

	g.mu.Lock()
	g.pending = false
	g.mu.Unlock()

	if err != nil {
		g.record(trigger, observability.OutcomeError, entities.ReasonUnknown)
		log.WithFields(log.Fields{
			"matchID": g.matchID,
			"action":  trigger,
			"error":   err,
		}).Error("Match action failed")
		return entities.Failed(entities.ReasonUnknown, err.Error()), err
	}
	if !result.Success {
		result.ReasonCode = result.ReasonCode.Normalize()
		g.record(trigger, observability.OutcomeRefused, result.ReasonCode)
		log.WithFields(log.Fields{
			"matchID": g.matchID,
			"action":  trigger,
			"reason":  result.ReasonCode,
		}).Info("Match action refused")
		return result, nil
	}

	g.record(trigger, observability.OutcomeSuccess, "")
	if _, err := g.coordinator.Refresh(ctx, RefreshOptions{Background: true, Follow: true}); err != nil {
		log.WithError(err).Warn("Refresh after action failed")
	}
	return result, nil
}

func (g *ActionGateway) attempt(ctx context.Context, trigger lifecycle.Trigger, in lifecycle.Input, call func(context.Context) (entities.ActionResult, error)) (entities.ActionResult, error) {
	snapshot := g.coordinator.Snapshot()
	// Judged at fetch time, the same clock the view's permissions use
	now := g.now()
	if snapshot != nil && !snapshot.FetchedAt.IsZero() {
		now = snapshot.FetchedAt
	}
	if gerr := lifecycle.CheckWith(trigger, snapshot, g.actor(), now, in); gerr != nil {
		return entities.Refused(gerr), nil
	}
	return call(ctx)
}

func (g *ActionGateway) record(trigger lifecycle.Trigger, outcome string, reason entities.ReasonCode) {
	observability.GetMetrics().RecordAction(trigger.String(), outcome, reason.String())
}

// Join takes a seat. A nil side lets the ledger pick one.
func (g *ActionGateway) Join(ctx context.Context, opts entities.JoinOptions) (entities.ActionResult, error) {
	in := lifecycle.Input{Side: opts.Side, TeamID: opts.TeamID}
	return g.run(ctx, lifecycle.TriggerJoin, in, func(ctx context.Context) (entities.ActionResult, error) {
		return g.ledger.JoinMatch(ctx, g.matchID, opts)
	})
}

// Leave gives up the actor's seat
func (g *ActionGateway) Leave(ctx context.Context) (entities.ActionResult, error) {
	return g.run(ctx, lifecycle.TriggerLeave, lifecycle.Input{}, func(ctx context.Context) (entities.ActionResult, error) {
		return g.ledger.LeaveMatch(ctx, g.matchID)
	})
}

// Cancel withdraws the match; creator only
func (g *ActionGateway) Cancel(ctx context.Context) (entities.ActionResult, error) {
	return g.run(ctx, lifecycle.TriggerCancel, lifecycle.Input{}, func(ctx context.Context) (entities.ActionResult, error) {
		return g.ledger.CancelMatch(ctx, g.matchID)
	})
}

// Ready marks the actor ready
func (g *ActionGateway) Ready(ctx context.Context) (entities.ActionResult, error) {
	return g.run(ctx, lifecycle.TriggerReady, lifecycle.Input{}, func(ctx context.Context) (entities.ActionResult, error) {
		return g.ledger.SetReady(ctx, g.matchID)
	})
}

// DeclareResult reports the actor's outcome of the game
func (g *ActionGateway) DeclareResult(ctx context.Context, choice entities.ResultChoice) (entities.ActionResult, error) {
	// Estimate before the call; the refresh on success replaces the snapshot
	estimate, hasEstimate := g.estimateForChoice(choice)

	result, err := g.run(ctx, lifecycle.TriggerDeclareResult, lifecycle.Input{Choice: choice}, func(ctx context.Context) (entities.ActionResult, error) {
		return g.ledger.DeclareResult(ctx, g.matchID, choice)
	})
	if err == nil && result.Success && hasEstimate {
		g.reconcile(estimate, result)
	}
	return result, err
}

// Dispute contests the declared results
func (g *ActionGateway) Dispute(ctx context.Context, reason string) (entities.ActionResult, error) {
	return g.run(ctx, lifecycle.TriggerDispute, lifecycle.Input{}, func(ctx context.Context) (entities.ActionResult, error) {
		return g.ledger.RaiseDispute(ctx, g.matchID, reason)
	})
}

// Resolve settles a disputed match; admin only
func (g *ActionGateway) Resolve(ctx context.Context, action entities.AdminAction, notes *string) (entities.ActionResult, error) {
	var estimate entities.PrizeSplit
	winner, awards := action.WinnerSide()
	if awards {
		estimate, awards = g.PreviewSettlement(winner)
	}

	result, err := g.run(ctx, lifecycle.TriggerAdminResolve, lifecycle.Input{AdminAction: action}, func(ctx context.Context) (entities.ActionResult, error) {
		return g.ledger.AdminResolve(ctx, g.matchID, action, notes)
	})
	if err == nil && result.Success && awards {
		g.reconcile(estimate, result)
	}
	return result, err
}

// PreviewSettlement estimates the split if a side wins, from the last full snapshot.
// The estimate is display only; the ledger's settlement always wins.
func (g *ActionGateway) PreviewSettlement(winner entities.TeamSide) (entities.PrizeSplit, bool) {
	snapshot := g.coordinator.Snapshot()
	if snapshot == nil || snapshot.Match == nil || snapshot.Public || !winner.IsValid() {
		return entities.PrizeSplit{}, false
	}
	return entities.SettleSnapshot(snapshot, winner), true
}

// estimateForChoice previews the settlement that a concordant declaration would produce
func (g *ActionGateway) estimateForChoice(choice entities.ResultChoice) (entities.PrizeSplit, bool) {
	snapshot := g.coordinator.Snapshot()
	if snapshot == nil || snapshot.Public {
		return entities.PrizeSplit{}, false
	}
	me := snapshot.Participant(g.identity.CurrentUserID())
	if me == nil {
		return entities.PrizeSplit{}, false
	}
	winner := me.Side
	if choice == entities.ResultLoss {
		winner = me.Side.Opposite()
	}
	return g.PreviewSettlement(winner)
}

// reconcile logs a local estimate that disagrees with the ledger's settlement
func (g *ActionGateway) reconcile(local entities.PrizeSplit, result entities.ActionResult) {
	if result.Settlement == nil {
		return
	}
	if local.Equal(*result.Settlement) {
		return
	}
	mismatch := &entities.ReconciliationMismatch{MatchID: g.matchID, Local: local, Server: *result.Settlement}
	log.WithFields(log.Fields{
		"matchID":     g.matchID,
		"localPrize":  local.Prize.String(),
		"serverPrize": result.Settlement.Prize.String(),
		"localFee":    local.PlatformFee.String(),
		"serverFee":   result.Settlement.PlatformFee.String(),
	}).Warn(mismatch.Error())
}
