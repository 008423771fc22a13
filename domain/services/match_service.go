package services

import (
	"context"
	"fmt"
	"time"

	"gambler/arena/config"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"
	"gambler/arena/domain/lifecycle"
	"gambler/arena/domain/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type matchService struct {
	config          *config.Config
	matchRepo       interfaces.MatchRepository
	participantRepo interfaces.ParticipantRepository
	resultRepo      interfaces.ResultRepository
	walletRepo      interfaces.WalletRepository
	ledgerRepo      interfaces.LedgerEntryRepository
	escrow          interfaces.EscrowService
	eventPublisher  interfaces.EventPublisher
	now             func() time.Time
}

// NewMatchService creates a new match service
func NewMatchService(
	matchRepo interfaces.MatchRepository,
	participantRepo interfaces.ParticipantRepository,
	resultRepo interfaces.ResultRepository,
	walletRepo interfaces.WalletRepository,
	ledgerRepo interfaces.LedgerEntryRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.MatchService {
	return &matchService{
		config:          config.Get(),
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		resultRepo:      resultRepo,
		walletRepo:      walletRepo,
		ledgerRepo:      ledgerRepo,
		escrow:          NewEscrowService(walletRepo, ledgerRepo, eventPublisher),
		eventPublisher:  eventPublisher,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// CreateMatch opens a match and locks the creator's entry fee
func (s *matchService) CreateMatch(ctx context.Context, actor lifecycle.Actor, params entities.CreateMatchParams) (entities.ActionResult, error) {
	if actor.UserID == "" {
		return entities.Failed(entities.ReasonNotAuthenticated, "no current user"), nil
	}
	if params.TeamSize < entities.MinTeamSize || params.TeamSize > entities.MaxTeamSize {
		return entities.Failed(entities.ReasonInvalidTeamSize, fmt.Sprintf("team size %d", params.TeamSize)), nil
	}
	if !params.EntryFee.IsPositive() {
		return entities.Failed(entities.ReasonInvalidEntryFee, fmt.Sprintf("entry fee %s", params.EntryFee)), nil
	}

	if refusal, err := s.checkNoActiveMatch(ctx, actor.UserID, ""); err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}

	wallet, err := s.ensureWallet(ctx, actor.UserID)
	if err != nil {
		return entities.ActionResult{}, err
	}
	if !wallet.CanAfford(params.EntryFee) {
		return entities.Failed(entities.ReasonInsufficientBalance, fmt.Sprintf("available %s", wallet.Available)), nil
	}

	now := s.now()
	match := &entities.Match{
		ID:        uuid.New().String(),
		Status:    entities.MatchStatusOpen,
		TeamSize:  params.TeamSize,
		EntryFee:  params.EntryFee,
		CreatorID: actor.UserID,
		Region:    params.Region,
		IsPrivate: params.IsPrivate,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.MatchTTL),
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		return entities.ActionResult{}, fmt.Errorf("failed to create match: %w", err)
	}

	participant := &entities.Participant{
		MatchID:      match.ID,
		UserID:       actor.UserID,
		Side:         entities.SideA,
		TeamID:       params.TeamID,
		LockedAmount: params.EntryFee,
		JoinedAt:     now,
	}
	if refusal, err := s.seat(ctx, participant); err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}

	s.publishChange(match.ID, events.TableMatches, events.OpInsert, match)

	log.WithFields(log.Fields{
		"matchID":   match.ID,
		"creatorID": actor.UserID,
		"teamSize":  match.TeamSize,
		"entryFee":  match.EntryFee.String(),
	}).Info("Match created")

	return entities.Succeeded(match.ID, match.Status), nil
}

// JoinMatch seats the actor and locks their entry fee
func (s *matchService) JoinMatch(ctx context.Context, actor lifecycle.Actor, matchID string, opts entities.JoinOptions) (entities.ActionResult, error) {
	if opts.PaymentMode != "" && opts.PaymentMode != entities.PaymentModeWallet {
		return entities.Failed(entities.ReasonPaymentModeUnsupported, fmt.Sprintf("payment mode %q", opts.PaymentMode)), nil
	}

	snapshot, refusal, err := s.loadForUpdate(ctx, matchID)
	if err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}

	if actor.UserID != "" && snapshot.Participant(actor.UserID) == nil {
		if refusal, err := s.checkNoActiveMatch(ctx, actor.UserID, matchID); err != nil || refusal != nil {
			return refusalOrZero(refusal), err
		}
		wallet, err := s.ensureWallet(ctx, actor.UserID)
		if err != nil {
			return entities.ActionResult{}, err
		}
		actor.Available = &wallet.Available
	}

	now := s.now()
	input := lifecycle.Input{Side: opts.Side, TeamID: opts.TeamID}
	if gerr := lifecycle.CheckWith(lifecycle.TriggerJoin, snapshot, actor, now, input); gerr != nil {
		return entities.Refused(gerr), nil
	}
	side, gerr := lifecycle.PickSide(snapshot, opts.Side)
	if gerr != nil {
		return entities.Refused(gerr), nil
	}

	participant := &entities.Participant{
		MatchID:      matchID,
		UserID:       actor.UserID,
		Side:         side,
		TeamID:       opts.TeamID,
		LockedAmount: snapshot.Match.EntryFee,
		JoinedAt:     now,
	}
	if refusal, err := s.seat(ctx, participant); err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}
	snapshot.Participants = append(snapshot.Participants, participant)

	if next := lifecycle.AfterJoin(snapshot); next != snapshot.Match.Status {
		if err := s.transition(ctx, snapshot.Match, next, actor.UserID); err != nil {
			return entities.ActionResult{}, err
		}
	}

	log.WithFields(log.Fields{
		"matchID": matchID,
		"userID":  actor.UserID,
		"side":    side,
		"status":  snapshot.Match.Status,
	}).Info("User joined match")

	return entities.Succeeded(matchID, snapshot.Match.Status), nil
}

// LeaveMatch removes a non-creator during the ready check and cancels the match
func (s *matchService) LeaveMatch(ctx context.Context, actor lifecycle.Actor, matchID string) (entities.ActionResult, error) {
	snapshot, refusal, err := s.loadForUpdate(ctx, matchID)
	if err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}
	if gerr := lifecycle.Check(lifecycle.TriggerLeave, snapshot, actor, s.now()); gerr != nil {
		return entities.Refused(gerr), nil
	}

	// A ready check cannot continue short a seat, so every stake goes back
	if err := s.escrow.RefundAll(ctx, snapshot); err != nil {
		return entities.ActionResult{}, err
	}
	if err := s.participantRepo.Remove(ctx, matchID, actor.UserID); err != nil {
		return entities.ActionResult{}, fmt.Errorf("failed to remove participant: %w", err)
	}
	s.publishChange(matchID, events.TableParticipants, events.OpDelete, snapshot.Participant(actor.UserID))

	if err := s.finish(ctx, snapshot.Match, entities.MatchStatusCanceled, actor.UserID); err != nil {
		return entities.ActionResult{}, err
	}
	return entities.Succeeded(matchID, snapshot.Match.Status), nil
}

// CancelMatch cancels an open match before any opponent joins
func (s *matchService) CancelMatch(ctx context.Context, actor lifecycle.Actor, matchID string) (entities.ActionResult, error) {
	snapshot, refusal, err := s.loadForUpdate(ctx, matchID)
	if err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}
	if gerr := lifecycle.Check(lifecycle.TriggerCancel, snapshot, actor, s.now()); gerr != nil {
		return entities.Refused(gerr), nil
	}

	if err := s.escrow.RefundAll(ctx, snapshot); err != nil {
		return entities.ActionResult{}, err
	}
	if err := s.finish(ctx, snapshot.Match, entities.MatchStatusCanceled, actor.UserID); err != nil {
		return entities.ActionResult{}, err
	}
	return entities.Succeeded(matchID, snapshot.Match.Status), nil
}

// SetReady marks the actor ready and starts the match once everyone is
func (s *matchService) SetReady(ctx context.Context, actor lifecycle.Actor, matchID string) (entities.ActionResult, error) {
	snapshot, refusal, err := s.loadForUpdate(ctx, matchID)
	if err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}
	if gerr := lifecycle.Check(lifecycle.TriggerReady, snapshot, actor, s.now()); gerr != nil {
		return entities.Refused(gerr), nil
	}

	participant := snapshot.Participant(actor.UserID)
	participant.Ready = true
	if err := s.participantRepo.Update(ctx, participant); err != nil {
		return entities.ActionResult{}, fmt.Errorf("failed to update participant: %w", err)
	}
	s.publishChange(matchID, events.TableParticipants, events.OpUpdate, participant)

	next := lifecycle.AfterReady(snapshot)
	if next == entities.MatchStatusInProgress {
		started := s.now()
		snapshot.Match.StartedAt = &started
	}
	if next != snapshot.Match.Status {
		if err := s.transition(ctx, snapshot.Match, next, actor.UserID); err != nil {
			return entities.ActionResult{}, err
		}
	}
	return entities.Succeeded(matchID, snapshot.Match.Status), nil
}

// DeclareResult records the actor's result for their side
func (s *matchService) DeclareResult(ctx context.Context, actor lifecycle.Actor, matchID string, choice entities.ResultChoice) (entities.ActionResult, error) {
	if !choice.IsValid() {
		return entities.Failed(entities.ReasonInvalidResultChoice, fmt.Sprintf("choice %q", choice)), nil
	}

	snapshot, refusal, err := s.loadForUpdate(ctx, matchID)
	if err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}
	input := lifecycle.Input{Choice: choice}
	if gerr := lifecycle.CheckWith(lifecycle.TriggerDeclareResult, snapshot, actor, s.now(), input); gerr != nil {
		return entities.Refused(gerr), nil
	}

	participant := snapshot.Participant(actor.UserID)
	participant.ResultChoice = &choice
	if err := s.participantRepo.Update(ctx, participant); err != nil {
		return entities.ActionResult{}, fmt.Errorf("failed to update participant: %w", err)
	}
	s.publishChange(matchID, events.TableParticipants, events.OpUpdate, participant)

	result, op := s.resultFor(snapshot)
	next, verdict := lifecycle.AfterDeclare(snapshot)

	var settlement *entities.PrizeSplit
	switch verdict.Outcome {
	case lifecycle.OutcomeConcordant:
		split, err := s.escrow.Settle(ctx, snapshot, verdict.Winner)
		if err != nil {
			return entities.ActionResult{}, err
		}
		settlement = &split
		result.Status = entities.ResultStatusResolved
		result.WinnerConfirmed = true
		result.LoserConfirmed = true
		result.SetWinner(snapshot.Match.TeamSize, verdict.Winner, snapshot.Participants)
		result.Prize = &split.Prize
		result.PlatformFee = &split.PlatformFee
	case lifecycle.OutcomeDiscordant:
		reason := "conflicting result declarations"
		result.Status = entities.ResultStatusDisputed
		result.DisputeReason = &reason
	default:
		result.Status = entities.ResultStatusPending
		if choice == entities.ResultWin {
			result.WinnerConfirmed = true
		} else {
			result.LoserConfirmed = true
		}
	}

	if err := s.saveResult(ctx, result, op); err != nil {
		return entities.ActionResult{}, err
	}

	if next.IsTerminal() {
		err = s.finish(ctx, snapshot.Match, next, actor.UserID)
	} else if next != snapshot.Match.Status {
		err = s.transition(ctx, snapshot.Match, next, actor.UserID)
	}
	if err != nil {
		return entities.ActionResult{}, err
	}

	res := entities.Succeeded(matchID, snapshot.Match.Status)
	res.Settlement = settlement
	return res, nil
}

// RaiseDispute freezes the match for admin review
func (s *matchService) RaiseDispute(ctx context.Context, actor lifecycle.Actor, matchID string, reason string) (entities.ActionResult, error) {
	snapshot, refusal, err := s.loadForUpdate(ctx, matchID)
	if err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}
	if gerr := lifecycle.Check(lifecycle.TriggerDispute, snapshot, actor, s.now()); gerr != nil {
		return entities.Refused(gerr), nil
	}

	result, op := s.resultFor(snapshot)
	result.Status = entities.ResultStatusDisputed
	if reason != "" {
		result.DisputeReason = &reason
	}
	if err := s.saveResult(ctx, result, op); err != nil {
		return entities.ActionResult{}, err
	}

	if err := s.transition(ctx, snapshot.Match, entities.MatchStatusDisputed, actor.UserID); err != nil {
		return entities.ActionResult{}, err
	}
	return entities.Succeeded(matchID, snapshot.Match.Status), nil
}

// AdminResolve settles a disputed match by award or refund
func (s *matchService) AdminResolve(ctx context.Context, actor lifecycle.Actor, matchID string, action entities.AdminAction, notes *string) (entities.ActionResult, error) {
	if !action.IsValid() {
		return entities.Failed(entities.ReasonInvalidAdminAction, fmt.Sprintf("action %q", action)), nil
	}

	snapshot, refusal, err := s.loadForUpdate(ctx, matchID)
	if err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}
	input := lifecycle.Input{AdminAction: action}
	if gerr := lifecycle.CheckWith(lifecycle.TriggerAdminResolve, snapshot, actor, s.now(), input); gerr != nil {
		return entities.Refused(gerr), nil
	}

	result, op := s.resultFor(snapshot)
	result.Status = entities.ResultStatusResolved
	result.AdminNotes = notes

	var settlement *entities.PrizeSplit
	if side, ok := action.WinnerSide(); ok {
		split, err := s.escrow.Settle(ctx, snapshot, side)
		if err != nil {
			return entities.ActionResult{}, err
		}
		settlement = &split
		result.SetWinner(snapshot.Match.TeamSize, side, snapshot.Participants)
		result.Prize = &split.Prize
		result.PlatformFee = &split.PlatformFee
	} else {
		if err := s.escrow.RefundAll(ctx, snapshot); err != nil {
			return entities.ActionResult{}, err
		}
		result.WinnerUserID = nil
		result.WinnerSide = nil
	}

	if err := s.saveResult(ctx, result, op); err != nil {
		return entities.ActionResult{}, err
	}
	if err := s.finish(ctx, snapshot.Match, entities.MatchStatusAdminResolved, actor.UserID); err != nil {
		return entities.ActionResult{}, err
	}

	log.WithFields(log.Fields{
		"matchID": matchID,
		"adminID": actor.UserID,
		"action":  action,
	}).Info("Match resolved by admin")

	res := entities.Succeeded(matchID, snapshot.Match.Status)
	res.Settlement = settlement
	return res, nil
}

// LockFunds moves amount from the actor's available balance into their stake on the match
func (s *matchService) LockFunds(ctx context.Context, actor lifecycle.Actor, matchID string, amount decimal.Decimal) (entities.ActionResult, error) {
	if !amount.IsPositive() {
		return entities.Failed(entities.ReasonInvalidEntryFee, fmt.Sprintf("amount %s", amount)), nil
	}

	snapshot, refusal, err := s.loadForUpdate(ctx, matchID)
	if err != nil || refusal != nil {
		return refusalOrZero(refusal), err
	}
	participant := snapshot.Participant(actor.UserID)
	if participant == nil {
		return entities.Failed(entities.ReasonNotParticipant, "not seated in match"), nil
	}
	status := snapshot.Match.Status
	if status != entities.MatchStatusOpen && !status.IsReadyCheck() {
		return entities.Failed(entities.ReasonInvalidMatchState, fmt.Sprintf("cannot lock funds while %s", status)), nil
	}

	if _, err := s.escrow.Lock(ctx, actor.UserID, matchID, amount); err != nil {
		if isInsufficient(err) {
			return entities.Failed(entities.ReasonInsufficientBalance, err.Error()), nil
		}
		return entities.ActionResult{}, err
	}
	participant.LockedAmount = participant.LockedAmount.Add(amount)
	if err := s.participantRepo.Update(ctx, participant); err != nil {
		return entities.ActionResult{}, fmt.Errorf("failed to update participant: %w", err)
	}
	s.publishChange(matchID, events.TableParticipants, events.OpUpdate, participant)
	return entities.Succeeded(matchID, status), nil
}

// ReadMatch returns the full snapshot, entities.ErrAccessDenied when the actor may not see it
func (s *matchService) ReadMatch(ctx context.Context, actor lifecycle.Actor, matchID string) (*entities.MatchSnapshot, error) {
	snapshot, err := s.matchRepo.GetSnapshot(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to read match: %w", err)
	}
	if snapshot == nil {
		return nil, entities.ErrMatchNotFound
	}
	if snapshot.Match.IsPrivate && !actor.IsAdmin && snapshot.Participant(actor.UserID) == nil {
		return nil, entities.ErrAccessDenied
	}
	snapshot.FetchedAt = s.now()
	return snapshot, nil
}

// ReadMatchPublic returns the reduced snapshot anyone may see
func (s *matchService) ReadMatchPublic(ctx context.Context, matchID string) (*entities.PublicMatchSnapshot, error) {
	snapshot, err := s.matchRepo.GetSnapshot(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to read match: %w", err)
	}
	if snapshot == nil {
		return nil, entities.ErrMatchNotFound
	}
	return entities.NewPublicSnapshot(snapshot), nil
}

// ExpireMatches expires every open match past its expiry time
func (s *matchService) ExpireMatches(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.ExpiredMatchIDs(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		expired, err := s.ExpireMatch(ctx, id, now)
		if err != nil {
			return count, err
		}
		if expired {
			count++
		}
	}

	if count > 0 {
		log.WithField("count", count).Info("Expired open matches")
	}
	return count, nil
}

// ExpiredMatchIDs lists open matches whose expiry time has passed at now
func (s *matchService) ExpiredMatchIDs(ctx context.Context, now time.Time) ([]string, error) {
	expired, err := s.matchRepo.GetExpiredOpen(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired matches: %w", err)
	}
	ids := make([]string, 0, len(expired))
	for _, m := range expired {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// ExpireMatch expires one match and refunds every seat. It reports false when the match
// is gone or can no longer expire.
func (s *matchService) ExpireMatch(ctx context.Context, matchID string, now time.Time) (bool, error) {
	snapshot, refusal, err := s.loadForUpdate(ctx, matchID)
	if err != nil {
		return false, err
	}
	if refusal != nil {
		return false, nil
	}
	if gerr := lifecycle.Check(lifecycle.TriggerExpire, snapshot, lifecycle.Actor{System: true}, now); gerr != nil {
		log.WithFields(log.Fields{
			"matchID": matchID,
			"reason":  gerr.Reason,
		}).Debug("Skipping match that can no longer expire")
		return false, nil
	}
	if err := s.escrow.RefundAll(ctx, snapshot); err != nil {
		return false, err
	}
	if err := s.finish(ctx, snapshot.Match, entities.MatchStatusExpired, ""); err != nil {
		return false, err
	}
	return true, nil
}

// GetWallet returns the actor's wallet, creating it on first use
func (s *matchService) GetWallet(ctx context.Context, actor lifecycle.Actor) (*entities.Wallet, error) {
	if actor.UserID == "" {
		return nil, fmt.Errorf("no current user")
	}
	return s.ensureWallet(ctx, actor.UserID)
}

// GetWalletHistory returns the actor's latest escrow movements, newest first
func (s *matchService) GetWalletHistory(ctx context.Context, actor lifecycle.Actor, limit int) ([]*entities.LedgerEntry, error) {
	if actor.UserID == "" {
		return nil, fmt.Errorf("no current user")
	}
	entries, err := s.ledgerRepo.GetByUser(ctx, actor.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet history: %w", err)
	}
	return entries, nil
}

// ListMatches returns matches in the given statuses, the open lobby when none are given
func (s *matchService) ListMatches(ctx context.Context, actor lifecycle.Actor, statuses []entities.MatchStatus, limit int) ([]*entities.Match, error) {
	if len(statuses) == 0 {
		statuses = []entities.MatchStatus{entities.MatchStatusOpen}
	}
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, fmt.Errorf("unknown match status %q", st)
		}
	}

	matches, err := s.matchRepo.ListByStatus(ctx, statuses, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	if actor.IsAdmin {
		return matches, nil
	}

	listed := matches[:0]
	for _, m := range matches {
		if !m.IsPrivate {
			listed = append(listed, m)
		}
	}
	return listed, nil
}

// GetMatchLedger returns every escrow movement of a match for admin review
func (s *matchService) GetMatchLedger(ctx context.Context, actor lifecycle.Actor, matchID string) ([]*entities.LedgerEntry, error) {
	if !actor.IsAdmin {
		return nil, entities.ErrAccessDenied
	}
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to read match: %w", err)
	}
	if match == nil {
		return nil, entities.ErrMatchNotFound
	}

	entries, err := s.ledgerRepo.GetByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match ledger: %w", err)
	}
	return entries, nil
}

// loadForUpdate locks the match row and reads its snapshot
func (s *matchService) loadForUpdate(ctx context.Context, matchID string) (*entities.MatchSnapshot, *entities.GuardError, error) {
	match, err := s.matchRepo.GetByIDForUpdate(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock match: %w", err)
	}
	if match == nil {
		return nil, entities.NewGuardError(entities.ReasonMatchNotFound, "match %s", matchID), nil
	}

	snapshot, err := s.matchRepo.GetSnapshot(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read match: %w", err)
	}
	if snapshot == nil {
		return nil, entities.NewGuardError(entities.ReasonMatchNotFound, "match %s", matchID), nil
	}
	return snapshot, nil, nil
}

// checkNoActiveMatch refuses users already seated in another non-terminal match
func (s *matchService) checkNoActiveMatch(ctx context.Context, userID, exceptMatchID string) (*entities.GuardError, error) {
	active, err := s.matchRepo.GetActiveMatchIDForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active match: %w", err)
	}
	if active != nil && *active != exceptMatchID {
		return entities.NewGuardError(entities.ReasonAlreadyInActiveMatch, "user %s is in match %s", userID, *active), nil
	}
	return nil, nil
}

// ensureWallet creates a wallet with the starting balance on first use
func (s *matchService) ensureWallet(ctx context.Context, userID string) (*entities.Wallet, error) {
	wallet, created, err := s.walletRepo.GetOrCreate(ctx, userID, s.config.StartingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	if created && wallet.Available.IsPositive() {
		entry := &entities.LedgerEntry{
			UserID:          userID,
			EntryType:       entities.EntryTypeInitial,
			Amount:          wallet.Available,
			AvailableBefore: decimal.Zero,
			AvailableAfter:  wallet.Available,
			LockedBefore:    decimal.Zero,
			LockedAfter:     decimal.Zero,
		}
		if err := utils.RecordEscrowMove(ctx, s.ledgerRepo, s.eventPublisher, entry); err != nil {
			return nil, err
		}
	}
	return wallet, nil
}

// seat inserts a participant and locks their stake
func (s *matchService) seat(ctx context.Context, participant *entities.Participant) (*entities.GuardError, error) {
	if err := s.participantRepo.Add(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}
	if _, err := s.escrow.Lock(ctx, participant.UserID, participant.MatchID, participant.LockedAmount); err != nil {
		if isInsufficient(err) {
			return entities.NewGuardError(entities.ReasonInsufficientBalance, "%v", err), nil
		}
		return nil, err
	}
	s.publishChange(participant.MatchID, events.TableParticipants, events.OpInsert, participant)
	return nil, nil
}

// resultFor returns the existing result or a new pending one
func (s *matchService) resultFor(snapshot *entities.MatchSnapshot) (*entities.Result, events.ChangeOp) {
	if snapshot.Result != nil {
		return snapshot.Result, events.OpUpdate
	}
	now := s.now()
	return &entities.Result{
		MatchID:   snapshot.Match.ID,
		Status:    entities.ResultStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, events.OpInsert
}

func (s *matchService) saveResult(ctx context.Context, result *entities.Result, op events.ChangeOp) error {
	result.UpdatedAt = s.now()
	if err := s.resultRepo.Upsert(ctx, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	s.publishChange(result.MatchID, events.TableResults, op, result)
	return nil
}

// finish moves a match into a terminal status
func (s *matchService) finish(ctx context.Context, match *entities.Match, status entities.MatchStatus, actorID string) error {
	finished := s.now()
	match.FinishedAt = &finished
	return s.transition(ctx, match, status, actorID)
}

// transition persists a status change after checking the edge exists
func (s *matchService) transition(ctx context.Context, match *entities.Match, status entities.MatchStatus, actorID string) error {
	if !lifecycle.CanTransition(match.Status, status) {
		return fmt.Errorf("illegal transition %s -> %s for match %s", match.Status, status, match.ID)
	}

	oldStatus := match.Status
	match.Status = status
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}

	s.publishChange(match.ID, events.TableMatches, events.OpUpdate, match)
	if err := s.eventPublisher.Publish(events.MatchStateChangeEvent{
		MatchID:   match.ID,
		OldStatus: oldStatus,
		NewStatus: status,
		ActorID:   actorID,
	}); err != nil {
		log.WithError(err).Error("Failed to publish match state change event")
	}
	return nil
}

func (s *matchService) publishChange(matchID string, table events.Table, op events.ChangeOp, row any) {
	if err := s.eventPublisher.Publish(events.NewChangeEvent(matchID, table, op, row)); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"matchID": matchID,
			"table":   table,
		}).Error("Failed to publish change event")
	}
}

func refusalOrZero(gerr *entities.GuardError) entities.ActionResult {
	if gerr == nil {
		return entities.ActionResult{}
	}
	return entities.Refused(gerr)
}
