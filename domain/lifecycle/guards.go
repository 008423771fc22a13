package lifecycle

import (
	"time"

	"gambler/arena/domain/entities"

	"github.com/shopspring/decimal"
)

// Actor is the identity attempting a transition
type Actor struct {
	UserID  string
	IsAdmin bool
	// Available is the actor's available balance; nil when not known to the caller
	Available *decimal.Decimal
	// System marks the expiry worker, which has no user identity
	System bool
}

// Input carries the trigger specific arguments. Zero values skip the matching guard.
type Input struct {
	Side        *entities.TeamSide
	TeamID      *string
	Choice      entities.ResultChoice
	AdminAction entities.AdminAction
}

// Check evaluates every guard of a trigger against a snapshot
func Check(trigger Trigger, snapshot *entities.MatchSnapshot, actor Actor, now time.Time) *entities.GuardError {
	return CheckWith(trigger, snapshot, actor, now, Input{})
}

// CheckWith evaluates the guards of a trigger including its arguments
func CheckWith(trigger Trigger, snapshot *entities.MatchSnapshot, actor Actor, now time.Time, in Input) *entities.GuardError {
	if snapshot == nil || snapshot.Match == nil {
		return entities.NewGuardError(entities.ReasonMatchNotFound, "no snapshot")
	}
	if !actor.System && actor.UserID == "" {
		return entities.NewGuardError(entities.ReasonNotAuthenticated, "no current user")
	}

	switch trigger {
	case TriggerJoin:
		return checkJoin(snapshot, actor, now, in)
	case TriggerLeave:
		return checkLeave(snapshot, actor)
	case TriggerCancel:
		return checkCancel(snapshot, actor)
	case TriggerReady:
		return checkReady(snapshot, actor)
	case TriggerDeclareResult:
		return checkDeclare(snapshot, actor, in)
	case TriggerDispute:
		return checkDispute(snapshot, actor)
	case TriggerAdminResolve:
		return checkAdminResolve(snapshot, actor, in)
	case TriggerExpire:
		return checkExpire(snapshot, now)
	}
	return entities.NewGuardError(entities.ReasonInvalidMatchState, "unknown trigger %q", trigger)
}

func stateError(trigger Trigger, status entities.MatchStatus) *entities.GuardError {
	return entities.NewGuardError(entities.ReasonInvalidMatchState, "cannot %s while %s", trigger, status)
}

func checkJoin(s *entities.MatchSnapshot, actor Actor, now time.Time, in Input) *entities.GuardError {
	m := s.Match
	if !AllowedIn(TriggerJoin, m.Status) {
		if m.Status.IsReadyCheck() {
			return entities.NewGuardError(entities.ReasonMatchFull, "match %s is full", m.ID)
		}
		if m.Status == entities.MatchStatusExpired {
			return entities.NewGuardError(entities.ReasonMatchExpired, "match %s expired", m.ID)
		}
		return entities.NewGuardError(entities.ReasonMatchNotJoinable, "match %s is %s", m.ID, m.Status)
	}
	if !now.IsZero() && m.IsExpiredAt(now) {
		return entities.NewGuardError(entities.ReasonMatchExpired, "match %s expired at %s", m.ID, m.ExpiresAt.Format(time.RFC3339))
	}
	if s.Participant(actor.UserID) != nil {
		return entities.NewGuardError(entities.ReasonAlreadyParticipant, "user %s already joined", actor.UserID)
	}
	if _, gerr := PickSide(s, in.Side); gerr != nil {
		return gerr
	}
	if actor.Available != nil && actor.Available.LessThan(m.EntryFee) {
		return entities.NewGuardError(entities.ReasonInsufficientBalance, "available %s below entry fee %s", actor.Available, m.EntryFee)
	}
	return nil
}

// PickSide resolves the side a join lands on. Without a request it fills A before B.
func PickSide(s *entities.MatchSnapshot, requested *entities.TeamSide) (entities.TeamSide, *entities.GuardError) {
	if requested != nil {
		if !requested.IsValid() {
			return "", entities.NewGuardError(entities.ReasonInvalidSide, "unknown side %q", *requested)
		}
		if s.IsSideFull(*requested) {
			return "", entities.NewGuardError(entities.ReasonMatchFull, "side %s is full", *requested)
		}
		return *requested, nil
	}

	a, b := s.CountSide(entities.SideA), s.CountSide(entities.SideB)
	switch {
	case a < s.Match.TeamSize && a <= b:
		return entities.SideA, nil
	case b < s.Match.TeamSize:
		return entities.SideB, nil
	case a < s.Match.TeamSize:
		return entities.SideA, nil
	}
	return "", entities.NewGuardError(entities.ReasonMatchFull, "match %s is full", s.Match.ID)
}

func checkLeave(s *entities.MatchSnapshot, actor Actor) *entities.GuardError {
	if !AllowedIn(TriggerLeave, s.Match.Status) {
		return stateError(TriggerLeave, s.Match.Status)
	}
	p := s.Participant(actor.UserID)
	if p == nil {
		return entities.NewGuardError(entities.ReasonNotParticipant, "user %s is not in match", actor.UserID)
	}
	if s.Match.IsCreator(actor.UserID) {
		return entities.NewGuardError(entities.ReasonCreatorCannotLeave, "creator must cancel instead")
	}
	if p.Ready {
		return entities.NewGuardError(entities.ReasonAlreadyReady, "user %s is already ready", actor.UserID)
	}
	return nil
}

func checkCancel(s *entities.MatchSnapshot, actor Actor) *entities.GuardError {
	if !s.Match.IsCreator(actor.UserID) {
		return entities.NewGuardError(entities.ReasonNotCreator, "user %s did not create match", actor.UserID)
	}
	if !AllowedIn(TriggerCancel, s.Match.Status) {
		return stateError(TriggerCancel, s.Match.Status)
	}
	if opposingSideJoined(s) {
		return entities.NewGuardError(entities.ReasonOpponentJoined, "opponent already joined")
	}
	return nil
}

// opposingSideJoined checks whether anyone sits on the side the creator is not on
func opposingSideJoined(s *entities.MatchSnapshot) bool {
	creatorSide := entities.SideA
	if creator := s.Participant(s.Match.CreatorID); creator != nil {
		creatorSide = creator.Side
	}
	return s.CountSide(creatorSide.Opposite()) > 0
}

func checkReady(s *entities.MatchSnapshot, actor Actor) *entities.GuardError {
	if !AllowedIn(TriggerReady, s.Match.Status) {
		return stateError(TriggerReady, s.Match.Status)
	}
	p := s.Participant(actor.UserID)
	if p == nil {
		return entities.NewGuardError(entities.ReasonNotParticipant, "user %s is not in match", actor.UserID)
	}
	if p.Ready {
		return entities.NewGuardError(entities.ReasonAlreadyReady, "user %s is already ready", actor.UserID)
	}
	return nil
}

func checkDeclare(s *entities.MatchSnapshot, actor Actor, in Input) *entities.GuardError {
	if !AllowedIn(TriggerDeclareResult, s.Match.Status) {
		return stateError(TriggerDeclareResult, s.Match.Status)
	}
	p := s.Participant(actor.UserID)
	if p == nil {
		return entities.NewGuardError(entities.ReasonNotParticipant, "user %s is not in match", actor.UserID)
	}
	if p.HasDeclared() {
		return entities.NewGuardError(entities.ReasonAlreadyDeclared, "user %s declared %s", actor.UserID, *p.ResultChoice)
	}
	if in.Choice != "" && !in.Choice.IsValid() {
		return entities.NewGuardError(entities.ReasonInvalidResultChoice, "unknown choice %q", in.Choice)
	}
	return nil
}

func checkDispute(s *entities.MatchSnapshot, actor Actor) *entities.GuardError {
	if !AllowedIn(TriggerDispute, s.Match.Status) {
		return stateError(TriggerDispute, s.Match.Status)
	}
	if s.Participant(actor.UserID) == nil {
		return entities.NewGuardError(entities.ReasonNotParticipant, "user %s is not in match", actor.UserID)
	}
	return nil
}

func checkAdminResolve(s *entities.MatchSnapshot, actor Actor, in Input) *entities.GuardError {
	if !actor.IsAdmin {
		return entities.NewGuardError(entities.ReasonNotAdmin, "user %s is not an admin", actor.UserID)
	}
	if !AllowedIn(TriggerAdminResolve, s.Match.Status) {
		return stateError(TriggerAdminResolve, s.Match.Status)
	}
	if in.AdminAction != "" && !in.AdminAction.IsValid() {
		return entities.NewGuardError(entities.ReasonInvalidAdminAction, "unknown action %q", in.AdminAction)
	}
	return nil
}

func checkExpire(s *entities.MatchSnapshot, now time.Time) *entities.GuardError {
	if !AllowedIn(TriggerExpire, s.Match.Status) {
		return stateError(TriggerExpire, s.Match.Status)
	}
	if !s.Match.IsExpiredAt(now) {
		return entities.NewGuardError(entities.ReasonNotExpired, "match %s expires at %s", s.Match.ID, s.Match.ExpiresAt.Format(time.RFC3339))
	}
	if s.IsFull() {
		return entities.NewGuardError(entities.ReasonInvalidMatchState, "match %s is full", s.Match.ID)
	}
	return nil
}
