package lifecycle

import "gambler/arena/domain/entities"

// Outcome is the state of result declarations across both sides
type Outcome string

const (
	OutcomePending    Outcome = "pending"
	OutcomeConcordant Outcome = "concordant"
	OutcomeDiscordant Outcome = "discordant"
)

// Verdict is the combined reading of every declared result
type Verdict struct {
	Outcome Outcome
	// Winner is set only for a concordant outcome
	Winner entities.TeamSide
}

// sideChoice collapses the declarations of one side. ok is false when no member has declared;
// split is true when members of the side disagree.
func sideChoice(participants []*entities.Participant, side entities.TeamSide) (choice entities.ResultChoice, ok bool, split bool) {
	for _, p := range participants {
		if p.Side != side || !p.HasDeclared() {
			continue
		}
		if !ok {
			choice, ok = *p.ResultChoice, true
			continue
		}
		if *p.ResultChoice != choice {
			split = true
		}
	}
	return choice, ok, split
}

// Resolve reads the side verdicts out of the participants' declarations.
// A side speaks once any member declares. The sides agree when one claims WIN and the other LOSS.
func Resolve(participants []*entities.Participant) Verdict {
	a, aOK, aSplit := sideChoice(participants, entities.SideA)
	b, bOK, bSplit := sideChoice(participants, entities.SideB)

	if aSplit || bSplit {
		return Verdict{Outcome: OutcomeDiscordant}
	}
	if !aOK || !bOK {
		return Verdict{Outcome: OutcomePending}
	}
	switch {
	case a == entities.ResultWin && b == entities.ResultLoss:
		return Verdict{Outcome: OutcomeConcordant, Winner: entities.SideA}
	case a == entities.ResultLoss && b == entities.ResultWin:
		return Verdict{Outcome: OutcomeConcordant, Winner: entities.SideB}
	}
	return Verdict{Outcome: OutcomeDiscordant}
}

// AfterJoin is the status once a join has been applied to the snapshot
func AfterJoin(s *entities.MatchSnapshot) entities.MatchStatus {
	if s.IsFull() {
		return entities.MatchStatusReadyCheck
	}
	return entities.MatchStatusOpen
}

// AfterReady is the status once a ready flag has been applied to the snapshot
func AfterReady(s *entities.MatchSnapshot) entities.MatchStatus {
	if !s.IsFull() {
		return s.Match.Status
	}
	for _, p := range s.Participants {
		if !p.Ready {
			return entities.MatchStatusReadyCheck
		}
	}
	return entities.MatchStatusInProgress
}

// AfterDeclare is the status once a declaration has been applied to the snapshot
func AfterDeclare(s *entities.MatchSnapshot) (entities.MatchStatus, Verdict) {
	v := Resolve(s.Participants)
	switch v.Outcome {
	case OutcomeConcordant:
		return entities.MatchStatusCompleted, v
	case OutcomeDiscordant:
		return entities.MatchStatusDisputed, v
	}
	return entities.MatchStatusResultPending, v
}
