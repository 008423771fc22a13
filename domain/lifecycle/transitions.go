package lifecycle

import "gambler/arena/domain/entities"

// Trigger is an input that may move a match along its state graph
type Trigger string

const (
	TriggerJoin          Trigger = "join"
	TriggerLeave         Trigger = "leave"
	TriggerCancel        Trigger = "cancel"
	TriggerReady         Trigger = "ready"
	TriggerDeclareResult Trigger = "declare_result"
	TriggerDispute       Trigger = "dispute"
	TriggerAdminResolve  Trigger = "admin_resolve"
	TriggerExpire        Trigger = "expire"
)

// Triggers lists every trigger in table order
var Triggers = []Trigger{
	TriggerJoin,
	TriggerLeave,
	TriggerCancel,
	TriggerReady,
	TriggerDeclareResult,
	TriggerDispute,
	TriggerAdminResolve,
	TriggerExpire,
}

func (t Trigger) String() string {
	return string(t)
}

// Statuses lists every match status
var Statuses = []entities.MatchStatus{
	entities.MatchStatusOpen,
	entities.MatchStatusFull,
	entities.MatchStatusReadyCheck,
	entities.MatchStatusInProgress,
	entities.MatchStatusResultPending,
	entities.MatchStatusCompleted,
	entities.MatchStatusDisputed,
	entities.MatchStatusAdminResolved,
	entities.MatchStatusCanceled,
	entities.MatchStatusExpired,
}

// Edges is the match state graph. A status not listed as a key is terminal.
var Edges = map[entities.MatchStatus][]entities.MatchStatus{
	entities.MatchStatusOpen: {
		entities.MatchStatusOpen,
		entities.MatchStatusFull,
		entities.MatchStatusReadyCheck,
		entities.MatchStatusCanceled,
		entities.MatchStatusExpired,
	},
	entities.MatchStatusFull: {
		entities.MatchStatusReadyCheck,
		entities.MatchStatusInProgress,
		entities.MatchStatusCanceled,
	},
	entities.MatchStatusReadyCheck: {
		entities.MatchStatusReadyCheck,
		entities.MatchStatusInProgress,
		entities.MatchStatusCanceled,
	},
	entities.MatchStatusInProgress: {
		entities.MatchStatusResultPending,
		entities.MatchStatusCompleted,
		entities.MatchStatusDisputed,
	},
	entities.MatchStatusResultPending: {
		entities.MatchStatusResultPending,
		entities.MatchStatusCompleted,
		entities.MatchStatusDisputed,
	},
	entities.MatchStatusDisputed: {
		entities.MatchStatusAdminResolved,
	},
}

// CanTransition checks that an edge exists from one status to another
func CanTransition(from, to entities.MatchStatus) bool {
	for _, next := range Edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// allowedFrom is the set of statuses each trigger may fire in
var allowedFrom = map[Trigger][]entities.MatchStatus{
	TriggerJoin:          {entities.MatchStatusOpen},
	TriggerLeave:         {entities.MatchStatusFull, entities.MatchStatusReadyCheck},
	TriggerCancel:        {entities.MatchStatusOpen},
	TriggerReady:         {entities.MatchStatusFull, entities.MatchStatusReadyCheck},
	TriggerDeclareResult: {entities.MatchStatusInProgress, entities.MatchStatusResultPending},
	TriggerDispute:       {entities.MatchStatusInProgress, entities.MatchStatusResultPending},
	TriggerAdminResolve:  {entities.MatchStatusDisputed},
	TriggerExpire:        {entities.MatchStatusOpen},
}

// AllowedIn reports whether a trigger may fire in a status, before actor guards
func AllowedIn(trigger Trigger, status entities.MatchStatus) bool {
	for _, s := range allowedFrom[trigger] {
		if s == status {
			return true
		}
	}
	return false
}
