package lifecycle

import (
	"gambler/arena/domain/entities"
)

// Permissions are the view predicates derived from one snapshot for one user
type Permissions struct {
	IsCreator        bool              `json:"is_creator"`
	IsParticipant    bool              `json:"is_participant"`
	IsAdminSpectator bool              `json:"is_admin_spectator"`
	IsCaptain        bool              `json:"is_captain"`
	MySide           entities.TeamSide `json:"my_side,omitempty"`
	CanJoin          bool              `json:"can_join"`
	CanCancel        bool              `json:"can_cancel"`
	CanLeave         bool              `json:"can_leave"`
	CanReady         bool              `json:"can_ready"`
	CanDeclareResult bool              `json:"can_declare_result"`
	CanDispute       bool              `json:"can_dispute"`
	CanAdminResolve  bool              `json:"can_admin_resolve"`
}

// Derive computes the permissions of a user against a snapshot. Expiry is judged
// against the snapshot's fetch time so the result depends on the snapshot alone.
func Derive(snapshot *entities.MatchSnapshot, userID string, isAdmin bool) Permissions {
	var perms Permissions
	if snapshot == nil || snapshot.Match == nil {
		return perms
	}

	actor := Actor{UserID: userID, IsAdmin: isAdmin}
	now := snapshot.FetchedAt
	allowed := func(t Trigger) bool {
		return userID != "" && Check(t, snapshot, actor, now) == nil
	}

	perms.IsCreator = snapshot.Match.IsCreator(userID)
	if p := snapshot.Participant(userID); p != nil {
		perms.IsParticipant = true
		perms.MySide = p.Side
		captain := entities.Captain(snapshot.Participants, p.Side)
		perms.IsCaptain = captain != nil && captain.UserID == userID
	}
	perms.IsAdminSpectator = isAdmin && !perms.IsParticipant

	// Admin spectators view but never act as players
	if !perms.IsAdminSpectator {
		perms.CanJoin = allowed(TriggerJoin)
	}
	perms.CanCancel = perms.IsCreator && AllowedIn(TriggerCancel, snapshot.Match.Status)
	perms.CanLeave = allowed(TriggerLeave)
	perms.CanReady = allowed(TriggerReady)
	perms.CanDeclareResult = perms.IsParticipant && AllowedIn(TriggerDeclareResult, snapshot.Match.Status)
	perms.CanDispute = allowed(TriggerDispute)
	perms.CanAdminResolve = allowed(TriggerAdminResolve)
	return perms
}

// Has reports whether a trigger is permitted by the derived view
func (p Permissions) Has(trigger Trigger) bool {
	switch trigger {
	case TriggerJoin:
		return p.CanJoin
	case TriggerLeave:
		return p.CanLeave
	case TriggerCancel:
		return p.CanCancel
	case TriggerReady:
		return p.CanReady
	case TriggerDeclareResult:
		return p.CanDeclareResult
	case TriggerDispute:
		return p.CanDispute
	case TriggerAdminResolve:
		return p.CanAdminResolve
	}
	return false
}
