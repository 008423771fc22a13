package entities

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus represents the lifecycle state of a match
type MatchStatus string

const (
	MatchStatusOpen          MatchStatus = "open"
	MatchStatusFull          MatchStatus = "full"
	MatchStatusReadyCheck    MatchStatus = "ready_check"
	MatchStatusInProgress    MatchStatus = "in_progress"
	MatchStatusResultPending MatchStatus = "result_pending"
	MatchStatusCompleted     MatchStatus = "completed"
	MatchStatusDisputed      MatchStatus = "disputed"
	MatchStatusAdminResolved MatchStatus = "admin_resolved"
	MatchStatusCanceled      MatchStatus = "canceled"
	MatchStatusExpired       MatchStatus = "expired"
)

// IsTerminal returns true once a match can no longer change
func (s MatchStatus) IsTerminal() bool {
	switch s {
	case MatchStatusCompleted, MatchStatusAdminResolved, MatchStatusCanceled, MatchStatusExpired:
		return true
	}
	return false
}

// IsReadyCheck treats the transient full state the same as ready_check
func (s MatchStatus) IsReadyCheck() bool {
	return s == MatchStatusReadyCheck || s == MatchStatusFull
}

// IsPlaying returns true while results may be declared
func (s MatchStatus) IsPlaying() bool {
	return s == MatchStatusInProgress || s == MatchStatusResultPending
}

// IsValid checks the status against the known set
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusOpen, MatchStatusFull, MatchStatusReadyCheck, MatchStatusInProgress,
		MatchStatusResultPending, MatchStatusCompleted, MatchStatusDisputed,
		MatchStatusAdminResolved, MatchStatusCanceled, MatchStatusExpired:
		return true
	}
	return false
}

func (s MatchStatus) String() string {
	return string(s)
}

// TeamSide is one of the two symmetric sides of a match
type TeamSide string

const (
	SideA TeamSide = "A"
	SideB TeamSide = "B"
)

// Opposite returns the other side
func (s TeamSide) Opposite() TeamSide {
	if s == SideA {
		return SideB
	}
	return SideA
}

// IsValid checks the side is A or B
func (s TeamSide) IsValid() bool {
	return s == SideA || s == SideB
}

// ResultChoice is a participant's declaration about their own side
type ResultChoice string

const (
	ResultWin  ResultChoice = "WIN"
	ResultLoss ResultChoice = "LOSS"
)

// IsValid checks the choice is WIN or LOSS
func (c ResultChoice) IsValid() bool {
	return c == ResultWin || c == ResultLoss
}

const (
	MinTeamSize = 1
	MaxTeamSize = 4
)

// Match is the aggregate root of a competitive match
type Match struct {
	ID         string          `db:"id" json:"id"`
	Status     MatchStatus     `db:"status" json:"status"`
	TeamSize   int             `db:"team_size" json:"team_size"`
	EntryFee   decimal.Decimal `db:"entry_fee" json:"entry_fee"`
	CreatorID  string          `db:"creator_id" json:"creator_id"`
	Region     string          `db:"region" json:"region"`
	IsPrivate  bool            `db:"is_private" json:"is_private"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time       `db:"expires_at" json:"expires_at"`
	StartedAt  *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}

// IsCreator checks if the user created the match
func (m *Match) IsCreator(userID string) bool {
	return userID != "" && m.CreatorID == userID
}

// IsExpiredAt returns true when the open window has passed
func (m *Match) IsExpiredAt(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// Capacity is the total number of seats across both sides
func (m *Match) Capacity() int {
	return m.TeamSize * 2
}

// TotalPool is the full escrow once every seat is paid
func (m *Match) TotalPool() decimal.Decimal {
	return m.EntryFee.Mul(decimal.NewFromInt(int64(m.Capacity())))
}

// Participant is a user seated on one side of a match
type Participant struct {
	MatchID      string          `db:"match_id" json:"match_id"`
	UserID       string          `db:"user_id" json:"user_id"`
	Side         TeamSide        `db:"side" json:"side"`
	TeamID       *string         `db:"team_id" json:"team_id,omitempty"`
	Ready        bool            `db:"ready" json:"ready"`
	ResultChoice *ResultChoice   `db:"result_choice" json:"result_choice,omitempty"`
	LockedAmount decimal.Decimal `db:"locked_amount" json:"locked_amount"`
	JoinedAt     time.Time       `db:"joined_at" json:"joined_at"`
}

// HasDeclared returns true once the participant has declared a result
func (p *Participant) HasDeclared() bool {
	return p.ResultChoice != nil
}

// ResultStatus tracks resolution of a match result
type ResultStatus string

const (
	ResultStatusPending  ResultStatus = "pending"
	ResultStatusDisputed ResultStatus = "disputed"
	ResultStatusResolved ResultStatus = "resolved"
)

// Result is created once resolution of a match begins
type Result struct {
	MatchID         string           `db:"match_id" json:"match_id"`
	WinnerUserID    *string          `db:"winner_user_id" json:"winner_user_id,omitempty"`
	WinnerSide      *TeamSide        `db:"winner_side" json:"winner_side,omitempty"`
	Status          ResultStatus     `db:"status" json:"status"`
	DisputeReason   *string          `db:"dispute_reason" json:"dispute_reason,omitempty"`
	AdminNotes      *string          `db:"admin_notes" json:"admin_notes,omitempty"`
	WinnerConfirmed bool             `db:"winner_confirmed" json:"winner_confirmed"`
	LoserConfirmed  bool             `db:"loser_confirmed" json:"loser_confirmed"`
	Prize           *decimal.Decimal `db:"prize" json:"prize,omitempty"`
	PlatformFee     *decimal.Decimal `db:"platform_fee" json:"platform_fee,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// SetWinner records either a user or a side as winner, never both
func (r *Result) SetWinner(teamSize int, side TeamSide, participants []*Participant) {
	r.WinnerUserID = nil
	r.WinnerSide = nil
	if teamSize == 1 {
		for _, p := range participants {
			if p.Side == side {
				id := p.UserID
				r.WinnerUserID = &id
				return
			}
		}
	}
	s := side
	r.WinnerSide = &s
}

// MatchSnapshot is a complete point-in-time read of a match
type MatchSnapshot struct {
	Match        *Match           `json:"match"`
	Participants []*Participant   `json:"participants"`
	Result       *Result          `json:"result,omitempty"`
	FetchedAt    time.Time        `json:"fetched_at"`
	Public       bool             `json:"public"`
	SideCounts   map[TeamSide]int `json:"side_counts,omitempty"`
}

// Participant returns the participant for a user, or nil
func (s *MatchSnapshot) Participant(userID string) *Participant {
	if userID == "" {
		return nil
	}
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// BySide returns the participants on one side ordered by join time
func (s *MatchSnapshot) BySide(side TeamSide) []*Participant {
	var out []*Participant
	for _, p := range s.Participants {
		if p.Side == side {
			out = append(out, p)
		}
	}
	sortByJoin(out)
	return out
}

// CountSide returns the seat count for a side; public snapshots carry counts only
func (s *MatchSnapshot) CountSide(side TeamSide) int {
	if s.Public {
		return s.SideCounts[side]
	}
	n := 0
	for _, p := range s.Participants {
		if p.Side == side {
			n++
		}
	}
	return n
}

// IsSideFull checks if a side has reached the team size
func (s *MatchSnapshot) IsSideFull(side TeamSide) bool {
	return s.CountSide(side) >= s.Match.TeamSize
}

// IsFull checks if both sides are at capacity
func (s *MatchSnapshot) IsFull() bool {
	return s.IsSideFull(SideA) && s.IsSideFull(SideB)
}

// TotalLocked sums every participant's locked stake
func (s *MatchSnapshot) TotalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Participants {
		total = total.Add(p.LockedAmount)
	}
	return total
}

// Captain returns the first participant to join a side
func Captain(participants []*Participant, side TeamSide) *Participant {
	var captain *Participant
	for _, p := range participants {
		if p.Side != side {
			continue
		}
		if captain == nil || p.JoinedAt.Before(captain.JoinedAt) ||
			(p.JoinedAt.Equal(captain.JoinedAt) && p.UserID < captain.UserID) {
			captain = p
		}
	}
	return captain
}

func sortByJoin(ps []*Participant) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].UserID < ps[j].UserID
		}
		return ps[i].JoinedAt.Before(ps[j].JoinedAt)
	})
}

// PublicMatchSnapshot is the reduced read exposed to users without rights to the full view
type PublicMatchSnapshot struct {
	MatchID    string           `json:"match_id"`
	Status     MatchStatus      `json:"status"`
	Region     string           `json:"region"`
	TeamSize   int              `json:"team_size"`
	EntryFee   decimal.Decimal  `json:"entry_fee"`
	IsPrivate  bool             `json:"is_private"`
	SideCounts map[TeamSide]int `json:"side_counts"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// NewPublicSnapshot reduces a full snapshot to its public subset
func NewPublicSnapshot(s *MatchSnapshot) *PublicMatchSnapshot {
	return &PublicMatchSnapshot{
		MatchID:   s.Match.ID,
		Status:    s.Match.Status,
		Region:    s.Match.Region,
		TeamSize:  s.Match.TeamSize,
		EntryFee:  s.Match.EntryFee,
		IsPrivate: s.Match.IsPrivate,
		SideCounts: map[TeamSide]int{
			SideA: s.CountSide(SideA),
			SideB: s.CountSide(SideB),
		},
		ExpiresAt: s.Match.ExpiresAt,
	}
}

// ToSnapshot lifts the public read into a snapshot flagged as public
func (p *PublicMatchSnapshot) ToSnapshot(fetchedAt time.Time) *MatchSnapshot {
	counts := make(map[TeamSide]int, len(p.SideCounts))
	for side, n := range p.SideCounts {
		counts[side] = n
	}
	return &MatchSnapshot{
		Match: &Match{
			ID:        p.MatchID,
			Status:    p.Status,
			TeamSize:  p.TeamSize,
			EntryFee:  p.EntryFee,
			Region:    p.Region,
			IsPrivate: p.IsPrivate,
			ExpiresAt: p.ExpiresAt,
		},
		FetchedAt:  fetchedAt,
		Public:     true,
		SideCounts: counts,
	}
}

// PaymentMode selects how a seat is paid for
type PaymentMode string

const (
	PaymentModeWallet   PaymentMode = "wallet"
	PaymentModeCheckout PaymentMode = "checkout"
)

// JoinOptions carries the optional join parameters
type JoinOptions struct {
	Side        *TeamSide   `json:"side,omitempty"`
	TeamID      *string     `json:"team_id,omitempty"`
	PaymentMode PaymentMode `json:"payment_mode,omitempty"`
}

// CreateMatchParams holds the inputs for creating a match
type CreateMatchParams struct {
	TeamSize  int             `json:"team_size"`
	EntryFee  decimal.Decimal `json:"entry_fee"`
	Region    string          `json:"region"`
	IsPrivate bool            `json:"is_private"`
	TeamID    *string         `json:"team_id,omitempty"`
}

// AdminAction is the outcome an administrator chooses for a disputed match
type AdminAction string

const (
	AdminAwardSideA AdminAction = "AWARD_A"
	AdminAwardSideB AdminAction = "AWARD_B"
	AdminRefundBoth AdminAction = "REFUND_BOTH"
)

// IsValid checks the admin action is known
func (a AdminAction) IsValid() bool {
	return a == AdminAwardSideA || a == AdminAwardSideB || a == AdminRefundBoth
}

// WinnerSide returns the side awarded by the action, if any
func (a AdminAction) WinnerSide() (TeamSide, bool) {
	switch a {
	case AdminAwardSideA:
		return SideA, true
	case AdminAwardSideB:
		return SideB, true
	}
	return "", false
}
