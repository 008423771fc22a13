package entities

import "fmt"

// ReasonCode is the enumerated reason a match action was refused
type ReasonCode string

const (
	ReasonMatchFull              ReasonCode = "MATCH_FULL"
	ReasonInsufficientBalance    ReasonCode = "INSUFFICIENT_BALANCE"
	ReasonAlreadyInActiveMatch   ReasonCode = "ALREADY_IN_ACTIVE_MATCH"
	ReasonNotAuthenticated       ReasonCode = "NOT_AUTHENTICATED"
	ReasonMatchNotJoinable       ReasonCode = "MATCH_NOT_JOINABLE"
	ReasonInvalidMatchState      ReasonCode = "INVALID_MATCH_STATE"
	ReasonMatchExpired           ReasonCode = "MATCH_EXPIRED"
	ReasonMatchNotFound          ReasonCode = "MATCH_NOT_FOUND"
	ReasonAlreadyParticipant     ReasonCode = "ALREADY_PARTICIPANT"
	ReasonNotParticipant         ReasonCode = "NOT_PARTICIPANT"
	ReasonNotCreator             ReasonCode = "NOT_CREATOR"
	ReasonCreatorCannotLeave     ReasonCode = "CREATOR_CANNOT_LEAVE"
	ReasonOpponentJoined         ReasonCode = "OPPONENT_JOINED"
	ReasonAlreadyReady           ReasonCode = "ALREADY_READY"
	ReasonAlreadyDeclared        ReasonCode = "ALREADY_DECLARED"
	ReasonInvalidResultChoice    ReasonCode = "INVALID_RESULT_CHOICE"
	ReasonNotAdmin               ReasonCode = "NOT_ADMIN"
	ReasonInvalidAdminAction     ReasonCode = "INVALID_ADMIN_ACTION"
	ReasonInvalidTeamSize        ReasonCode = "INVALID_TEAM_SIZE"
	ReasonInvalidEntryFee        ReasonCode = "INVALID_ENTRY_FEE"
	ReasonInvalidSide            ReasonCode = "INVALID_SIDE"
	ReasonPaymentModeUnsupported ReasonCode = "PAYMENT_MODE_UNSUPPORTED"
	ReasonActionPending          ReasonCode = "ACTION_PENDING"
	ReasonNotExpired             ReasonCode = "NOT_EXPIRED"
	ReasonUnknown                ReasonCode = "UNKNOWN"
)

// ReasonClass groups reason codes by how the user can react to them
type ReasonClass string

const (
	ClassValidation ReasonClass = "validation"
	ClassState      ReasonClass = "state"
	ClassAuth       ReasonClass = "auth"
	ClassFunds      ReasonClass = "funds"
	ClassTransport  ReasonClass = "transport"
)

var knownReasons = map[ReasonCode]struct {
	class   ReasonClass
	message string
}{
	ReasonMatchFull:              {ClassState, "This match is already full."},
	ReasonInsufficientBalance:    {ClassFunds, "You don't have enough available balance for the entry fee."},
	ReasonAlreadyInActiveMatch:   {ClassValidation, "You're already in an active match. Finish or leave it first."},
	ReasonNotAuthenticated:       {ClassAuth, "Please sign in to continue."},
	ReasonMatchNotJoinable:       {ClassState, "This match can't be joined right now."},
	ReasonInvalidMatchState:      {ClassState, "That action isn't available at this stage of the match."},
	ReasonMatchExpired:           {ClassState, "This match has expired."},
	ReasonMatchNotFound:          {ClassValidation, "Match not found."},
	ReasonAlreadyParticipant:     {ClassValidation, "You're already in this match."},
	ReasonNotParticipant:         {ClassAuth, "Only participants can do that."},
	ReasonNotCreator:             {ClassAuth, "Only the match creator can do that."},
	ReasonCreatorCannotLeave:     {ClassValidation, "The creator can't leave; cancel the match instead."},
	ReasonOpponentJoined:         {ClassState, "An opponent has already joined, so the match can't be canceled."},
	ReasonAlreadyReady:           {ClassValidation, "You're already marked as ready."},
	ReasonAlreadyDeclared:        {ClassValidation, "You've already declared a result."},
	ReasonInvalidResultChoice:    {ClassValidation, "Choose either WIN or LOSS."},
	ReasonNotAdmin:               {ClassAuth, "Only administrators can do that."},
	ReasonInvalidAdminAction:     {ClassValidation, "Unknown resolution action."},
	ReasonInvalidTeamSize:        {ClassValidation, "Team size must be between 1 and 4."},
	ReasonInvalidEntryFee:        {ClassValidation, "Entry fee must be a positive amount."},
	ReasonInvalidSide:            {ClassValidation, "Pick side A or B."},
	ReasonPaymentModeUnsupported: {ClassValidation, "That payment method isn't available for matches."},
	ReasonActionPending:          {ClassValidation, "Hold on, your previous action is still processing."},
	ReasonNotExpired:             {ClassState, "This match hasn't expired yet."},
	ReasonUnknown:                {ClassTransport, "Something went wrong. Please try again."},
}

// IsKnown checks the code against the enumerated set
func (c ReasonCode) IsKnown() bool {
	_, ok := knownReasons[c]
	return ok
}

// Class returns the reason class, transport for unknown codes
func (c ReasonCode) Class() ReasonClass {
	if r, ok := knownReasons[c]; ok {
		return r.class
	}
	return ClassTransport
}

// UserMessage returns the centrally controlled copy for a reason code
func (c ReasonCode) UserMessage() string {
	if r, ok := knownReasons[c]; ok {
		return r.message
	}
	return knownReasons[ReasonUnknown].message
}

// Normalize maps unrecognized wire codes onto UNKNOWN
func (c ReasonCode) Normalize() ReasonCode {
	if c.IsKnown() {
		return c
	}
	return ReasonUnknown
}

func (c ReasonCode) String() string {
	return string(c)
}

// GuardError is returned when a transition is attempted outside its guard
type GuardError struct {
	Reason  ReasonCode
	Message string
}

// NewGuardError creates a guard error with a formatted detail message
func NewGuardError(reason ReasonCode, format string, args ...any) *GuardError {
	return &GuardError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface
func (e *GuardError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// ActionResult is the tagged response of every match action
type ActionResult struct {
	Success    bool        `json:"success"`
	ReasonCode ReasonCode  `json:"reason_code,omitempty"`
	Message    string      `json:"message,omitempty"`
	MatchID    string      `json:"match_id,omitempty"`
	Status     MatchStatus `json:"status,omitempty"`
	Settlement *PrizeSplit `json:"settlement,omitempty"`
}

// Succeeded builds a successful result
func Succeeded(matchID string, status MatchStatus) ActionResult {
	return ActionResult{Success: true, MatchID: matchID, Status: status}
}

// Refused builds a failed result from a guard error
func Refused(err *GuardError) ActionResult {
	return ActionResult{Success: false, ReasonCode: err.Reason, Message: err.Message}
}

// Failed builds a failed result for a reason code
func Failed(reason ReasonCode, message string) ActionResult {
	return ActionResult{Success: false, ReasonCode: reason, Message: message}
}

// UserMessage returns the copy shown to the user for a failed result
func (r ActionResult) UserMessage() string {
	if r.Success {
		return ""
	}
	return r.ReasonCode.UserMessage()
}

// Err converts a failed result into a GuardError
func (r ActionResult) Err() error {
	if r.Success {
		return nil
	}
	return &GuardError{Reason: r.ReasonCode.Normalize(), Message: r.Message}
}
