package entities

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a user's balance as owned by the ledger
type Wallet struct {
	UserID    string          `db:"user_id" json:"user_id"`
	Available decimal.Decimal `db:"available" json:"available"`
	Locked    decimal.Decimal `db:"locked" json:"locked"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// CanAfford checks if the available balance covers an amount
func (w *Wallet) CanAfford(amount decimal.Decimal) bool {
	return w.Available.GreaterThanOrEqual(amount)
}

// Total returns available plus locked
func (w *Wallet) Total() decimal.Decimal {
	return w.Available.Add(w.Locked)
}

// ApplyLock moves an amount from available into locked
func (w *Wallet) ApplyLock(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("lock amount must be positive")
	}
	if !w.CanAfford(amount) {
		return errors.New("insufficient available balance")
	}
	w.Available = w.Available.Sub(amount)
	w.Locked = w.Locked.Add(amount)
	return nil
}

// ApplyRefund returns a locked amount to available
func (w *Wallet) ApplyRefund(amount decimal.Decimal) error {
	if w.Locked.LessThan(amount) {
		return errors.New("refund exceeds locked balance")
	}
	w.Locked = w.Locked.Sub(amount)
	w.Available = w.Available.Add(amount)
	return nil
}

// ApplyStakeRelease burns a locked stake into the settled pool
func (w *Wallet) ApplyStakeRelease(amount decimal.Decimal) error {
	if w.Locked.LessThan(amount) {
		return errors.New("stake release exceeds locked balance")
	}
	w.Locked = w.Locked.Sub(amount)
	return nil
}

// ApplyCredit credits available balance from a settled pool
func (w *Wallet) ApplyCredit(amount decimal.Decimal) {
	w.Available = w.Available.Add(amount)
}

// EntryType is the kind of escrow movement recorded in the ledger
type EntryType string

const (
	EntryTypeInitial      EntryType = "initial"
	EntryTypeLock         EntryType = "lock"
	EntryTypeRefund       EntryType = "refund"
	EntryTypeStakeRelease EntryType = "stake_release"
	EntryTypePrize        EntryType = "prize"
	EntryTypePlatformFee  EntryType = "platform_fee"
)

// IsEscrowType returns true for movements between available and locked
func (t EntryType) IsEscrowType() bool {
	return t == EntryTypeLock || t == EntryTypeRefund
}

// IsSettlementType returns true for movements created by resolution
func (t EntryType) IsSettlementType() bool {
	return t == EntryTypeStakeRelease || t == EntryTypePrize || t == EntryTypePlatformFee
}

func (t EntryType) String() string {
	return string(t)
}

// PlatformAccountID owns the platform fee entries
const PlatformAccountID = "platform"

// LedgerEntry records one escrow movement for a user
type LedgerEntry struct {
	ID              int64           `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	MatchID         *string         `db:"match_id" json:"match_id,omitempty"`
	EntryType       EntryType       `db:"entry_type" json:"entry_type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	AvailableBefore decimal.Decimal `db:"available_before" json:"available_before"`
	AvailableAfter  decimal.Decimal `db:"available_after" json:"available_after"`
	LockedBefore    decimal.Decimal `db:"locked_before" json:"locked_before"`
	LockedAfter     decimal.Decimal `db:"locked_after" json:"locked_after"`
	Metadata        map[string]any  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// IsPlatformFee returns true for the fee record of a settled match
func (e *LedgerEntry) IsPlatformFee() bool {
	return e.EntryType == EntryTypePlatformFee
}

// Validate checks the before/after balances agree with the entry type
func (e *LedgerEntry) Validate() error {
	if e.Amount.IsNegative() {
		return errors.New("entry amount cannot be negative")
	}
	if e.EntryType == EntryTypePlatformFee {
		return nil
	}
	availDelta := e.AvailableAfter.Sub(e.AvailableBefore)
	lockedDelta := e.LockedAfter.Sub(e.LockedBefore)
	switch e.EntryType {
	case EntryTypeLock:
		if !availDelta.Equal(e.Amount.Neg()) || !lockedDelta.Equal(e.Amount) {
			return errors.New("lock entry is inconsistent")
		}
	case EntryTypeRefund:
		if !availDelta.Equal(e.Amount) || !lockedDelta.Equal(e.Amount.Neg()) {
			return errors.New("refund entry is inconsistent")
		}
	case EntryTypeStakeRelease:
		if !availDelta.IsZero() || !lockedDelta.Equal(e.Amount.Neg()) {
			return errors.New("stake release entry is inconsistent")
		}
	case EntryTypePrize, EntryTypeInitial:
		if !availDelta.Equal(e.Amount) || !lockedDelta.IsZero() {
			return errors.New("credit entry is inconsistent")
		}
	default:
		return errors.New("unknown entry type")
	}
	return nil
}
