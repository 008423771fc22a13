package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PlatformFeeRate is taken once from the total pool of a settled match
var PlatformFeeRate = decimal.RequireFromString("0.05")

// moneyPlaces is the precision every escrow amount is rounded to
const moneyPlaces int32 = 8

// PrizeSplit is the settlement of a match's locked pool
type PrizeSplit struct {
	TotalPool   decimal.Decimal            `json:"total_pool"`
	Prize       decimal.Decimal            `json:"prize"`
	PlatformFee decimal.Decimal            `json:"platform_fee"`
	Payouts     map[string]decimal.Decimal `json:"payouts,omitempty"`
}

// ComputeSplit applies the platform fee to a pool so that prize + fee == pool exactly
func ComputeSplit(pool decimal.Decimal) PrizeSplit {
	fee := pool.Mul(PlatformFeeRate).Round(moneyPlaces)
	return PrizeSplit{
		TotalPool:   pool,
		Prize:       pool.Sub(fee),
		PlatformFee: fee,
	}
}

// DistributePrize divides the prize between the winners, giving the rounding remainder to the captain
func DistributePrize(split PrizeSplit, winners []*Participant, captain *Participant) PrizeSplit {
	split.Payouts = make(map[string]decimal.Decimal, len(winners))
	if len(winners) == 0 {
		return split
	}

	share := split.Prize.Div(decimal.NewFromInt(int64(len(winners)))).Truncate(moneyPlaces)
	distributed := decimal.Zero
	for _, w := range winners {
		split.Payouts[w.UserID] = share
		distributed = distributed.Add(share)
	}

	remainder := split.Prize.Sub(distributed)
	if !remainder.IsZero() {
		recipient := winners[0]
		if captain != nil {
			recipient = captain
		}
		split.Payouts[recipient.UserID] = split.Payouts[recipient.UserID].Add(remainder)
	}
	return split
}

// SettleSnapshot computes the full settlement of a match won by a side
func SettleSnapshot(snapshot *MatchSnapshot, winner TeamSide) PrizeSplit {
	split := ComputeSplit(snapshot.TotalLocked())
	winners := snapshot.BySide(winner)
	return DistributePrize(split, winners, Captain(snapshot.Participants, winner))
}

// Equal reports whether two settlements agree on every amount
func (s PrizeSplit) Equal(other PrizeSplit) bool {
	if !s.TotalPool.Equal(other.TotalPool) || !s.Prize.Equal(other.Prize) || !s.PlatformFee.Equal(other.PlatformFee) {
		return false
	}
	if len(s.Payouts) != len(other.Payouts) {
		return false
	}
	for user, amount := range s.Payouts {
		if theirs, ok := other.Payouts[user]; !ok || !amount.Equal(theirs) {
			return false
		}
	}
	return true
}

// Validate checks the conservation invariant of a settlement
func (s PrizeSplit) Validate() error {
	if !s.Prize.Add(s.PlatformFee).Equal(s.TotalPool) {
		return fmt.Errorf("prize %s + fee %s does not equal pool %s", s.Prize, s.PlatformFee, s.TotalPool)
	}
	if len(s.Payouts) == 0 {
		return nil
	}
	paid := decimal.Zero
	for _, amount := range s.Payouts {
		paid = paid.Add(amount)
	}
	if !paid.Equal(s.Prize) {
		return fmt.Errorf("payouts %s do not equal prize %s", paid, s.Prize)
	}
	return nil
}

// ReconciliationMismatch describes a local estimate the server disagreed with
type ReconciliationMismatch struct {
	MatchID string
	Local   PrizeSplit
	Server  PrizeSplit
}

// Error implements the error interface
func (m *ReconciliationMismatch) Error() string {
	return fmt.Sprintf("settlement mismatch for match %s: local prize %s fee %s, server prize %s fee %s",
		m.MatchID, m.Local.Prize, m.Local.PlatformFee, m.Server.Prize, m.Server.PlatformFee)
}
