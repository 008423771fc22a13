package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"
	"gambler/arena/domain/utils"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ErrInsufficientBalance is returned when a lock exceeds the available balance
var ErrInsufficientBalance = errors.New("insufficient available balance")

type escrowService struct {
	walletRepo     interfaces.WalletRepository
	ledgerRepo     interfaces.LedgerEntryRepository
	eventPublisher interfaces.EventPublisher
}

// NewEscrowService creates a new escrow service
func NewEscrowService(
	walletRepo interfaces.WalletRepository,
	ledgerRepo interfaces.LedgerEntryRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.EscrowService {
	return &escrowService{
		walletRepo:     walletRepo,
		ledgerRepo:     ledgerRepo,
		eventPublisher: eventPublisher,
	}
}

// move locks a wallet row, applies fn and records the resulting entry
func (s *escrowService) move(ctx context.Context, userID, matchID string, entryType entities.EntryType, fn func(w *entities.Wallet) error) (*entities.Wallet, error) {
	wallet, err := s.walletRepo.GetForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet for %s: %w", userID, entities.ErrWalletNotFound)
	}

	entry := utils.NewLedgerEntry(wallet, &matchID, entryType)
	if err := fn(wallet); err != nil {
		return nil, err
	}

	if err := s.walletRepo.Update(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}

	if err := utils.RecordEscrowMove(ctx, s.ledgerRepo, s.eventPublisher, utils.CompleteLedgerEntry(entry, wallet)); err != nil {
		return nil, err
	}
	return wallet, nil
}

// Lock moves an amount from available to locked for a user
func (s *escrowService) Lock(ctx context.Context, userID, matchID string, amount decimal.Decimal) (*entities.Wallet, error) {
	return s.move(ctx, userID, matchID, entities.EntryTypeLock, func(w *entities.Wallet) error {
		if !w.CanAfford(amount) {
			return fmt.Errorf("lock of %s with %s available: %w", amount, w.Available, ErrInsufficientBalance)
		}
		return w.ApplyLock(amount)
	})
}

// Refund returns a participant's locked stake to their available balance
func (s *escrowService) Refund(ctx context.Context, participant *entities.Participant) error {
	if !participant.LockedAmount.IsPositive() {
		return nil
	}
	_, err := s.move(ctx, participant.UserID, participant.MatchID, entities.EntryTypeRefund, func(w *entities.Wallet) error {
		return w.ApplyRefund(participant.LockedAmount)
	})
	if err != nil {
		return fmt.Errorf("failed to refund %s: %w", participant.UserID, err)
	}
	return nil
}

// RefundAll refunds every participant of a snapshot
func (s *escrowService) RefundAll(ctx context.Context, snapshot *entities.MatchSnapshot) error {
	for _, p := range byUserID(snapshot.Participants) {
		if err := s.Refund(ctx, p); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"matchID":      snapshot.Match.ID,
		"participants": len(snapshot.Participants),
		"refunded":     snapshot.TotalLocked().String(),
	}).Info("Refunded match stakes")
	return nil
}

// Settle releases all stakes, pays the winners and records the platform fee
func (s *escrowService) Settle(ctx context.Context, snapshot *entities.MatchSnapshot, winner entities.TeamSide) (entities.PrizeSplit, error) {
	split := entities.SettleSnapshot(snapshot, winner)
	if err := split.Validate(); err != nil {
		return entities.PrizeSplit{}, fmt.Errorf("refusing to settle match %s: %w", snapshot.Match.ID, err)
	}

	matchID := snapshot.Match.ID
	participants := byUserID(snapshot.Participants)

	// Wallet rows are locked in user id order on every path
	for _, p := range participants {
		payout := split.Payouts[p.UserID]
		_, err := s.move(ctx, p.UserID, matchID, entities.EntryTypeStakeRelease, func(w *entities.Wallet) error {
			return w.ApplyStakeRelease(p.LockedAmount)
		})
		if err != nil {
			return entities.PrizeSplit{}, fmt.Errorf("failed to release stake of %s: %w", p.UserID, err)
		}
		if !payout.IsPositive() {
			continue
		}
		_, err = s.move(ctx, p.UserID, matchID, entities.EntryTypePrize, func(w *entities.Wallet) error {
			w.ApplyCredit(payout)
			return nil
		})
		if err != nil {
			return entities.PrizeSplit{}, fmt.Errorf("failed to pay prize to %s: %w", p.UserID, err)
		}
	}

	fee := &entities.LedgerEntry{
		UserID:    entities.PlatformAccountID,
		MatchID:   &matchID,
		EntryType: entities.EntryTypePlatformFee,
		Amount:    split.PlatformFee,
		Metadata: map[string]any{
			"total_pool": split.TotalPool.String(),
			"fee_rate":   entities.PlatformFeeRate.String(),
		},
	}
	if err := utils.RecordEscrowMove(ctx, s.ledgerRepo, s.eventPublisher, fee); err != nil {
		return entities.PrizeSplit{}, err
	}

	log.WithFields(log.Fields{
		"matchID":     matchID,
		"winner":      winner,
		"pool":        split.TotalPool.String(),
		"prize":       split.Prize.String(),
		"platformFee": split.PlatformFee.String(),
	}).Info("Settled match")
	return split, nil
}

func byUserID(participants []*entities.Participant) []*entities.Participant {
	sorted := make([]*entities.Participant, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })
	return sorted
}

func isInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}
