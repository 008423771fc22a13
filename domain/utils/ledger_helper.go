package utils

import (
	"context"
	"fmt"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// RecordEscrowMove records a ledger entry and emits the balance change event.
// This is the single entry point for every wallet movement in the ledger.
func RecordEscrowMove(ctx context.Context, ledgerRepo interfaces.LedgerEntryRepository, eventPublisher interfaces.EventPublisher, entry *entities.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid %s entry for %s: %w", entry.EntryType, entry.UserID, err)
	}

	if err := ledgerRepo.Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	event := events.BalanceChangeEvent{
		UserID:          entry.UserID,
		EntryType:       entry.EntryType,
		Amount:          entry.Amount,
		AvailableBefore: entry.AvailableBefore,
		AvailableAfter:  entry.AvailableAfter,
		LockedBefore:    entry.LockedBefore,
		LockedAfter:     entry.LockedAfter,
	}
	if entry.MatchID != nil {
		event.MatchID = *entry.MatchID
	}

	log.WithFields(log.Fields{
		"userID":    event.UserID,
		"matchID":   event.MatchID,
		"entryType": event.EntryType,
		"amount":    event.Amount.String(),
	}).Debug("Publishing BalanceChangeEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}

	return nil
}

// NewLedgerEntry snapshots a wallet before a move; call Complete after applying it
func NewLedgerEntry(wallet *entities.Wallet, matchID *string, entryType entities.EntryType) *entities.LedgerEntry {
	return &entities.LedgerEntry{
		UserID:          wallet.UserID,
		MatchID:         matchID,
		EntryType:       entryType,
		AvailableBefore: wallet.Available,
		LockedBefore:    wallet.Locked,
	}
}

// CompleteLedgerEntry fills the after balances and amount of an entry
func CompleteLedgerEntry(entry *entities.LedgerEntry, wallet *entities.Wallet) *entities.LedgerEntry {
	entry.AvailableAfter = wallet.Available
	entry.LockedAfter = wallet.Locked
	switch entry.EntryType {
	case entities.EntryTypeLock, entities.EntryTypeStakeRelease:
		entry.Amount = entry.LockedAfter.Sub(entry.LockedBefore).Abs()
	default:
		entry.Amount = entry.AvailableAfter.Sub(entry.AvailableBefore).Abs()
	}
	return entry
}
