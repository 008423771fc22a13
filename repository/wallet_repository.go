package repository

import (
	"context"
	"errors"
	"fmt"

	"gambler/arena/database"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository implements wallet data access
type WalletRepository struct {
	q queryable
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *database.DB) *WalletRepository {
	return &WalletRepository{q: db.Pool}
}

// newWalletRepositoryWithTx creates a new wallet repository with a transaction
func newWalletRepositoryWithTx(tx queryable) interfaces.WalletRepository {
	return &WalletRepository{q: tx}
}

// GetOrCreate returns the wallet, inserting it with a starting balance on first use
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID string, startingBalance decimal.Decimal) (*entities.Wallet, bool, error) {
	insert := `
		INSERT INTO wallets (user_id, available, locked)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING user_id, available, locked, updated_at
	`

	wallet, err := scanWallet(r.q.QueryRow(ctx, insert, userID, startingBalance))
	if err == nil {
		return wallet, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create wallet for %s: %w", userID, err)
	}

	wallet, err = r.get(ctx, `SELECT user_id, available, locked, updated_at FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		return nil, false, err
	}
	if wallet == nil {
		return nil, false, fmt.Errorf("wallet for %s: %w", userID, entities.ErrWalletNotFound)
	}
	return wallet, false, nil
}

// GetForUpdate returns the wallet and locks its row
func (r *WalletRepository) GetForUpdate(ctx context.Context, userID string) (*entities.Wallet, error) {
	return r.get(ctx, `SELECT user_id, available, locked, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
}

func (r *WalletRepository) get(ctx context.Context, query, userID string) (*entities.Wallet, error) {
	wallet, err := scanWallet(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet for %s: %w", userID, err)
	}
	return wallet, nil
}

// Update persists both balances
func (r *WalletRepository) Update(ctx context.Context, wallet *entities.Wallet) error {
	query := `
		UPDATE wallets
		SET available = $2, locked = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query, wallet.UserID, wallet.Available, wallet.Locked).Scan(&wallet.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("wallet for %s: %w", wallet.UserID, entities.ErrWalletNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update wallet for %s: %w", wallet.UserID, err)
	}
	return nil
}

func scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var w entities.Wallet
	if err := row.Scan(&w.UserID, &w.Available, &w.Locked, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}
