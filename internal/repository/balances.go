package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ticketpay/internal/model"
)

const (
	sqlGetBalanceCache = `SELECT user_id::text, external_account_id, available_balance_cents,
		pending_balance_cents, payouts_enabled, details_submitted, last_synced_at
		FROM seller_balances WHERE user_id = $1`

	sqlRefreshBalanceCache = `UPDATE seller_balances
		SET available_balance_cents = $3, pending_balance_cents = $4, payouts_enabled = $5,
			details_submitted = $6, last_synced_at = $7
		WHERE user_id = $1 AND external_account_id = $2`

	sqlUpdateBalanceFlags = `UPDATE seller_balances SET payouts_enabled = $2, details_submitted = $3
		WHERE user_id = $1`

	sqlClearBalanceAccount = `UPDATE seller_balances
		SET external_account_id = NULL, payouts_enabled = false WHERE user_id = $1`
)

// GetBalanceCache возвращает кэш баланса продавца.
func (r *PostgresRepository) GetBalanceCache(ctx context.Context, userID string) (*model.BalanceCache, error) {
	var (
		b        model.BalanceCache
		syncedAt *time.Time
	)
	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, sqlGetBalanceCache, userID).Scan(
			&b.UserID, &b.ExternalAccountID, &b.AvailableCents, &b.PendingCents,
			&b.PayoutsEnabled, &b.DetailsSubmitted, &syncedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get balance cache: %w", err)
	}
	if syncedAt != nil {
		b.LastSyncedAt = *syncedAt
	}
	return &b, nil
}

// RefreshBalanceCache перезаписывает суммы и флаги в кэше баланса, только пока к продавцу
// привязан accountID. Если аккаунт успели отвязать или заменить, возвращает ErrNotFound.
func (r *PostgresRepository) RefreshBalanceCache(ctx context.Context, accountID string, b model.BalanceCache) error {
	return r.execOne(ctx, "refresh balance cache", sqlRefreshBalanceCache,
		b.UserID, accountID, b.AvailableCents, b.PendingCents,
		b.PayoutsEnabled, b.DetailsSubmitted, b.LastSyncedAt)
}

// UpdateBalanceFlags перезаписывает флаги аккаунта в кэше баланса.
func (r *PostgresRepository) UpdateBalanceFlags(ctx context.Context, userID string, flags model.AccountFlags) error {
	return r.execOne(ctx, "update balance flags", sqlUpdateBalanceFlags,
		userID, flags.PayoutsEnabled, flags.DetailsSubmitted)
}

// ClearBalanceAccount отвязывает аккаунт процессора от кэша баланса.
func (r *PostgresRepository) ClearBalanceAccount(ctx context.Context, userID string) error {
	return r.execOne(ctx, "clear balance account", sqlClearBalanceAccount, userID)
}
