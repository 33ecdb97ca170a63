package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ticketpay/internal/model"
)

// Записи по аккаунтам только перезаписывают значения, без инкрементов: повторная доставка
// события сходится к тому же состоянию.
const (
	sqlFindUserByExternalAccount = `SELECT user_id::text FROM payment_accounts WHERE external_account_id = $1`

	sqlUpdateAccountFlags = `UPDATE payment_accounts
		SET charges_enabled = $2, payouts_enabled = $3, details_submitted = $4,
			onboarded = $5, updated_at = now()
		WHERE user_id = $1`

	sqlClearAccount = `UPDATE payment_accounts
		SET external_account_id = '', onboarded = false, updated_at = now()
		WHERE user_id = $1`

	sqlSetOnboarded = `UPDATE payment_accounts SET onboarded = true, updated_at = now()
		WHERE user_id = $1 AND external_account_id = $2`

	sqlCancelActiveListings = `UPDATE listings SET status = $2, updated_at = now()
		WHERE seller_id = $1 AND status = $3`
)

// FindUserIDByExternalAccount возвращает владельца аккаунта процессора.
func (r *PostgresRepository) FindUserIDByExternalAccount(ctx context.Context, accountID string) (string, error) {
	var userID string
	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, sqlFindUserByExternalAccount, accountID).Scan(&userID)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("find user by account: %w", err)
	}
	return userID, nil
}

// UpdateAccountFlags перезаписывает флаги онбординга и выплат.
func (r *PostgresRepository) UpdateAccountFlags(ctx context.Context, userID string, flags model.AccountFlags) error {
	return r.execOne(ctx, "update account flags", sqlUpdateAccountFlags,
		userID, flags.ChargesEnabled, flags.PayoutsEnabled, flags.DetailsSubmitted, flags.Onboarded())
}

// ClearAccount отвязывает аккаунт процессора и сбрасывает признак онбординга.
func (r *PostgresRepository) ClearAccount(ctx context.Context, userID string) error {
	return r.execOne(ctx, "clear account", sqlClearAccount, userID)
}

// SetOnboarded выставляет признак завершённого онбординга, если к продавцу
// всё ещё привязан accountID.
func (r *PostgresRepository) SetOnboarded(ctx context.Context, userID, accountID string) error {
	return r.execOne(ctx, "set onboarded", sqlSetOnboarded, userID, accountID)
}

// CancelActiveListings переводит все активные объявления продавца в cancelled.
func (r *PostgresRepository) CancelActiveListings(ctx context.Context, userID string) (int64, error) {
	var affected int64
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, sqlCancelActiveListings,
			userID, string(model.ListingStatusCancelled), string(model.ListingStatusActive))
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cancel active listings: %w", err)
	}
	return affected, nil
}

// execOne выполняет запрос и возвращает ErrNotFound, если ни одна строка не затронута.
func (r *PostgresRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	var affected int64
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
