package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticketpay/internal/model"
	"github.com/mmeshcher/ticketpay/internal/repository"
	"github.com/mmeshcher/ticketpay/internal/webhook"
)

// AccountStore описывает контракт хранилища, используемый сверкой аккаунтов.
type AccountStore interface {
	FindUserIDByExternalAccount(ctx context.Context, accountID string) (string, error)
	UpdateAccountFlags(ctx context.Context, userID string, flags model.AccountFlags) error
	ClearAccount(ctx context.Context, userID string) error
	CancelActiveListings(ctx context.Context, userID string) (int64, error)
	UpdateBalanceFlags(ctx context.Context, userID string, flags model.AccountFlags) error
	ClearBalanceAccount(ctx context.Context, userID string) error
}

// Outcome описывает итог обработки события вебхука.
type Outcome string

const (
	// OutcomeApplied: состояние аккаунта обновлено.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped: событие не относится к известному пользователю.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored: тип события не обрабатывается.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeStoreFailed: запись в хранилище не удалась, событие всё равно подтверждается.
	OutcomeStoreFailed Outcome = "store_failed"
)

const metadataUserIDKey = "user_id"

type eventHandler func(ctx context.Context, event *stripe.Event) (Outcome, error)

// Reconciler применяет события жизненного цикла аккаунта к записям хранилища.
// Все изменения перезаписывают значения, повторная доставка события безопасна.
type Reconciler struct {
	store    AccountStore
	logger   *zap.Logger
	handlers map[stripe.EventType]eventHandler
}

// NewReconciler создаёт Reconciler с таблицей обработчиков событий.
func NewReconciler(store AccountStore, logger *zap.Logger) *Reconciler {
	r := &Reconciler{
		store:  store,
		logger: logger,
	}
	r.handlers = map[stripe.EventType]eventHandler{
		webhook.EventAccountUpdated:      r.accountUpdated,
		webhook.EventAccountDeauthorized: r.accountDeauthorized,
	}
	return r
}

// Handle направляет проверенное событие обработчику его типа.
// Неизвестные типы подтверждаются без изменений.
func (r *Reconciler) Handle(ctx context.Context, event *stripe.Event) (Outcome, error) {
	handle, ok := r.handlers[event.Type]
	if !ok {
		r.logger.Info("unhandled webhook event type",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
		)
		return OutcomeIgnored, nil
	}
	return handle(ctx, event)
}

func (r *Reconciler) accountUpdated(ctx context.Context, event *stripe.Event) (Outcome, error) {
	acc, err := webhook.DecodeAccount(event)
	if err != nil {
		return "", fmt.Errorf("account.updated %s: %w", event.ID, err)
	}

	accountID := acc.ID
	if accountID == "" {
		accountID = event.Account
	}

	userID, ok, err := r.resolveUser(ctx, acc.Metadata[metadataUserIDKey], accountID)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeSkipped, nil
	}

	flags := model.AccountFlags{
		ChargesEnabled:   acc.ChargesEnabled,
		PayoutsEnabled:   acc.PayoutsEnabled,
		DetailsSubmitted: acc.DetailsSubmitted,
	}

	log := r.logger.With(
		zap.String("event_id", event.ID),
		zap.String("user_id", userID),
		zap.String("account_id", accountID),
	)

	if err := r.store.UpdateAccountFlags(ctx, userID, flags); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("account.updated for user without payment account")
			return OutcomeSkipped, nil
		}
		log.Error("update account flags", zap.Error(err))
		return OutcomeStoreFailed, nil
	}

	if err := r.store.UpdateBalanceFlags(ctx, userID, flags); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Warn("refresh balance cache flags", zap.Error(err))
	}

	log.Info("account reconciled", zap.Bool("onboarded", flags.Onboarded()))
	return OutcomeApplied, nil
}

func (r *Reconciler) accountDeauthorized(ctx context.Context, event *stripe.Event) (Outcome, error) {
	app, err := webhook.DecodeApplication(event)
	if err != nil {
		return "", fmt.Errorf("account.application.deauthorized %s: %w", event.ID, err)
	}

	userID, ok, err := r.resolveUser(ctx, "", event.Account)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeSkipped, nil
	}

	log := r.logger.With(
		zap.String("event_id", event.ID),
		zap.String("user_id", userID),
		zap.String("account_id", event.Account),
		zap.String("application_id", app.ID),
	)

	if err := r.store.ClearAccount(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return OutcomeSkipped, nil
		}
		log.Error("clear payment account", zap.Error(err))
		return OutcomeStoreFailed, nil
	}

	if err := r.store.ClearBalanceAccount(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Warn("clear balance cache account", zap.Error(err))
	}

	cancelled, err := r.store.CancelActiveListings(ctx, userID)
	if err != nil {
		log.Error("cancel active listings after deauthorization", zap.Error(err))
	} else {
		log.Info("account deauthorized", zap.Int64("cancelled_listings", cancelled))
	}

	return OutcomeApplied, nil
}

// resolveUser находит владельца аккаунта: по метаданным, иначе по сохранённому идентификатору аккаунта.
func (r *Reconciler) resolveUser(ctx context.Context, metadataUserID, accountID string) (string, bool, error) {
	if metadataUserID != "" {
		return metadataUserID, true, nil
	}
	if accountID == "" {
		return "", false, nil
	}

	userID, err := r.store.FindUserIDByExternalAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, unavailable("resolve account owner", err)
	}
	return userID, true, nil
}
