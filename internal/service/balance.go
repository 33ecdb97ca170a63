package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ticketpay/internal/model"
	"github.com/mmeshcher/ticketpay/internal/processor"
	"github.com/mmeshcher/ticketpay/internal/repository"
)

// BalanceStore описывает контракт хранилища, используемый синхронизацией баланса.
type BalanceStore interface {
	GetBalanceCache(ctx context.Context, userID string) (*model.BalanceCache, error)
	RefreshBalanceCache(ctx context.Context, accountID string, b model.BalanceCache) error
	SetOnboarded(ctx context.Context, userID, accountID string) error
}

// Processor описывает вызовы внешнего платёжного процессора.
type Processor interface {
	GetAccount(ctx context.Context, accountID string) (*stripe.Account, error)
	GetBalance(ctx context.Context, accountID string) (*stripe.Balance, error)
}

// BalanceService получает баланс продавца у процессора и обновляет его кэш.
type BalanceService struct {
	store           BalanceStore
	processor       Processor
	logger          *zap.Logger
	defaultCurrency string
	timeout         time.Duration
	now             func() time.Time
}

// NewBalanceService создаёт BalanceService. timeout ограничивает каждый вызов процессора.
func NewBalanceService(store BalanceStore, p Processor, logger *zap.Logger, defaultCurrency string, timeout time.Duration) *BalanceService {
	return &BalanceService{
		store:           store,
		processor:       p,
		logger:          logger,
		defaultCurrency: strings.ToLower(defaultCurrency),
		timeout:         timeout,
		now:             time.Now,
	}
}

// Sync возвращает текущий баланс продавца, попутно обновляя кэш.
func (s *BalanceService) Sync(ctx context.Context, userID string) (*model.BalanceSnapshot, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	cache, err := s.store.GetBalanceCache(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, unavailable("get balance cache", err)
	}
	if !cache.HasAccount() {
		return s.noAccount(), nil
	}

	accountID := *cache.ExternalAccountID

	var (
		account *stripe.Account
		balance *stripe.Balance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		callCtx, cancel := s.withTimeout(gctx)
		defer cancel()

		var err error
		account, err = s.processor.GetAccount(callCtx, accountID)
		return err
	})
	g.Go(func() error {
		callCtx, cancel := s.withTimeout(gctx)
		defer cancel()

		var err error
		balance, err = s.processor.GetBalance(callCtx, accountID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable("fetch processor state", err)
	}

	currency := strings.ToLower(string(account.DefaultCurrency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	refreshed := model.BalanceCache{
		UserID:           userID,
		AvailableCents:   nonNegative(processor.AvailableIn(balance, currency)),
		PendingCents:     nonNegative(processor.PendingIn(balance, currency)),
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
		LastSyncedAt:     s.now().UTC(),
	}

	log := s.logger.With(zap.String("user_id", userID), zap.String("account_id", accountID))

	// Пока шёл запрос к процессору, вебхук мог отвязать аккаунт: обе записи
	// условны по accountID и в этом случае ничего не меняют.
	switch err := s.store.RefreshBalanceCache(ctx, accountID, refreshed); {
	case errors.Is(err, repository.ErrNotFound):
		log.Info("account changed during balance sync, cache left as is")
	case err != nil:
		log.Error("refresh balance cache", zap.Error(err))
	}

	if account.PayoutsEnabled && account.ChargesEnabled {
		if err := s.store.SetOnboarded(ctx, userID, accountID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Warn("sync onboarded flag", zap.Error(err))
		}
	}

	return &model.BalanceSnapshot{
		HasAccount:       true,
		AvailableCents:   refreshed.AvailableCents,
		PendingCents:     refreshed.PendingCents,
		PayoutsEnabled:   refreshed.PayoutsEnabled,
		DetailsSubmitted: refreshed.DetailsSubmitted,
		NeedsOnboarding:  !refreshed.PayoutsEnabled,
		Currency:         currency,
	}, nil
}

func (s *BalanceService) noAccount() *model.BalanceSnapshot {
	return &model.BalanceSnapshot{
		HasAccount:      false,
		NeedsOnboarding: true,
		Currency:        s.defaultCurrency,
	}
}

func (s *BalanceService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Отрицательный доступный баланс процессора кэшируется как ноль.
func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
