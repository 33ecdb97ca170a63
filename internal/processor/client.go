// Package processor предоставляет клиент Stripe для подключённых аккаунтов продавцов.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"
)

// ErrNotConfigured возвращается, если клиент создан без адреса или ключа.
var ErrNotConfigured = errors.New("processor client not configured")

// Client запрашивает состояние и баланс подключённых аккаунтов.
type Client struct {
	api        *client.API
	configured bool
}

// NewClient создаёт клиент Stripe. Транспортом служит go-retryablehttp: идемпотентные
// GET-запросы повторяются при ошибках соединения, 429 и 5xx не более retryMax раз,
// собственные повторы SDK отключены.
func NewClient(baseURL, secretKey string, timeout time.Duration, retryMax int, logger *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = timeout

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(strings.TrimRight(baseURL, "/")),
		HTTPClient:        rc.StandardClient(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Sugar(),
	})

	return &Client{
		api:        client.New(secretKey, &stripe.Backends{API: backend}),
		configured: baseURL != "" && secretKey != "",
	}
}

// GetAccount запрашивает состояние подключённого аккаунта.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	if c == nil || !c.configured {
		return nil, ErrNotConfigured
	}

	params := &stripe.AccountParams{}
	params.Context = ctx

	acc, err := c.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// GetBalance запрашивает баланс подключённого аккаунта от его имени.
func (c *Client) GetBalance(ctx context.Context, accountID string) (*stripe.Balance, error) {
	if c == nil || !c.configured {
		return nil, ErrNotConfigured
	}

	params := &stripe.BalanceParams{}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	bal, err := c.api.Balance.Get(params)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

// AvailableIn возвращает доступную сумму в указанной валюте, 0 если записи нет.
func AvailableIn(b *stripe.Balance, currency string) int64 {
	if b == nil {
		return 0
	}
	for _, a := range b.Available {
		if a != nil && strings.EqualFold(string(a.Currency), currency) {
			return a.Amount
		}
	}
	return 0
}

// PendingIn возвращает ожидающую сумму в указанной валюте, 0 если записи нет.
func PendingIn(b *stripe.Balance, currency string) int64 {
	if b == nil {
		return 0
	}
	for _, a := range b.Pending {
		if a != nil && strings.EqualFold(string(a.Currency), currency) {
			return a.Amount
		}
	}
	return 0
}
