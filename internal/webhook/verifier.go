// Package webhook проверяет подлинность входящих вебхуков Stripe и декодирует
// объекты событий.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader содержит подпись вебхука.
const SignatureHeader = "Stripe-Signature"

// ErrVerification возвращается при отсутствующей, некорректной или просроченной подписи.
var ErrVerification = errors.New("webhook signature verification failed")

const (
	EventAccountUpdated      stripe.EventType = "account.updated"
	EventAccountDeauthorized stripe.EventType = "account.application.deauthorized"
)

// Verifier проверяет подпись вебхука по общему секрету.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier создаёт Verifier. Нулевой tolerance означает окно по умолчанию Stripe.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{
		secret:    secret,
		tolerance: tolerance,
	}
}

// Verify проверяет подпись над исходным, неизменённым телом запроса и декодирует событие.
func (v *Verifier) Verify(payload []byte, header string) (*stripe.Event, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: secret not configured", ErrVerification)
	}

	event, err := stripewebhook.ConstructEventWithOptions(payload, header, v.secret, stripewebhook.ConstructEventOptions{
		Tolerance: v.tolerance,
		// Версия API событий задаётся в настройках эндпоинта, а не версией SDK.
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: event type missing", ErrVerification)
	}

	return &event, nil
}

// DecodeAccount декодирует объект события как аккаунт.
func DecodeAccount(e *stripe.Event) (*stripe.Account, error) {
	var acc stripe.Account
	if err := decodeObject(e, &acc); err != nil {
		return nil, fmt.Errorf("decode account object: %w", err)
	}
	return &acc, nil
}

// DecodeApplication декодирует объект события как приложение.
func DecodeApplication(e *stripe.Event) (*stripe.Application, error) {
	var app stripe.Application
	if err := decodeObject(e, &app); err != nil {
		return nil, fmt.Errorf("decode application object: %w", err)
	}
	return &app, nil
}

func decodeObject(e *stripe.Event, dst any) error {
	if e.Data == nil || len(e.Data.Raw) == 0 {
		return errors.New("event has no data object")
	}
	return json.Unmarshal(e.Data.Raw, dst)
}
