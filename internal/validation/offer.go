// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrFreeOfferPriced возвращается, если для бесплатного предложения указана цена.
var ErrFreeOfferPriced = errors.New("free offer must have zero price")

var validate = newValidator()

// Ошибки валидатора называют поля так же, как они называются в JSON запроса.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// OfferInput описывает входные данные для создания предложения билета.
type OfferInput struct {
	EventID        string  `json:"event_id" validate:"required,uuid"`
	RecipientEmail string  `json:"recipient_email" validate:"required,email,max=320"`
	PriceCents     int64   `json:"price_cents" validate:"gte=0"`
	TicketMode     string  `json:"ticket_mode" validate:"required,oneof=free paid_favor"`
	Message        *string `json:"message,omitempty" validate:"omitempty,max=500"`
	TicketTypeID   *string `json:"ticket_type_id,omitempty" validate:"omitempty,uuid"`
}

// NormalizeEmail приводит адрес к каноническому виду: без пробелов по краям и в нижнем регистре.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateOffer нормализует адрес получателя и проверяет входные данные предложения.
func ValidateOffer(in *OfferInput) error {
	in.RecipientEmail = NormalizeEmail(in.RecipientEmail)
	in.TicketMode = strings.ToLower(strings.TrimSpace(in.TicketMode))

	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("validate offer: %w", err)
	}

	if in.TicketMode == "free" && in.PriceCents != 0 {
		return ErrFreeOfferPriced
	}

	return nil
}

// InvalidFields возвращает отсортированные имена полей запроса, не прошедших проверку.
// Для ошибок, не связанных с валидацией, возвращает nil.
func InvalidFields(err error) []string {
	if errors.Is(err, ErrFreeOfferPriced) {
		return []string{"price_cents"}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make([]string, 0, len(verrs))
	seen := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		if name := fe.Field(); !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}
