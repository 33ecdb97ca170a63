// Package model содержит доменные сущности сервиса ticketpay.
package model

import "time"

// Identity описывает аутентифицированного вызывающего пользователя.
type Identity struct {
	UserID string
	Email  string
	// Исходный bearer-токен, пробрасывается во внешние операции.
	Token string
}

// AccountFlags содержит флаги готовности аккаунта, полученные от процессора.
type AccountFlags struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// Onboarded сообщает, завершён ли онбординг: все три флага должны быть выставлены.
func (f AccountFlags) Onboarded() bool {
	return f.ChargesEnabled && f.PayoutsEnabled && f.DetailsSubmitted
}

// BalanceCache хранит последний синхронизированный снимок баланса продавца.
type BalanceCache struct {
	UserID            string
	ExternalAccountID *string
	AvailableCents    int64
	PendingCents      int64
	PayoutsEnabled    bool
	DetailsSubmitted  bool
	LastSyncedAt      time.Time
}

// HasAccount сообщает, привязан ли к записи аккаунт процессора.
func (b *BalanceCache) HasAccount() bool {
	return b != nil && b.ExternalAccountID != nil && *b.ExternalAccountID != ""
}

// BalanceSnapshot описывает ответ на запрос баланса продавца.
type BalanceSnapshot struct {
	HasAccount       bool   `json:"has_account"`
	AvailableCents   int64  `json:"available_balance_cents"`
	PendingCents     int64  `json:"pending_balance_cents"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
	NeedsOnboarding  bool   `json:"needs_onboarding"`
	Currency         string `json:"currency"`
}

// ListingStatus описывает статус объявления о продаже билета. Сервис только
// снимает активные объявления, остальные статусы пишет каталог.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusCancelled ListingStatus = "cancelled"
)

// OfferStatus описывает статус предложения билета.
type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusClaimed   OfferStatus = "claimed"
	OfferStatusDeclined  OfferStatus = "declined"
	OfferStatusCancelled OfferStatus = "cancelled"
)

// Terminal сообщает, является ли статус конечным.
func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferStatusClaimed, OfferStatusDeclined, OfferStatusCancelled:
		return true
	}
	return false
}

// TicketMode описывает режим выдачи билета по предложению.
type TicketMode string

const (
	TicketModeFree      TicketMode = "free"
	TicketModePaidFavor TicketMode = "paid_favor"
)

// Offer описывает предложение билета от организатора получателю.
type Offer struct {
	ID              string      `json:"id"`
	EventID         string      `json:"event_id"`
	EventTitle      string      `json:"event_title,omitempty"`
	OrganizerID     string      `json:"organizer_id"`
	OrganizerName   string      `json:"organizer_name,omitempty"`
	RecipientEmail  string      `json:"recipient_email"`
	RecipientUserID *string     `json:"recipient_user_id,omitempty"`
	PriceCents      int64       `json:"price_cents"`
	TicketMode      TicketMode  `json:"ticket_mode"`
	Message         *string     `json:"message,omitempty"`
	TicketTypeID    *string     `json:"ticket_type_id,omitempty"`
	Status          OfferStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
}

// NewOffer содержит данные для создания предложения.
type NewOffer struct {
	ID             string
	EventID        string
	OrganizerID    string
	RecipientEmail string
	PriceCents     int64
	TicketMode     TicketMode
	Message        *string
	TicketTypeID   *string
}
