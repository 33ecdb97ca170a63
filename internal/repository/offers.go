package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ticketpay/internal/model"
)

// ErrEventNotFound возвращается при создании предложения для несуществующего мероприятия.
var ErrEventNotFound = errors.New("event not found")

const offerColumns = `o.id::text, o.event_id::text, COALESCE(e.title, ''), o.organizer_id::text,
	o.recipient_email, o.recipient_user_id::text, o.price_cents, o.ticket_mode, o.message,
	o.ticket_type_id::text, o.status, o.created_at`

const (
	sqlCreateOffer = `WITH o AS (
			INSERT INTO ticket_offers (id, event_id, organizer_id, recipient_email, price_cents,
				ticket_mode, message, ticket_type_id, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING *
		)
		SELECT ` + offerColumns + ` FROM o LEFT JOIN events e ON e.id = o.event_id`

	sqlGetOffer = `SELECT ` + offerColumns + `
		FROM ticket_offers o LEFT JOIN events e ON e.id = o.event_id
		WHERE o.id = $1`

	sqlListPendingForRecipient = `SELECT ` + offerColumns + `
		FROM ticket_offers o LEFT JOIN events e ON e.id = o.event_id
		WHERE o.status = $1 AND (o.recipient_user_id::text = $2 OR o.recipient_email = $3)
		ORDER BY o.created_at DESC`

	sqlListSent = `SELECT ` + offerColumns + `
		FROM ticket_offers o LEFT JOIN events e ON e.id = o.event_id
		WHERE o.organizer_id = $1 AND ($2::text IS NULL OR o.event_id::text = $2)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $3 OFFSET $4`

	// Переход разрешён только из pending: конечные статусы не перезаписываются.
	sqlTransitionOffer = `UPDATE ticket_offers SET status = $2 WHERE id = $1 AND status = $3`
)

// CreateOffer сохраняет новое предложение и возвращает его вместе с названием мероприятия.
func (r *PostgresRepository) CreateOffer(ctx context.Context, o model.NewOffer) (*model.Offer, error) {
	var offer *model.Offer
	err := r.withRetry(ctx, func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx, sqlCreateOffer,
			o.ID, o.EventID, o.OrganizerID, o.RecipientEmail, o.PriceCents,
			string(o.TicketMode), o.Message, o.TicketTypeID, string(model.OfferStatusPending),
		)
		var err error
		offer, err = scanOffer(row)
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("create offer: %w", err)
	}
	return offer, nil
}

// GetOffer возвращает предложение по идентификатору.
func (r *PostgresRepository) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	var offer *model.Offer
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		offer, err = scanOffer(r.pool.QueryRow(ctx, sqlGetOffer, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return offer, nil
}

// ListPendingOffersForRecipient возвращает ожидающие предложения, адресованные пользователю
// по идентификатору либо по email.
func (r *PostgresRepository) ListPendingOffersForRecipient(ctx context.Context, userID, email string) ([]model.Offer, error) {
	return r.listOffers(ctx, "list pending offers", sqlListPendingForRecipient,
		string(model.OfferStatusPending), userID, email)
}

// ListSentOffers возвращает предложения организатора, новые первыми.
func (r *PostgresRepository) ListSentOffers(ctx context.Context, organizerID string, eventID *string, limit, offset int) ([]model.Offer, error) {
	return r.listOffers(ctx, "list sent offers", sqlListSent, organizerID, eventID, limit, offset)
}

// TransitionOffer переводит ожидающее предложение в конечный статус.
// Возвращает ErrNotFound, если предложение отсутствует или уже не в pending.
func (r *PostgresRepository) TransitionOffer(ctx context.Context, id string, to model.OfferStatus) error {
	return r.execOne(ctx, "transition offer", sqlTransitionOffer,
		id, string(to), string(model.OfferStatusPending))
}

func (r *PostgresRepository) listOffers(ctx context.Context, op, query string, args ...any) ([]model.Offer, error) {
	var res []model.Offer
	err := r.withRetry(ctx, func(ctx context.Context) error {
		res = res[:0]

		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOffer(rows)
			if err != nil {
				return err
			}
			res = append(res, *o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var (
		o      model.Offer
		mode   string
		status string
	)
	err := row.Scan(
		&o.ID, &o.EventID, &o.EventTitle, &o.OrganizerID,
		&o.RecipientEmail, &o.RecipientUserID, &o.PriceCents, &mode, &o.Message,
		&o.TicketTypeID, &status, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.TicketMode = model.TicketMode(mode)
	o.Status = model.OfferStatus(status)
	return &o, nil
}
