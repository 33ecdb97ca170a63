package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticketpay/internal/claim"
	"github.com/mmeshcher/ticketpay/internal/model"
	"github.com/mmeshcher/ticketpay/internal/repository"
	"github.com/mmeshcher/ticketpay/internal/validation"
)

const (
	// DefaultPageSize используется, если размер страницы не задан.
	DefaultPageSize = 20
	// MaxPageSize ограничивает размер страницы отправленных предложений.
	MaxPageSize = 100
	// MaxSentOffset ограничивает глубину листания отправленных предложений.
	MaxSentOffset = 100_000
)

// OfferStore описывает контракт хранилища предложений.
type OfferStore interface {
	CreateOffer(ctx context.Context, o model.NewOffer) (*model.Offer, error)
	GetOffer(ctx context.Context, id string) (*model.Offer, error)
	ListPendingOffersForRecipient(ctx context.Context, userID, email string) ([]model.Offer, error)
	ListSentOffers(ctx context.Context, organizerID string, eventID *string, limit, offset int) ([]model.Offer, error)
	TransitionOffer(ctx context.Context, id string, to model.OfferStatus) error
}

// ProfileStore возвращает отображаемые имена профилей. Профили живут в отдельном
// хранилище, поэтому имена подтягиваются отдельным запросом, а не join.
type ProfileStore interface {
	GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

// Claimer выполняет внешнюю операцию получения бесплатного билета.
type Claimer interface {
	ClaimFreeOffer(ctx context.Context, accessToken, offerID string, skipMintingFee bool) (map[string]any, error)
}

// OfferPage описывает страницу отправленных предложений.
type OfferPage struct {
	Offers  []model.Offer `json:"offers"`
	HasMore bool          `json:"has_more"`
}

// OfferService реализует жизненный цикл предложений билетов.
type OfferService struct {
	offers   OfferStore
	profiles ProfileStore
	claimer  Claimer
	logger   *zap.Logger
	newID    func() string
}

// NewOfferService создаёт OfferService.
func NewOfferService(offers OfferStore, profiles ProfileStore, claimer Claimer, logger *zap.Logger) *OfferService {
	return &OfferService{
		offers:   offers,
		profiles: profiles,
		claimer:  claimer,
		logger:   logger,
		newID:    func() string { return uuid.NewString() },
	}
}

// CreateOffer создаёт предложение от имени организатора в статусе pending.
func (s *OfferService) CreateOffer(ctx context.Context, caller model.Identity, in validation.OfferInput) (*model.Offer, error) {
	if caller.UserID == "" {
		return nil, ErrUnauthenticated
	}

	if err := validation.ValidateOffer(&in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	offer, err := s.offers.CreateOffer(ctx, model.NewOffer{
		ID:             s.newID(),
		EventID:        in.EventID,
		OrganizerID:    caller.UserID,
		RecipientEmail: in.RecipientEmail,
		PriceCents:     in.PriceCents,
		TicketMode:     model.TicketMode(in.TicketMode),
		Message:        in.Message,
		TicketTypeID:   in.TicketTypeID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		s.logger.Error("create offer", zap.Error(err), zap.String("organizer_id", caller.UserID))
		return nil, unavailable("create offer", err)
	}

	return offer, nil
}

// GetOffer возвращает предложение с именем организатора. Предложение видят только
// его организатор и получатель, для остальных оно не существует.
func (s *OfferService) GetOffer(ctx context.Context, caller model.Identity, id string) (*model.Offer, error) {
	if caller.UserID == "" {
		return nil, ErrUnauthenticated
	}

	offer, err := s.getOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isOrganizer(caller, offer) && !isRecipient(caller, offer) {
		return nil, ErrOfferNotFound
	}

	names, err := s.profiles.GetDisplayNames(ctx, []string{offer.OrganizerID})
	if err != nil {
		s.logger.Warn("resolve organizer name", zap.Error(err), zap.String("offer_id", id))
		return offer, nil
	}
	offer.OrganizerName = names[offer.OrganizerID]

	return offer, nil
}

// GetMyPendingOffers возвращает ожидающие предложения вызывающего, найденные
// по идентификатору пользователя либо по email.
func (s *OfferService) GetMyPendingOffers(ctx context.Context, caller model.Identity) ([]model.Offer, error) {
	if caller.UserID == "" {
		return nil, ErrUnauthenticated
	}

	offers, err := s.offers.ListPendingOffersForRecipient(ctx, caller.UserID, validation.NormalizeEmail(caller.Email))
	if err != nil {
		return nil, unavailable("list pending offers", err)
	}
	if len(offers) == 0 {
		return []model.Offer{}, nil
	}

	s.attachOrganizerNames(ctx, offers)

	return offers, nil
}

// GetSentOffers возвращает страницу предложений организатора, новые первыми.
// Страницы нумеруются с нуля.
func (s *OfferService) GetSentOffers(ctx context.Context, caller model.Identity, eventID *string, page, pageSize int) (*OfferPage, error) {
	if caller.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if eventID != nil {
		if _, err := uuid.Parse(*eventID); err != nil {
			return nil, fmt.Errorf("%w: event id", ErrInvalidInput)
		}
	}

	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page > MaxSentOffset/pageSize {
		return nil, fmt.Errorf("%w: page %d is too deep", ErrInvalidInput, page)
	}

	// Запрашиваем на одну строку больше, чтобы узнать о следующей странице без COUNT.
	offers, err := s.offers.ListSentOffers(ctx, caller.UserID, eventID, pageSize+1, page*pageSize)
	if err != nil {
		return nil, unavailable("list sent offers", err)
	}

	res := &OfferPage{Offers: offers}
	if len(offers) > pageSize {
		res.Offers = offers[:pageSize]
		res.HasMore = true
	}
	if res.Offers == nil {
		res.Offers = []model.Offer{}
	}

	return res, nil
}

// ClaimFreeOffer делегирует получение билета внешней операции, которая единолично
// изменяет предложение. Отказ операции возвращается как *BusinessError.
func (s *OfferService) ClaimFreeOffer(ctx context.Context, caller model.Identity, offerID string, skipMintingFee bool) (map[string]any, error) {
	if caller.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := uuid.Parse(offerID); err != nil {
		return nil, ErrOfferNotFound
	}

	res, err := s.claimer.ClaimFreeOffer(ctx, caller.Token, offerID, skipMintingFee)
	if err != nil {
		var rej *claim.RejectedError
		if errors.As(err, &rej) {
			s.logger.Warn("claim offer rejected",
				zap.String("offer_id", offerID),
				zap.String("user_id", caller.UserID),
				zap.Int("status", rej.StatusCode),
				zap.String("detail", rej.Detail),
			)
			return nil, &BusinessError{UserMessage: rej.Message, Detail: rej.Detail}
		}
		s.logger.Error("claim offer", zap.Error(err), zap.String("offer_id", offerID))
		return nil, unavailable("claim offer", err)
	}

	return res, nil
}

// DeclineOffer отклоняет ожидающее предложение от имени получателя.
func (s *OfferService) DeclineOffer(ctx context.Context, caller model.Identity, offerID string) error {
	return s.transition(ctx, caller, offerID, model.OfferStatusDeclined, isRecipient)
}

// CancelOffer отменяет ожидающее предложение от имени организатора.
func (s *OfferService) CancelOffer(ctx context.Context, caller model.Identity, offerID string) error {
	return s.transition(ctx, caller, offerID, model.OfferStatusCancelled, isOrganizer)
}

func (s *OfferService) transition(
	ctx context.Context,
	caller model.Identity,
	offerID string,
	to model.OfferStatus,
	allowed func(model.Identity, *model.Offer) bool,
) error {
	if caller.UserID == "" {
		return ErrUnauthenticated
	}

	offer, err := s.getOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if !allowed(caller, offer) {
		return ErrForbidden
	}
	if offer.Status.Terminal() {
		return ErrOfferNotPending
	}

	if err := s.offers.TransitionOffer(ctx, offerID, to); err != nil {
		// Статус сменился между чтением и записью.
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOfferNotPending
		}
		return unavailable("transition offer", err)
	}

	s.logger.Info("offer transitioned",
		zap.String("offer_id", offerID),
		zap.String("status", string(to)),
		zap.String("user_id", caller.UserID),
	)
	return nil
}

func (s *OfferService) getOffer(ctx context.Context, id string) (*model.Offer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrOfferNotFound
	}

	offer, err := s.offers.GetOffer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, unavailable("get offer", err)
	}
	return offer, nil
}

// attachOrganizerNames подтягивает имена всех организаторов одним запросом.
func (s *OfferService) attachOrganizerNames(ctx context.Context, offers []model.Offer) {
	seen := make(map[string]struct{}, len(offers))
	ids := make([]string, 0, len(offers))
	for _, o := range offers {
		if _, ok := seen[o.OrganizerID]; ok {
			continue
		}
		seen[o.OrganizerID] = struct{}{}
		ids = append(ids, o.OrganizerID)
	}
	sort.Strings(ids)

	names, err := s.profiles.GetDisplayNames(ctx, ids)
	if err != nil {
		s.logger.Warn("resolve organizer names", zap.Error(err))
		return
	}

	for i := range offers {
		offers[i].OrganizerName = names[offers[i].OrganizerID]
	}
}

func isOrganizer(caller model.Identity, o *model.Offer) bool {
	return o.OrganizerID == caller.UserID
}

func isRecipient(caller model.Identity, o *model.Offer) bool {
	if o.RecipientUserID != nil && *o.RecipientUserID == caller.UserID {
		return true
	}
	email := validation.NormalizeEmail(caller.Email)
	return email != "" && email == o.RecipientEmail
}
