// Package handler содержит HTTP-обработчики API сервиса ticketpay.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticketpay/internal/middleware"
	"github.com/mmeshcher/ticketpay/internal/model"
	"github.com/mmeshcher/ticketpay/internal/service"
	"github.com/mmeshcher/ticketpay/internal/validation"
)

// WebhookVerifier проверяет подпись входящего вебхука.
type WebhookVerifier interface {
	Verify(payload []byte, header string) (*stripe.Event, error)
}

// EventReconciler применяет проверенные события процессора.
type EventReconciler interface {
	Handle(ctx context.Context, event *stripe.Event) (service.Outcome, error)
}

// BalanceSyncer возвращает актуальный баланс продавца.
type BalanceSyncer interface {
	Sync(ctx context.Context, userID string) (*model.BalanceSnapshot, error)
}

// OfferManager определяет контракт жизненного цикла предложений.
type OfferManager interface {
	CreateOffer(ctx context.Context, caller model.Identity, in validation.OfferInput) (*model.Offer, error)
	GetOffer(ctx context.Context, caller model.Identity, id string) (*model.Offer, error)
	GetMyPendingOffers(ctx context.Context, caller model.Identity) ([]model.Offer, error)
	GetSentOffers(ctx context.Context, caller model.Identity, eventID *string, page, pageSize int) (*service.OfferPage, error)
	ClaimFreeOffer(ctx context.Context, caller model.Identity, offerID string, skipMintingFee bool) (map[string]any, error)
	DeclineOffer(ctx context.Context, caller model.Identity, offerID string) error
	CancelOffer(ctx context.Context, caller model.Identity, offerID string) error
}

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services объединяет зависимости обработчиков.
type Services struct {
	Verifier   WebhookVerifier
	Reconciler EventReconciler
	Balances   BalanceSyncer
	Offers     OfferManager
	Health     Pinger
}

// Handler реализует HTTP-обработчики API сервиса ticketpay.
type Handler struct {
	verifier       WebhookVerifier
	reconciler     EventReconciler
	balances       BalanceSyncer
	offers         OfferManager
	health         Pinger
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	corsOrigin     string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Services, logger *zap.Logger, auth *middleware.AuthMiddleware, corsOrigin string) *Handler {
	return &Handler{
		verifier:       s.Verifier,
		reconciler:     s.Reconciler,
		balances:       s.Balances,
		offers:         s.Offers,
		health:         s.Health,
		logger:         logger,
		authMiddleware: auth,
		corsOrigin:     corsOrigin,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError переводит ошибку бизнес-логики в HTTP-ответ. Подробности
// непредвиденных ошибок остаются в логах.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var be *service.BusinessError
	switch {
	case errors.As(err, &be):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: be.UserMessage})
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrOfferNotFound):
		writeError(w, http.StatusNotFound, "offer not found")
	case errors.Is(err, service.ErrOfferNotPending):
		writeError(w, http.StatusConflict, "offer is no longer pending")
	case errors.Is(err, service.ErrInvalidInput):
		h.logger.Info(op+" rejected", zap.Error(err), zap.String("uri", r.RequestURI))
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "invalid input",
			Details: strings.Join(validation.InvalidFields(err), ","),
		})
	default:
		h.logger.Error(op+" error", zap.Error(err), zap.String("uri", r.RequestURI))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func identity(r *http.Request) model.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}

// Healthz проверяет доступность хранилища.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
