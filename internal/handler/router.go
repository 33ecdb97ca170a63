package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/ticketpay/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса ticketpay.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	// Тело вебхука читается как есть: gzip и любые преобразования до проверки подписи недопустимы.
	r.Post("/webhooks/processor", h.ProcessorWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(custommiddleware.CORS(h.corsOrigin))
		r.Use(custommiddleware.GzipMiddleware)
		r.Use(h.authMiddleware.Middleware)

		r.Get("/seller/balance", h.GetSellerBalance)

		r.Route("/offers", func(r chi.Router) {
			r.Post("/", h.CreateOffer)
			r.Get("/pending", h.GetPendingOffers)
			r.Get("/sent", h.GetSentOffers)
			r.Get("/{id}", h.GetOffer)
			r.Post("/{id}/claim", h.ClaimOffer)
			r.Post("/{id}/decline", h.DeclineOffer)
			r.Post("/{id}/cancel", h.CancelOffer)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
