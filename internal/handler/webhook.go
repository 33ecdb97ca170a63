package handler

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/ticketpay/internal/metrics"
	"github.com/mmeshcher/ticketpay/internal/webhook"
)

const maxWebhookBody = 1 << 20

// ProcessorWebhook принимает подписанное событие процессора. Подпись проверяется
// по исходным байтам тела, до какого-либо разбора.
func (h *Handler) ProcessorWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Webhook Error: unreadable body")
		return
	}

	event, err := h.verifier.Verify(payload, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		h.logger.Warn("webhook verification failed", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		writeError(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	outcome, err := h.reconciler.Handle(r.Context(), event)
	if err != nil {
		h.logger.Error("webhook processing error",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
		)
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "failed").Inc()
		writeError(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}

	metrics.WebhookEvents.WithLabelValues(string(event.Type), string(outcome)).Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
