package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/ticketpay/internal/metrics"
	"github.com/mmeshcher/ticketpay/internal/service"
)

// GetSellerBalance синхронизирует и возвращает баланс текущего продавца.
func (h *Handler) GetSellerBalance(w http.ResponseWriter, r *http.Request) {
	caller := identity(r)

	snapshot, err := h.balances.Sync(r.Context(), caller.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			h.logger.Error("get seller balance error", zap.Error(err), zap.String("user_id", caller.UserID))
			metrics.BalanceSyncs.WithLabelValues("failed").Inc()
			writeError(w, http.StatusInternalServerError, "unable to load balance")
		}
		return
	}

	result := "synced"
	if !snapshot.HasAccount {
		result = "no_account"
	}
	metrics.BalanceSyncs.WithLabelValues(result).Inc()

	writeJSON(w, http.StatusOK, snapshot)
}
