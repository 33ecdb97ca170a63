// Package metrics содержит коллекторы Prometheus сервиса ticketpay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests считает обработанные HTTP-запросы.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketpay_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPDuration измеряет время обработки HTTP-запросов.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ticketpay_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "route"})

	// WebhookEvents считает входящие события процессора по типу и результату обработки.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketpay_webhook_events_total",
		Help: "Processor webhook events by type and outcome",
	}, []string{"type", "outcome"})

	// BalanceSyncs считает синхронизации баланса по результату.
	BalanceSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketpay_balance_syncs_total",
		Help: "Seller balance synchronizations by result",
	}, []string{"result"})
)
