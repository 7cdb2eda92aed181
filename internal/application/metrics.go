package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notifications persisted by kind and resulting status.",
	}, []string{"kind", "status"})

	notificationsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_duplicate_total",
		Help: "Dispatches skipped because the source event was already handled.",
	})

	whatsappMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsapp_messages_total",
		Help: "WhatsApp messages stored by direction and status.",
	}, []string{"direction", "status"})
)
