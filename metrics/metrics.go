package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process counters exposed on /metrics.
type Metrics struct {
	StickersSent        prometheus.Counter
	ResolverMisses      prometheus.Counter
	PacksCreated        prometheus.Counter
	SubscriptionUpdates prometheus.Counter
	CommandsHandled     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		StickersSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sticker_bot_stickers_sent_total",
			Help: "Total number of stickers delivered to chat channels",
		}),
		ResolverMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sticker_bot_resolver_misses_total",
			Help: "Total number of messages that resolved to no sticker",
		}),
		PacksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sticker_bot_packs_created_total",
			Help: "Total number of sticker packs created",
		}),
		SubscriptionUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sticker_bot_subscription_updates_total",
			Help: "Total number of successfully applied subscription updates",
		}),
		CommandsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sticker_bot_commands_handled_total",
			Help: "Total number of chat commands handled, by command name",
		}, []string{"command"}),
	}
}
