package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/KanishkKundu05/scrapeX/internal/dispatch"
	"github.com/KanishkKundu05/scrapeX/internal/ingest"
	"github.com/KanishkKundu05/scrapeX/internal/routing"
	"github.com/KanishkKundu05/scrapeX/internal/store"
	"github.com/KanishkKundu05/scrapeX/internal/twitterapi"
	"github.com/KanishkKundu05/scrapeX/pkg/kafka"
	"github.com/KanishkKundu05/scrapeX/pkg/logging"
)

// Metrics holds Prometheus metrics for the handlers
type Metrics struct {
	WebhooksReceived *prometheus.CounterVec
	MentionsAdmitted *prometheus.CounterVec
	RoutingOutcomes  *prometheus.CounterVec
	DispatchAttempts *prometheus.CounterVec
	SessionLogins    *prometheus.CounterVec
}

// Dependencies holds all external dependencies for handlers
type Dependencies struct {
	Logger     logging.Logger
	Metrics    *Metrics
	Gate       *ingest.Gate
	Router     *routing.Engine
	Dispatcher *dispatch.Engine
	Twitter    *twitterapi.Client
	Tweets     *store.TweetStore
	Responses  *store.ResponseStore
	Sessions   *store.SessionStore
	Redis      *redis.Client
	Events     *kafka.Producer
}

var deps Dependencies

// Init initializes the handlers with dependencies
func Init(d Dependencies) {
	deps = d
	deps.Logger.Info("Handlers initialized")
}

func publishEvent(eventType string, data map[string]interface{}) {
	if deps.Events == nil {
		return
	}
	event := kafka.NewEvent(eventType, "scrapex", data)
	if err := deps.Events.PublishEvent(kafka.SupportEventsTopic, event); err != nil {
		deps.Logger.WithError(err).WithFields(logging.Fields{
			"event_type": eventType,
		}).Warn("Failed to publish pipeline event")
	}
}
