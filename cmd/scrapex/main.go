package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/KanishkKundu05/scrapeX/internal/dispatch"
	"github.com/KanishkKundu05/scrapeX/internal/handlers"
	"github.com/KanishkKundu05/scrapeX/internal/ingest"
	"github.com/KanishkKundu05/scrapeX/internal/routing"
	"github.com/KanishkKundu05/scrapeX/internal/store"
	"github.com/KanishkKundu05/scrapeX/internal/twitterapi"
	"github.com/KanishkKundu05/scrapeX/pkg/config"
	"github.com/KanishkKundu05/scrapeX/pkg/database"
	"github.com/KanishkKundu05/scrapeX/pkg/kafka"
	"github.com/KanishkKundu05/scrapeX/pkg/logging"
	"github.com/KanishkKundu05/scrapeX/pkg/middleware"
	"github.com/KanishkKundu05/scrapeX/pkg/monitoring"
	"github.com/KanishkKundu05/scrapeX/pkg/server"
	"github.com/KanishkKundu05/scrapeX/pkg/version"
)

func main() {
	logger := logging.NewLoggerWithService("scrapex")
	config.LoadEnv(logger)

	logger.Info("Starting scrapeX (Support Mention Responder)")

	// Required config
	databaseURL := config.RequireEnv("DATABASE_URL")
	twitterAPIKey := config.RequireEnv("TWITTER_API_KEY")
	serviceToken := config.RequireEnv("SERVICE_TOKEN")
	jwtSecret := config.GetEnv("JWT_SECRET", "")

	twitterBaseURL := config.GetEnv("TWITTER_API_BASE_URL", twitterapi.DefaultBaseURL)
	httpPort := config.GetEnv("SCRAPEX_PORT", "18020")
	webhookLimitPerMin := config.GetEnvInt("SCRAPEX_WEBHOOK_RATE_LIMIT_PER_MIN", 600)
	postTimeoutSec := config.GetEnvInt("SCRAPEX_POST_TIMEOUT_SECONDS", 30)

	// Database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = databaseURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if err := store.ApplySchema(db); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	// Monitoring
	healthChecker := monitoring.NewHealthChecker("scrapex", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("scrapex", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"TWITTER_API_BASE_URL": twitterBaseURL,
	}))

	handlerMetrics := &handlers.Metrics{
		WebhooksReceived: metricsCollector.NewCounter("webhooks_received_total", "Twitter webhooks received", []string{"outcome"}),
		MentionsAdmitted: metricsCollector.NewCounter("mentions_admitted_total", "Mentions admitted by the ingestion gate", []string{"result"}),
		RoutingOutcomes:  metricsCollector.NewCounter("routing_outcomes_total", "Routing pass outcomes", []string{"outcome"}),
		DispatchAttempts: metricsCollector.NewCounter("dispatch_attempts_total", "Response dispatch attempts", []string{"outcome"}),
		SessionLogins:    metricsCollector.NewCounter("session_logins_total", "Session login exchanges", []string{"outcome"}),
	}

	// Optional Redis for webhook delivery dedup
	redisAddr := config.GetEnv("REDIS_ADDR", "")
	var redisClient *redis.Client
	if redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Failed to connect to Redis; webhook delivery deduplication disabled")
			redisClient = nil
		}
		cancel()
	}

	// Optional Kafka producer for pipeline events
	kafkaBrokers := config.GetEnv("KAFKA_BROKERS", "")
	var producer *kafka.Producer
	if kafkaBrokers != "" {
		var err error
		producer, err = kafka.NewProducer(strings.Split(kafkaBrokers, ","), "scrapex", logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to create Kafka producer; pipeline events disabled")
			producer = nil
		} else {
			defer producer.Close()
			kafkaProducer := producer
			healthChecker.AddCheck("kafka", func() monitoring.CheckResult {
				if err := kafkaProducer.HealthCheck(); err != nil {
					return monitoring.CheckResult{Status: monitoring.StatusUnhealthy, Message: err.Error()}
				}
				return monitoring.CheckResult{Status: monitoring.StatusHealthy}
			})
		}
	}

	// Stores
	tweetStore := store.NewTweetStore(db)
	ruleStore := store.NewRuleStore(db)
	responseStore := store.NewResponseStore(db)
	sessionStore := store.NewSessionStore(db)

	// Tasks left mid-dispatch by a previous crash are wedged; fail them so
	// operators can re-dispatch.
	if released, err := responseStore.ReleaseStaleDispatching(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to release stale dispatching tasks")
	} else if released > 0 {
		logger.WithFields(logging.Fields{"count": released}).Warn("Released tasks stuck in dispatching from a previous run")
	}

	// Transport and engines
	twitterClient := twitterapi.NewClient(twitterapi.Config{
		BaseURL: twitterBaseURL,
		APIKey:  twitterAPIKey,
	}, logger)

	// A nil *kafka.Producer must stay a nil interface inside the engines.
	var routingEvents routing.EventPublisher
	var dispatchEvents dispatch.EventPublisher
	if producer != nil {
		routingEvents = producer
		dispatchEvents = producer
	}

	gate := ingest.NewGate(tweetStore, logger)
	router := routing.NewEngine(tweetStore, ruleStore, responseStore, routingEvents, logger)
	dispatcher := dispatch.NewEngine(responseStore, tweetStore, sessionStore, twitterClient, dispatchEvents, logger)
	dispatcher.SetPostTimeout(time.Duration(postTimeoutSec) * time.Second)

	handlers.Init(handlers.Dependencies{
		Logger:     logger,
		Metrics:    handlerMetrics,
		Gate:       gate,
		Router:     router,
		Dispatcher: dispatcher,
		Twitter:    twitterClient,
		Tweets:     tweetStore,
		Responses:  responseStore,
		Sessions:   sessionStore,
		Redis:      redisClient,
		Events:     producer,
	})

	// HTTP router (SetupServiceRouter adds /health and /metrics)
	ginRouter := server.SetupServiceRouter(logger, "scrapex", healthChecker, metricsCollector)

	// Webhook routes (no auth - the upstream rule engine calls these)
	webhooks := ginRouter.Group("/webhooks")
	{
		if webhookLimitPerMin > 0 {
			limiter := handlers.NewWebhookRateLimiter(webhookLimitPerMin, time.Minute, 10*time.Minute)
			webhooks.Use(handlers.WebhookRateLimitMiddleware(limiter))
		}
		webhooks.GET("/twitter", handlers.VerifyTwitterWebhook)
		webhooks.POST("/twitter", handlers.TwitterWebhook)
	}

	// Operator API
	api := ginRouter.Group("/api")
	api.Use(middleware.OperatorAuthMiddleware(serviceToken, []byte(jwtSecret)))
	{
		api.GET("/tweets", handlers.ListTweets)
		api.POST("/tweets/route", handlers.RouteTweets)
		api.GET("/responses", handlers.ListResponses)
		api.POST("/responses", handlers.ComposeResponse)
		api.POST("/responses/:id/dispatch", handlers.DispatchResponse)
		api.GET("/sessions", handlers.ListSessions)
		api.POST("/sessions", handlers.CreateSession)
		api.POST("/sessions/:id/activate", handlers.ActivateSession)
		api.POST("/sessions/:id/deactivate", handlers.DeactivateSession)
	}

	// Health endpoint for transport connectivity
	ginRouter.GET("/health/twitterapi", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := twitterClient.HealthCheck(ctx); err != nil {
			logger.WithError(err).Warn("twitterapi health check failed")
			c.JSON(503, gin.H{"status": "unhealthy", "breaker": twitterClient.BreakerState()})
			return
		}
		c.JSON(200, gin.H{"status": "ok", "breaker": twitterClient.BreakerState()})
	})

	// Start HTTP server with graceful shutdown
	serverConfig := server.DefaultConfig("scrapex", httpPort)
	if err := server.Start(serverConfig, ginRouter, logger); err != nil {
		logger.WithError(err).Fatal("HTTP server failed")
	}
}
