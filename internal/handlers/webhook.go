package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KanishkKundu05/scrapeX/internal/ingest"
	"github.com/KanishkKundu05/scrapeX/pkg/kafka"
	"github.com/KanishkKundu05/scrapeX/pkg/logging"
)

const maxWebhookBody = 1 << 20

// digestTTL bounds the Redis fast-path window. Postgres remains the dedup
// authority; this only short-circuits byte-identical redeliveries.
const digestTTL = 10 * time.Minute

// VerifyTwitterWebhook answers upstream URL verification probes
func VerifyTwitterWebhook(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// TwitterWebhook ingests a mention batch delivered by the upstream rule
// engine. Payloads that do not have the batch shape are acknowledged as
// verification pings so the upstream never retries them.
func TwitterWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		countWebhook("body_error")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read body"})
		return
	}

	if isDuplicateDelivery(c.Request.Context(), body) {
		countWebhook("duplicate_delivery")
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "duplicate delivery"})
		return
	}

	payload, err := ingest.Parse(body)
	if err != nil {
		if errors.Is(err, ingest.ErrMalformedPayload) {
			countWebhook("verification")
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "webhook verified"})
			return
		}
		countWebhook("error")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to process webhook"})
		return
	}

	result, err := deps.Gate.Admit(c.Request.Context(), payload)
	if err != nil {
		deps.Logger.WithError(err).Error("Webhook batch admission failed")
		countWebhook("error")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to store tweets"})
		return
	}

	countWebhook("batch")
	countAdmitted(result)

	if result.Inserted > 0 {
		publishEvent(kafka.EventMentionIngested, map[string]interface{}{
			"rule_tag": payload.RuleTag,
			"inserted": result.Inserted,
			"skipped":  result.Skipped,
		})
	}

	// Routing runs detached from the delivery: the upstream only needs the
	// admission counts, and a slow rule pass must not stall its retries.
	if len(result.AdmittedIDs) > 0 {
		ids := result.AdmittedIDs
		router, logger := deps.Router, deps.Logger
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			summary := router.Route(ctx, ids)
			countRouting(summary.Routed, summary.Skipped, summary.Failed)
			logger.WithFields(logging.Fields{
				"routed":  summary.Routed,
				"skipped": summary.Skipped,
				"failed":  summary.Failed,
			}).Info("Routing pass completed")
		}()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
	})
}

func isDuplicateDelivery(ctx context.Context, body []byte) bool {
	if deps.Redis == nil {
		return false
	}
	sum := sha256.Sum256(body)
	key := "scrapex:webhook:digest:" + hex.EncodeToString(sum[:])
	set, err := deps.Redis.SetNX(ctx, key, 1, digestTTL).Result()
	if err != nil {
		deps.Logger.WithError(err).Warn("Redis digest check failed, falling through to store dedup")
		return false
	}
	return !set
}

func countWebhook(outcome string) {
	if deps.Metrics != nil {
		deps.Metrics.WebhooksReceived.WithLabelValues(outcome).Inc()
	}
}

func countAdmitted(result ingest.Result) {
	if deps.Metrics == nil {
		return
	}
	deps.Metrics.MentionsAdmitted.WithLabelValues("inserted").Add(float64(result.Inserted))
	deps.Metrics.MentionsAdmitted.WithLabelValues("skipped").Add(float64(result.Skipped))
	deps.Metrics.MentionsAdmitted.WithLabelValues("malformed").Add(float64(result.Malformed))
}

func countRouting(routed, skipped, failed int) {
	if deps.Metrics == nil {
		return
	}
	deps.Metrics.RoutingOutcomes.WithLabelValues("routed").Add(float64(routed))
	deps.Metrics.RoutingOutcomes.WithLabelValues("skipped").Add(float64(skipped))
	deps.Metrics.RoutingOutcomes.WithLabelValues("failed").Add(float64(failed))
}
