package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
)

// MetricIngester stores one agent payload; the metric service implements it.
type MetricIngester interface {
	Ingest(ctx context.Context, hostID string, payload *models.MetricPayload, source string) (*models.IngestResponse, error)
}

type HostLookup interface {
	Get(ctx context.Context, id string) (*models.Host, error)
}

// MetricsHandler ingests payloads published on filter, taking the host id from
// the topic level matched by +, e.g. homelab/hosts/<id>/metrics.
func MetricsHandler(filter, source string, ingester MetricIngester, hosts HostLookup, timeout time.Duration, log *logger.Logger) MessageHandler {
	return func(ctx context.Context, topic string, payload []byte) error {
		hostID, ok := WildcardSegment(filter, topic)
		if !ok {
			return fmt.Errorf("no host id in topic %s", topic)
		}

		var p models.MetricPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid metric payload from %s: %w", hostID, err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if _, err := hosts.Get(ctx, hostID); err != nil {
			return fmt.Errorf("rejecting metrics for host %s: %w", hostID, err)
		}

		resp, err := ingester.Ingest(ctx, hostID, &p, source)
		if err != nil {
			return err
		}
		log.Debug("MQTT ingest host=%s types=%v", hostID, resp.MetricTypes)
		return nil
	}
}
