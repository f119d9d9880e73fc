package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
)

const ingestPath = "/api/v1/metrics"

// Reporter posts payloads to the monitor's ingest endpoint.
type Reporter struct {
	url    string
	apiKey string
	header string
	client *http.Client
}

func NewReporter(serverURL, apiKey string, timeout time.Duration) *Reporter {
	return &Reporter{
		url:    strings.TrimRight(serverURL, "/") + ingestPath,
		apiKey: apiKey,
		header: "X-API-Key",
		client: &http.Client{Timeout: timeout},
	}
}

func (r *Reporter) Send(ctx context.Context, payload *models.MetricPayload) (*models.IngestResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(r.header, r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var out models.IngestResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid ingest response: %w", err)
	}
	return &out, nil
}

// Runner collects and reports on a fixed interval until Shutdown.
type Runner struct {
	collector *Collector
	reporter  *Reporter
	interval  time.Duration
	timeout   time.Duration
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(collector *Collector, reporter *Reporter, interval, timeout time.Duration, log *logger.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		collector: collector,
		reporter:  reporter,
		interval:  interval,
		timeout:   timeout,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *Runner) Start() {
	r.log.Info("Reporting every %s", r.interval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.Tick(r.ctx)
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.Tick(r.ctx)
			}
		}
	}()
}

// Tick runs one collect-and-send cycle. Failures are logged; the next tick
// tries again.
func (r *Runner) Tick(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := r.collector.Collect(ctx)
	if err != nil {
		r.log.Error("Collection failed: %v", err)
		return false
	}

	resp, err := r.reporter.Send(ctx, payload)
	if err != nil {
		r.log.Error("Report failed: %v", err)
		return false
	}
	r.log.Debug("Reported %d metric types", resp.Stored)
	return true
}

func (r *Runner) Shutdown() {
	r.cancel()
	r.wg.Wait()
	r.log.Info("Agent stopped")
}
