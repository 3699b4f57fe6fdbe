package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.IsEnabled() {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.IsEnabled() {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.IsEnabled() {
		return
	}
	nr.Application.Shutdown(timeout)
}

// RideRequested records ride creation
func (nr *NewRelicApp) RideRequested(vehicleType string, fare float64, approximate bool) {
	nr.RecordCustomEvent("RideRequested", map[string]interface{}{
		"vehicle_type":     vehicleType,
		"fare":             fare,
		"fare_approximate": approximate,
		"timestamp":        time.Now().Unix(),
	})
}

// RideTransitioned records a lifecycle transition
func (nr *NewRelicApp) RideTransitioned(status string) {
	nr.RecordCustomMetric(fmt.Sprintf("custom/ride/transition/%s", status), 1)
}

// DriversMatched records how many drivers were found and how long it took
func (nr *NewRelicApp) DriversMatched(count int, latency time.Duration) {
	nr.RecordCustomMetric("custom/ride/matching_latency_ms", float64(latency.Milliseconds()))
	nr.RecordCustomMetric("custom/ride/candidates", float64(count))
}

// RecordRedisPoolStats records Redis connection pool statistics
func (nr *NewRelicApp) RecordRedisPoolStats(stats *redis.PoolStats) {
	if stats == nil {
		return
	}
	nr.RecordCustomMetric("custom/redis/pool_hits", float64(stats.Hits))
	nr.RecordCustomMetric("custom/redis/pool_misses", float64(stats.Misses))
	nr.RecordCustomMetric("custom/redis/pool_timeouts", float64(stats.Timeouts))
	nr.RecordCustomMetric("custom/redis/pool_total_conns", float64(stats.TotalConns))
	nr.RecordCustomMetric("custom/redis/pool_idle_conns", float64(stats.IdleConns))
}

// ReportRedisPool samples the client's pool every interval until ctx is done
func (nr *NewRelicApp) ReportRedisPool(ctx context.Context, client *redis.Client, interval time.Duration) {
	if !nr.IsEnabled() || client == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nr.RecordRedisPoolStats(client.PoolStats())
		}
	}
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr != nil && nr.enabled && nr.Application != nil
}
