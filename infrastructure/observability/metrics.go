package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gambler/arena/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the arena
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	refreshesCounter        metric.Int64Counter
	refreshesSkippedCounter metric.Int64Counter
	refreshDurationHist     metric.Float64Histogram
	changeEventsCounter     metric.Int64Counter
	debouncedFlushesCounter metric.Int64Counter
	actionsCounter          metric.Int64Counter
	escrowMovesCounter      metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	// Create appropriate exporter based on config
	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTELExporter {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(dialCtx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTELEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTELEndpoint).Info("Using OTLP metric exporter")

	case "none", "":
		log.Info("Metrics export disabled")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTELExporter)
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(mp.config.OTELServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	period := mp.config.OTELExportPeriod
	if period <= 0 {
		period = 30 * time.Second
	}

	// Create meter provider with periodic reader
	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(period))),
	)
	otel.SetMeterProvider(mp.meterProvider)

	if err := mp.useMeter(mp.meterProvider.Meter("arena")); err != nil {
		return err
	}

	mp.initialized = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// useMeter creates all metric instruments on a meter
func (mp *MetricsProvider) useMeter(meter metric.Meter) error {
	var err error
	mp.meter = meter

	// Fetch metrics
	mp.refreshesCounter, err = meter.Int64Counter(
		RefreshesTotal,
		metric.WithDescription("Total number of match snapshot fetches"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create refreshes counter: %w", err)
	}

	mp.refreshesSkippedCounter, err = meter.Int64Counter(
		RefreshesSkippedTotal,
		metric.WithDescription("Refresh calls dropped because a fetch was already in flight"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create skipped refreshes counter: %w", err)
	}

	mp.refreshDurationHist, err = meter.Float64Histogram(
		RefreshDuration,
		metric.WithDescription("Duration of match snapshot fetches in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh duration histogram: %w", err)
	}

	// Change stream metrics
	mp.changeEventsCounter, err = meter.Int64Counter(
		ChangeEventsTotal,
		metric.WithDescription("Total number of change events received"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create change events counter: %w", err)
	}

	mp.debouncedFlushesCounter, err = meter.Int64Counter(
		DebouncedFlushesTotal,
		metric.WithDescription("Refreshes triggered after a quiet window"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create debounced flushes counter: %w", err)
	}

	// Action metrics
	mp.actionsCounter, err = meter.Int64Counter(
		ActionsTotal,
		metric.WithDescription("Total number of match actions by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create actions counter: %w", err)
	}

	// Escrow metrics
	mp.escrowMovesCounter, err = meter.Int64Counter(
		EscrowMovesTotal,
		metric.WithDescription("Total number of recorded escrow movements"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create escrow moves counter: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordRefresh records a completed snapshot fetch
func (mp *MetricsProvider) RecordRefresh(mode, outcome string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelMode, mode),
		attribute.String(LabelOutcome, outcome),
	)
	mp.refreshesCounter.Add(context.Background(), 1, attrs)
	mp.refreshDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordRefreshSkipped records a refresh dropped while another was in flight
func (mp *MetricsProvider) RecordRefreshSkipped(mode string) {
	if !mp.isEnabled() {
		return
	}

	mp.refreshesSkippedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelMode, mode)),
	)
}

// RecordChangeEvent records a change event received for a table
func (mp *MetricsProvider) RecordChangeEvent(table string) {
	if !mp.isEnabled() {
		return
	}

	mp.changeEventsCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelTable, table)),
	)
}

// RecordDebouncedFlush records a refresh fired by the debouncer
func (mp *MetricsProvider) RecordDebouncedFlush() {
	if !mp.isEnabled() {
		return
	}

	mp.debouncedFlushesCounter.Add(context.Background(), 1)
}

// RecordAction records a match action and the reason code of a refusal
func (mp *MetricsProvider) RecordAction(action, outcome, reason string) {
	if !mp.isEnabled() {
		return
	}

	mp.actionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelAction, action),
			attribute.String(LabelOutcome, outcome),
			attribute.String(LabelReason, reason),
		),
	)
}

// RecordEscrowMove records a wallet movement by entry type
func (mp *MetricsProvider) RecordEscrowMove(entryType string) {
	if !mp.isEnabled() {
		return
	}

	mp.escrowMovesCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEntryType, entryType)),
	)
}

// isEnabled checks if metrics are initialized with instruments. Safe on a nil provider.
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meter != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, nil before initialization
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
