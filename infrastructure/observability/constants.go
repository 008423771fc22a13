package observability

// Metric name prefixes
const (
	MetricPrefix = "arena"
)

// Metric names
const (
	// Fetch metrics
	RefreshesTotal        = MetricPrefix + ".match.refreshes_total"
	RefreshesSkippedTotal = MetricPrefix + ".match.refreshes_skipped_total"
	RefreshDuration       = MetricPrefix + ".match.refresh_duration"

	// Change stream metrics
	ChangeEventsTotal     = MetricPrefix + ".changes.events_total"
	DebouncedFlushesTotal = MetricPrefix + ".changes.debounced_flushes_total"

	// Action metrics
	ActionsTotal = MetricPrefix + ".actions.total"

	// Escrow metrics
	EscrowMovesTotal = MetricPrefix + ".escrow.moves_total"
)

// Label keys
const (
	LabelMode      = "mode"
	LabelOutcome   = "outcome"
	LabelTable     = "table"
	LabelAction    = "action"
	LabelReason    = "reason"
	LabelEntryType = "entry_type"
)

// Refresh modes
const (
	ModeInitial    = "initial"
	ModeBackground = "background"
)

// Outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "public_fallback"
	OutcomeError    = "error"
	OutcomeRefused  = "refused"
)
