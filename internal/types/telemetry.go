package types

// CloudWatch metric names emitted by the drain.
// All components MUST use these constants.
const (
	// Metric Names
	MetricItemsFetched   = "RawItemsFetched"
	MetricItemsPersisted = "RawItemsPersisted"
	MetricItemsPoisoned  = "RawItemsPoisoned"
	MetricItemsRemoved   = "RawItemsRemoved"
	MetricQueueDepth     = "RawQueueDepth"
	MetricDrainFailure   = "DrainFailure"
	MetricDrainLatency   = "DrainLatency"

	// Dimension Keys
	DimItemKind = "ItemKind"
	DimService  = "Service"

	// Default Metric Namespace
	MetricNamespace = "Telemetry"
)
