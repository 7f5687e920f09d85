package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"
	MetricUpstreamFetch   = "UpstreamFetch"
	MetricUpstreamLatency = "UpstreamFetchLatency"

	// Dimension Keys
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"
	DimProvider = "Provider"
	DimResult   = "Result"

	// Metric Namespace
	MetricNamespace = "Skyview"
)

// Provider names used as the Provider dimension and in logs.
const (
	ProviderWeather = "openweathermap"
	ProviderImage   = "unsplash"
)
