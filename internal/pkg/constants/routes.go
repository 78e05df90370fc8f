package constants

// Static route constants
const (
	APIBaseRoute = "/api"
	APIV1Route   = "/api/v1"
	MetricsRoute = "/metrics"
	DocsRoute    = "/docs/api/v1"
)
