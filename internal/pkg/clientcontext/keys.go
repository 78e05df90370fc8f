package clientcontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyClientContext = "CLIENT_CONTEXT"
	KeyClientID      = "client_id"
	KeyClientName    = "client_name"
)
