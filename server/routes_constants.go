package server

// Route path constants
const (
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"

	// Auth routes consumed by the client
	RouteRegister             = "/auth/register"
	RouteLogin                = "/auth/login"
	RouteProfile              = "/auth/profile"
	RouteUpdateRole           = "/auth/update-role"
	RouteCompleteRegistration = "/auth/complete-registration"
)
