package api

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	Sessions         int    `json:"sessions"`
	SlotsBusy        int    `json:"slots_busy"`
	Restarts         int    `json:"restarts"`
	EventSubscribers int    `json:"event_subscribers"`
}
