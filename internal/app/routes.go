package app

import "net/http"

// setupRoutes configures all HTTP routes for the application.
func setupRoutes(mux *http.ServeMux, container *Container) {
	// Workflow run events arrive here and trigger acquisition runs
	mux.HandleFunc("/webhook", jsonContentTypeMiddleware(container.WebhookHandler.HandleWebhook))

	mux.HandleFunc("/health", jsonContentTypeMiddleware(container.HealthHandler.HandleHealthCheck))
}
