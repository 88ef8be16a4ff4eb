// Package api provides the HTTP ingestion surface for the flashgate gateway.
package api

import "net/http"

type (
	// InitRequest is the payload of POST /init.
	InitRequest struct {
		ProductID string `json:"productId"`
		Quantity  int64  `json:"quantity"`
	}

	// PlaceOrderRequest is the payload of POST /order. The idempotency token
	// travels in the x-idempotency-key header, not the body.
	PlaceOrderRequest struct {
		ProductID string `json:"productId"`
		UserID    string `json:"userId"`
	}

	// StatusResponse is the fixed success/terminal wire shape of the order
	// and init endpoints. Clients match on Status exactly.
	StatusResponse struct {
		Status string `json:"status"`
		Msg    string `json:"msg"`
	}

	// ValidationErrorResponse is the fixed 400 wire shape.
	ValidationErrorResponse struct {
		Error string `json:"error"`
	}

	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// Route represents an HTTP route configuration with a path and handler.
	Route struct {
		Path    string           // The URL path for this route (e.g., "GET /ping")
		Handler http.HandlerFunc // The HTTP handler function for this route
	}
)
