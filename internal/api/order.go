// Package api provides the HTTP ingestion surface for the flashgate gateway.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/flashgate-io/flashgate/internal/api/middleware"
	"github.com/flashgate-io/flashgate/internal/sale"
)

// idempotencyKeyHeader carries the client's opaque retry token.
const idempotencyKeyHeader = "x-idempotency-key"

// Fixed wire bodies of the order endpoint. Clients match on these exactly.
var (
	orderAcceptedBody  = StatusResponse{Status: "success", Msg: "Order accepted"}
	orderDuplicateBody = StatusResponse{Status: "ignored", Msg: "Duplicate request"}
	orderSoldOutBody   = StatusResponse{Status: "sold_out", Msg: "Inventory empty"}
	orderFailureBody   = StatusResponse{Status: "error", Msg: "Order processing failed"}
)

// handleOrder serves POST /order, the purchase hot path.
//
// The handler is a thin translation layer: it lifts the token out of the
// x-idempotency-key header, decodes the tiny JSON body, and maps the
// service's outcome taxonomy onto the fixed status/body matrix. All ordering
// guarantees live in sale.Service, not here.
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	req := &sale.OrderRequest{
		IdempotencyToken: r.Header.Get(idempotencyKeyHeader),
	}

	var payload PlaceOrderRequest

	body := http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		// A malformed body is a client error, but the admission tally has
		// not been charged yet; the service charges it before validating.
		// Run the request through anyway so admission accounting stays
		// uniform, with empty fields that validation will reject.
		s.logger.Warn("Malformed order body",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}

	req.ProductID = payload.ProductID
	req.UserID = payload.UserID

	result, err := s.service.PlaceOrder(r.Context(), req)
	if err != nil {
		s.writeOrderError(w, r, err)

		return
	}

	// The request logger only sees status codes; accepted and duplicate
	// share a 200, so the distinction is logged here where it is known.
	s.logger.Info("Order processed",
		slog.String("correlation_id", correlationID),
		slog.String("outcome", result.Outcome.String()),
	)

	switch result.Outcome {
	case sale.OutcomeAccepted:
		s.writeJSON(w, r, http.StatusOK, orderAcceptedBody)
	case sale.OutcomeDuplicate:
		s.writeJSON(w, r, http.StatusOK, orderDuplicateBody)
	case sale.OutcomeSoldOut:
		s.writeJSON(w, r, http.StatusConflict, orderSoldOutBody)
	case sale.OutcomeThrottled:
		w.Header().Set("Location", s.config.WaitingRoomURL)
		w.WriteHeader(http.StatusFound)
	default:
		s.logger.Error("Unknown order outcome",
			slog.String("correlation_id", correlationID),
			slog.String("outcome", result.Outcome.String()),
		)

		s.writeJSON(w, r, http.StatusInternalServerError, orderFailureBody)
	}
}

// writeOrderError maps a hot-path error onto the wire.
//
// Validation failures answer 400 with the fixed {"error": ...} shape.
// Everything else answers the stable 500 body; the reserved-but-not-logged
// state additionally gets its reconciliation log line here so the gateway
// log carries the correlation id alongside the order details logged by the
// service.
func (s *Server) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if sale.IsValidationError(err) {
		s.writeJSON(w, r, http.StatusBadRequest, ValidationErrorResponse{
			Error: validationMessage(err),
		})

		return
	}

	if errors.Is(err, sale.ErrReservedNotLogged) {
		s.logger.Error("Order failed after reservation; unit needs reconciliation",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	} else {
		s.logger.Error("Order processing failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}

	s.writeJSON(w, r, http.StatusInternalServerError, orderFailureBody)
}

// validationMessage translates validation sentinels into the client-facing
// message. The missing-token case has a fixed wording clients depend on.
func validationMessage(err error) string {
	if errors.Is(err, sale.ErrMissingToken) {
		return "Missing Idempotency Key"
	}

	return err.Error()
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)

		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}
