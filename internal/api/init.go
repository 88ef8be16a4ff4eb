// Package api provides the HTTP ingestion surface for the flashgate gateway.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flashgate-io/flashgate/internal/api/middleware"
	"github.com/flashgate-io/flashgate/internal/sale"
)

// handleInit serves POST /init, the administrative stock initialization.
//
// Init writes only the counter-store stock key; the durable product row is
// seeded by the fulfiller bootstrap or the migrator, never here. The
// operation is a plain overwrite, so repeating it is safe.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		s.writeJSON(w, r, http.StatusBadRequest, ValidationErrorResponse{
			Error: "Content-Type must be application/json",
		})

		return
	}

	var payload InitRequest

	body := http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, ValidationErrorResponse{
			Error: "Malformed request body",
		})

		return
	}

	err := s.service.InitStock(r.Context(), payload.ProductID, payload.Quantity)
	if err != nil {
		if sale.IsValidationError(err) {
			s.writeJSON(w, r, http.StatusBadRequest, ValidationErrorResponse{
				Error: err.Error(),
			})

			return
		}

		s.logger.Error("Stock initialization failed",
			slog.String("correlation_id", correlationID),
			slog.String("product_id", payload.ProductID),
			slog.String("error", err.Error()),
		)

		s.writeJSON(w, r, http.StatusInternalServerError, StatusResponse{
			Status: "error",
			Msg:    "Stock initialization failed",
		})

		return
	}

	s.writeJSON(w, r, http.StatusOK, StatusResponse{
		Status: "ok",
		Msg:    fmt.Sprintf("Stock for %s set to %d", payload.ProductID, payload.Quantity),
	})
}
