package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/stellar-aggregon/aggregon/internal/cache"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// Handler holds the dependencies every route handler reads from: the
// durable state store, the routing engine, and the best-effort response
// cache.
type Handler struct {
	store     domain.StateStore
	routing   domain.RoutingEngine
	cache     *cache.Store
	health    HealthReporter
	analytics AnalyticsProvider
	log       zerolog.Logger
}

// errorResponse is the REST error envelope from §6.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	derr, ok := err.(*domain.Error)
	if !ok {
		log.Error().Err(err).Msg("unclassified handler error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch derr.Kind {
	case domain.KindInvalidRequest:
		status = http.StatusBadRequest
	case domain.KindRoutingError:
		if derr.Code == domain.CodePairNotFound {
			status = http.StatusNotFound
		} else {
			status = http.StatusUnprocessableEntity
		}
	case domain.KindStoreError, domain.KindTransientExternal:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", derr.Code).Msg("handler error")
	}
	writeJSON(w, status, errorResponse{Error: derr.Code, Message: derr.Message})
}
