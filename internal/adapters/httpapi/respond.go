package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

type errorBody struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON response with the given status
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondError maps domain errors onto HTTP statuses:
// not found 404, auth 401, ownership/role 403, bad state or volume 409,
// bad token 400, malformed field 422, processor trouble 502, the rest 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *shared.NotFoundError
		unauthorized *shared.UnauthorizedError
		forbidden    *shared.ForbiddenError
		transition   *shared.InvalidTransitionError
		volume       *shared.InsufficientVolumeError
		token        *shared.InvalidTokenError
		validation   *shared.ValidationError
		processor    *shared.ProcessorError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &unauthorized):
		status = http.StatusUnauthorized
	case errors.As(err, &forbidden):
		status = http.StatusForbidden
	case errors.As(err, &transition):
		status = http.StatusConflict
	case errors.As(err, &volume):
		status = http.StatusConflict
	case errors.As(err, &token):
		status = http.StatusBadRequest
	case errors.As(err, &validation):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &processor):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		common.LoggerFromContext(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		respondJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	respondJSON(w, status, errorBody{Error: err.Error()})
}

// decodeBody parses a JSON request body into dst
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return shared.NewValidationError("body", "malformed JSON")
	}
	return nil
}
