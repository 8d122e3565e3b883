package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"toolcrib-api/internal/middleware"
	"toolcrib-api/internal/service"
	"toolcrib-api/pkg/apierror"
	"toolcrib-api/pkg/response"
)

const maxBodyBytes = 1 << 20

// toAPIError maps service errors onto HTTP errors. Unknown errors become a
// generic 500 and are logged.
func toAPIError(log *zap.Logger, r *http.Request, err error) *apierror.Error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var fe *service.FieldError
	switch {
	case errors.As(err, &fe):
		return apierror.ValidationError("Validation failed", apierror.FieldError{Field: fe.Field, Message: fe.Message})
	case errors.Is(err, service.ErrValidation):
		return apierror.ValidationError(err.Error())
	case errors.Is(err, service.ErrNotFound):
		return apierror.NotFound(err.Error())
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrNegativeResult),
		errors.Is(err, service.ErrAssignmentBelowOutstanding):
		return apierror.Conflict(err.Error())
	}

	log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err))
	return apierror.InternalError("")
}

func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	response.Error(w, toAPIError(log, r, err))
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apierror.BadRequest("failed to read request body")
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		return apierror.BadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest(fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.ValidationError("invalid query parameter",
			apierror.FieldError{Field: name, Message: "must be an integer"})
	}
	return n, nil
}
