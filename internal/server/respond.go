package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"PortfolioLedger/internal/ledger"
)

const maxBodyBytes = 1 << 20

// apiHandler returns the response body and status, or an error that is
// mapped to a status by its kind.
type apiHandler func(r *http.Request, params map[string]string) (interface{}, int, error)

// errorResponse is the body of every non-2xx API reply.
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch ledger.Kind(err) {
	case ledger.ErrInvalidInput:
		return http.StatusBadRequest
	case ledger.ErrNoPosition, ledger.ErrNotFound:
		return http.StatusNotFound
	case ledger.ErrDuplicateOperation, ledger.ErrConflict:
		return http.StatusConflict
	case ledger.ErrInsufficientFunds, ledger.ErrInvalidOperation:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// instrument adapts h to the gateway mux and records request metrics under
// the route pattern.
func (s *HTTPServer) instrument(pattern string, h apiHandler) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, status, err := h(r, params)
		if err != nil {
			status = StatusFor(err)
			if status >= http.StatusInternalServerError {
				s.log.Error().Err(err).Str("route", pattern).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
			}
			if s.metrics != nil {
				s.metrics.QueryErrors.WithLabelValues(pattern, ledger.KindLabel(err)).Inc()
			}
			body = errorResponse{
				Error:     err.Error(),
				Kind:      ledger.KindLabel(err),
				RequestID: middleware.GetReqID(r.Context()),
			}
		}

		writeJSON(w, status, body)

		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(pattern, strconv.Itoa(status)).Inc()
			s.metrics.QueryDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// routingErrorHandler keeps unknown routes on the API's error shape.
func routingErrorHandler(_ context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, r *http.Request, status int) {
	kind := "not_found"
	if status == http.StatusMethodNotAllowed {
		kind = "method_not_allowed"
	}
	writeJSON(w, status, errorResponse{
		Error:     fmt.Sprintf("%s %s: %s", r.Method, r.URL.Path, http.StatusText(status)),
		Kind:      kind,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: request body: %v", ledger.ErrInvalidInput, err)
	}
	return nil
}

// int64Param parses an optional epoch-millis query parameter.
func int64Param(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be non-negative epoch millis, got %q", ledger.ErrInvalidInput, name, raw)
	}
	return v, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", ledger.ErrInvalidInput, name, raw)
	}
	return v, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func noPrice(symbol string) error {
	return fmt.Errorf("%w: no price for %s in range", ledger.ErrNotFound, symbol)
}
