package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/jwt"
	"github.com/dmitrymomot/pulse/pkg/ledger"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/stream"
)

var (
	ErrStreamRequired   = errors.New("api: stream service is required")
	ErrRegistryRequired = errors.New("api: connection registry is required")
	ErrAuthRequired     = errors.New("api: jwt service is required")
	ErrNotPolling       = errors.New("connection is not a polling connection")
)

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// statusOf maps the error taxonomy to HTTP.
func statusOf(err error) int {
	switch {
	case errors.Is(err, notifications.ErrValidation), errors.Is(err, ErrNotPolling):
		return http.StatusBadRequest
	case errors.Is(err, notifications.ErrUnauthorized),
		errors.Is(err, jwt.ErrMissingToken),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrExpiredToken),
		errors.Is(err, jwt.ErrInvalidSignature),
		errors.Is(err, jwt.ErrMissingSiteID):
		return http.StatusUnauthorized
	case errors.Is(err, notifications.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, notifications.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, notifications.ErrInvalidTransition),
		errors.Is(err, ledger.ErrDuplicateRecord),
		errors.Is(err, stream.ErrDuplicateConnection),
		errors.Is(err, ledger.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, notifications.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, stream.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// detailOf renders err for the client. Internal errors keep their text out
// of the response.
func detailOf(err error, status int) ErrorDetail {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		return ErrorDetail{Message: http.StatusText(status)}
	}
	if status == http.StatusUnauthorized {
		return ErrorDetail{Message: "unauthorized"}
	}

	d := ErrorDetail{Message: err.Error()}
	var (
		verr notifications.ValidationError
		nerr notifications.NotFoundError
		terr notifications.InvalidTransitionError
		rerr notifications.RateLimitError
		herr broadcast.ErrHandleClosed
	)
	switch {
	case errors.As(err, &verr):
		d.Details = map[string]any{"field": verr.Field}
		if verr.Reason != "" {
			d.Details["reason"] = verr.Reason
		}
	case errors.As(err, &nerr):
		d.Details = map[string]any{"kind": nerr.Kind, "id": nerr.ID}
	case errors.As(err, &terr):
		d.Details = map[string]any{"from": terr.From, "to": terr.To}
	case errors.As(err, &rerr):
		d.Details = map[string]any{"key": rerr.Key, "limit": rerr.Limit}
	case errors.As(err, &herr):
		d.Details = map[string]any{"connectionId": herr.ID}
	}
	return d
}

func notFound(kind, id string) error {
	return notifications.NotFoundError{Kind: kind, ID: id}
}
