package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = fmt.Errorf("invalid input")
	ErrRoomNotFound       = fmt.Errorf("room not found")
	ErrStoreUnavailable   = fmt.Errorf("store unavailable")
	ErrChannelUnavailable = fmt.Errorf("channel unavailable")
	ErrInvalidCredential  = fmt.Errorf("invalid or missing credential")
	ErrRoomFull           = fmt.Errorf("room is full")
	ErrKeyNotFound        = fmt.Errorf("key not found")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrSinkTimeout        = fmt.Errorf("sink delivery timeout")
	ErrUnknownBackend     = fmt.Errorf("unknown backend")
)

// RoomUnavailable is the only message a caller ever sees about a missing room,
// whether it never existed, expired or was destroyed.
const RoomUnavailable = "room unavailable"

// MapToHTTPError translates a service error into a status code and a public message.
// Infrastructure details never leak to the caller.
func MapToHTTPError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized, ErrInvalidCredential.Error()
	case errors.Is(err, ErrRoomFull):
		return http.StatusForbidden, ErrRoomFull.Error()
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound, RoomUnavailable
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrStoreUnavailable.Error()
	default:
		return http.StatusInternalServerError, "an unexpected error occurred"
	}
}
