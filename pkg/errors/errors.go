package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError of the same kind.
// Two AppErrors match when their codes are equal, so
// errors.Is(err, ErrInvalidOtp) holds for any INVALID_OTP error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Error codes exposed to clients. They are stable and never reused.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnknownVehicleType  = "UNKNOWN_VEHICLE_TYPE"
	CodeAddressNotFound     = "ADDRESS_NOT_FOUND"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeRideNotFound        = "RIDE_NOT_FOUND"
	CodeInvalidState        = "INVALID_STATE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidOtp          = "INVALID_OTP"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeInternal            = "INTERNAL_ERROR"
)

// Common error constructors

// InvalidInput creates a 400 error for malformed caller-supplied data
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// UnknownVehicleType creates a 400 error for a vehicle class outside the fare table
func UnknownVehicleType(vehicleType string) *AppError {
	return &AppError{
		Code:    CodeUnknownVehicleType,
		Message: fmt.Sprintf("unknown vehicle type %q", vehicleType),
		Status:  http.StatusBadRequest,
	}
}

// AddressNotFound creates a 404 error when the provider has no candidate location
func AddressNotFound(address string) *AppError {
	return &AppError{
		Code:    CodeAddressNotFound,
		Message: fmt.Sprintf("no location found for address %q", address),
		Status:  http.StatusNotFound,
	}
}

// ProviderUnavailable creates a 503 error wrapping a geocoding provider failure
func ProviderUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    CodeProviderUnavailable,
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// InvalidState creates a 409 error for an illegal status transition
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidState,
		Message: message,
		Status:  http.StatusConflict,
	}
}

// Unauthorized creates a 403 error: the caller is known but not entitled
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// Unauthenticated creates a 401 error: the caller could not be identified
func Unauthenticated(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthenticated,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Domain-specific errors

var (
	ErrInvalidInput        = InvalidInput("Invalid input")
	ErrUnknownVehicleType  = &AppError{Code: CodeUnknownVehicleType, Message: "Unknown vehicle type", Status: http.StatusBadRequest}
	ErrAddressNotFound     = &AppError{Code: CodeAddressNotFound, Message: "Address not found", Status: http.StatusNotFound}
	ErrProviderUnavailable = ProviderUnavailable("Geocoding provider unavailable", nil)
	ErrRideNotFound        = &AppError{Code: CodeRideNotFound, Message: "Ride not found", Status: http.StatusNotFound}
	ErrInvalidState        = InvalidState("Invalid status transition")
	ErrUnauthorized        = Unauthorized("Not allowed to act on this ride")
	ErrInvalidOtp          = &AppError{Code: CodeInvalidOtp, Message: "Invalid OTP", Status: http.StatusForbidden}
	ErrUnauthenticated     = Unauthenticated("Authentication required", nil)
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// Return generic internal error if not an AppError
	return Internal("An unexpected error occurred", err)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
