package models

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeBadRequest = "BAD_REQUEST"
	CodeInternal   = "INTERNAL_ERROR"
)

// ErrPostNotFound is returned by the post store when no row has the requested id.
var ErrPostNotFound = errors.New("post not found")

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Details string              `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	// Fields maps a request field to its validation messages.
	Fields map[string][]string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: resource + " not found",
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewFieldValidationError builds a validation error from per-field messages.
// The summary message names the first failing field and how many more problems
// there are. Fields listed in order come first, in that order; any others
// follow alphabetically.
func NewFieldValidationError(fields map[string][]string, order ...string) *AppError {
	total := 0
	for _, msgs := range fields {
		total += len(msgs)
	}
	keys := orderedKeys(fields, order)

	message := "The given data was invalid."
	if len(keys) > 0 && len(fields[keys[0]]) > 0 {
		message = fields[keys[0]][0]
		switch rest := total - 1; {
		case rest == 1:
			message += " (and 1 more error)"
		case rest > 1:
			message += fmt.Sprintf(" (and %d more errors)", rest)
		}
	}

	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Fields:  fields,
	}
}

func orderedKeys(fields map[string][]string, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, k := range order {
		if _, ok := fields[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(fields)-len(keys))
	for k := range fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusFor maps an error to the HTTP status it should be reported with.
func StatusFor(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeNotFound:
			return fiber.StatusNotFound
		case CodeValidation:
			return fiber.StatusUnprocessableEntity
		case CodeBadRequest:
			return fiber.StatusBadRequest
		}
		return fiber.StatusInternalServerError
	}
	if errors.Is(err, ErrPostNotFound) {
		return fiber.StatusNotFound
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// RespondWithError writes the standardized error envelope. Wrapped causes are
// only exposed when exposeDetails is set.
func RespondWithError(c *fiber.Ctx, status int, err error, exposeDetails bool) error {
	var response ErrorResponse

	var appErr *AppError
	var fe *fiber.Error
	switch {
	case errors.As(err, &appErr):
		response = ErrorResponse{
			Message: appErr.Message,
			Errors:  appErr.Fields,
		}
		if appErr.Err != nil && exposeDetails {
			response.Details = appErr.Err.Error()
		}
	case errors.As(err, &fe):
		response = ErrorResponse{Message: fe.Message}
	case status >= fiber.StatusInternalServerError:
		response = ErrorResponse{Message: "Internal server error"}
		if exposeDetails {
			response.Details = err.Error()
		}
	default:
		response = ErrorResponse{Message: err.Error()}
	}

	return c.Status(status).JSON(response)
}
