package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFieldValidationError_Message(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string][]string
		order  []string
		want   string
	}{
		{
			name:   "Single field",
			fields: map[string][]string{"status": {"The selected status is invalid."}},
			want:   "The selected status is invalid.",
		},
		{
			name: "Two fields",
			fields: map[string][]string{
				"title": {"The title field is required."},
				"brand": {"The brand field is required."},
			},
			want: "The brand field is required. (and 1 more error)",
		},
		{
			name: "Many fields",
			fields: map[string][]string{
				"title":    {"The title field is required."},
				"brand":    {"The brand field is required."},
				"platform": {"The platform field is required."},
			},
			want: "The brand field is required. (and 2 more errors)",
		},
		{
			name: "Declared order wins",
			fields: map[string][]string{
				"status":  {"The selected status is invalid."},
				"brand":   {"The brand field is required."},
				"payment": {"The payment field must be a number."},
			},
			order: []string{"title", "brand", "platform", "due_date", "payment", "status"},
			want:  "The brand field is required. (and 2 more errors)",
		},
		{
			name: "Title first when declared first",
			fields: map[string][]string{
				"title": {"The title field is required."},
				"brand": {"The brand field is required."},
			},
			order: []string{"title", "brand"},
			want:  "The title field is required. (and 1 more error)",
		},
		{
			name: "Undeclared fields follow declared ones",
			fields: map[string][]string{
				"extra": {"The extra field is invalid."},
				"title": {"The title field is required."},
			},
			order: []string{"title"},
			want:  "The title field is required. (and 1 more error)",
		},
		{
			name:   "No fields",
			fields: map[string][]string{},
			want:   "The given data was invalid.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFieldValidationError(tt.fields, tt.order...)
			assert.Equal(t, CodeValidation, err.Code)
			assert.Equal(t, tt.want, err.Message)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found app error", NewNotFoundError("Post"), http.StatusNotFound},
		{"validation", NewValidationError("bad"), http.StatusUnprocessableEntity},
		{"bad request", NewBadRequestError("bad"), http.StatusBadRequest},
		{"internal", NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"sentinel wrapped", fmt.Errorf("lookup: %w", ErrPostNotFound), http.StatusNotFound},
		{"fiber error", fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		expose      bool
		wantMessage string
		wantDetails string
		wantErrors  bool
	}{
		{
			name:        "Not found",
			err:         NewNotFoundError("Post"),
			status:      http.StatusNotFound,
			wantMessage: "Post not found",
		},
		{
			name:        "Validation carries fields",
			err:         NewFieldValidationError(map[string][]string{"title": {"The title field is required."}}),
			status:      http.StatusUnprocessableEntity,
			wantMessage: "The title field is required.",
			wantErrors:  true,
		},
		{
			name:        "Internal hides cause",
			err:         NewInternalError(errors.New("connection refused")),
			status:      http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
		{
			name:        "Internal exposes cause when asked",
			err:         NewInternalError(errors.New("connection refused")),
			status:      http.StatusInternalServerError,
			expose:      true,
			wantMessage: "Internal server error",
			wantDetails: "connection refused",
		},
		{
			name:        "Plain error at 500 is masked",
			err:         errors.New("pq: relation does not exist"),
			status:      http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return RespondWithError(c, tt.status, tt.err, tt.expose)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var body map[string]any
			require.NoError(t, json.Unmarshal(raw, &body))

			assert.Equal(t, tt.wantMessage, body["message"])
			if tt.wantDetails != "" {
				assert.Equal(t, tt.wantDetails, body["details"])
			} else {
				assert.NotContains(t, body, "details")
			}
			if tt.wantErrors {
				assert.Contains(t, body, "errors")
			} else {
				assert.NotContains(t, body, "errors")
			}
		})
	}
}

func TestRespondWithError_NotFoundBodyIsExact(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return RespondWithError(c, http.StatusNotFound, NewNotFoundError("Post"), false)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Post not found"}`, string(raw))
}
