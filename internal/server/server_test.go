package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"postdesk/internal/config"
	"postdesk/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		Port:           "0",
		DBDriver:       config.DriverSQLite,
		DBSQLitePath:   ":memory:",
		DBSchemaMode:   config.SchemaModeSQL,
		AllowedOrigins: "http://localhost:3000",
	}
}

// newTestApp wires a full app over a migrated in-memory SQLite database.
func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := testConfig()

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, database.ApplySchema(context.Background(), db, cfg))

	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return srv.NewApp()
}

type apiResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r apiResponse) object(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(r.Body, &out), string(r.Body))
	return out
}

func (r apiResponse) str(t *testing.T, field string) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(r.object(t)[field], &s))
	return s
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return apiResponse{Status: resp.StatusCode, Header: resp.Header, Body: data}
}

const launchPost = `{"title":"Launch","brand":"Acme","platform":"Instagram","due_date":"2025-03-10","payment":100.50,"status":"pending"}`

func TestPostsLifecycle(t *testing.T) {
	app := newTestApp(t)

	created := doRequest(t, app, http.MethodPost, "/api/posts", launchPost)
	require.Equal(t, http.StatusCreated, created.Status, string(created.Body))

	post := created.object(t)
	assert.JSONEq(t, `1`, string(post["id"]))
	assert.Equal(t, "Launch", created.str(t, "title"))
	assert.Equal(t, "Acme", created.str(t, "brand"))
	assert.Equal(t, "Instagram", created.str(t, "platform"))
	assert.Equal(t, "2025-03-10", created.str(t, "due_date"))
	assert.Equal(t, "100.50", string(post["payment"]))
	assert.Equal(t, "pending", created.str(t, "status"))
	assert.Equal(t, created.str(t, "created_at"), created.str(t, "updated_at"))

	shown := doRequest(t, app, http.MethodGet, "/api/posts/1", "")
	require.Equal(t, http.StatusOK, shown.Status)
	assert.Equal(t, "2025-03-10", shown.str(t, "due_date"))
	assert.Equal(t, "100.50", string(shown.object(t)["payment"]))

	time.Sleep(10 * time.Millisecond)
	updated := doRequest(t, app, http.MethodPut, "/api/posts/1", `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, updated.Status, string(updated.Body))
	assert.Equal(t, "completed", updated.str(t, "status"))
	assert.Equal(t, "Launch", updated.str(t, "title"))
	assert.Equal(t, "Acme", updated.str(t, "brand"))
	assert.Equal(t, "Instagram", updated.str(t, "platform"))
	assert.Equal(t, "2025-03-10", updated.str(t, "due_date"))
	assert.Equal(t, "100.50", string(updated.object(t)["payment"]))
	assert.NotEqual(t, created.str(t, "updated_at"), updated.str(t, "updated_at"))

	list := doRequest(t, app, http.MethodGet, "/api/posts", "")
	require.Equal(t, http.StatusOK, list.Status)
	var posts []map[string]any
	require.NoError(t, json.Unmarshal(list.Body, &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "completed", posts[0]["status"])

	deleted := doRequest(t, app, http.MethodDelete, "/api/posts/1", "")
	assert.Equal(t, http.StatusNoContent, deleted.Status)
	assert.Empty(t, deleted.Body)

	again := doRequest(t, app, http.MethodDelete, "/api/posts/1", "")
	assert.Equal(t, http.StatusNotFound, again.Status)
	assert.JSONEq(t, `{"message":"Post not found"}`, string(again.Body))

	list = doRequest(t, app, http.MethodGet, "/api/posts", "")
	assert.JSONEq(t, `[]`, string(list.Body))
}

func TestPostIDsAreUnique(t *testing.T) {
	app := newTestApp(t)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		resp := doRequest(t, app, http.MethodPost, "/api/posts", launchPost)
		require.Equal(t, http.StatusCreated, resp.Status)
		id := string(resp.object(t)["id"])
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestMissingPostIsNotFound(t *testing.T) {
	app := newTestApp(t)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/posts/999", ""},
		{http.MethodPut, "/api/posts/999", `{"status":"completed"}`},
		{http.MethodPut, "/api/posts/999", `{"status":"archived"}`},
		{http.MethodDelete, "/api/posts/999", ""},
		{http.MethodGet, "/api/posts/abc", ""},
		{http.MethodGet, "/api/posts/0", ""},
		{http.MethodGet, "/api/posts/-4", ""},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := doRequest(t, app, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusNotFound, resp.Status)
			assert.JSONEq(t, `{"message":"Post not found"}`, string(resp.Body))
		})
	}
}

func TestCreateEmptyBodyNamesEveryField(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/posts", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)

	var body struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	for _, field := range []string{"title", "brand", "platform", "due_date", "payment", "status"} {
		assert.Contains(t, body.Errors, field)
	}
	assert.Equal(t, "The title field is required. (and 5 more errors)", body.Message)

	list := doRequest(t, app, http.MethodGet, "/api/posts", "")
	assert.JSONEq(t, `[]`, string(list.Body))
}

func TestInvalidStatusNeverPersists(t *testing.T) {
	app := newTestApp(t)

	create := doRequest(t, app, http.MethodPost, "/api/posts",
		`{"title":"Launch","brand":"Acme","platform":"Instagram","due_date":"2025-03-10","payment":1,"status":"archived"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, create.Status)

	list := doRequest(t, app, http.MethodGet, "/api/posts", "")
	assert.JSONEq(t, `[]`, string(list.Body))

	require.Equal(t, http.StatusCreated, doRequest(t, app, http.MethodPost, "/api/posts", launchPost).Status)
	update := doRequest(t, app, http.MethodPut, "/api/posts/1", `{"status":"archived","title":"Changed"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, update.Status)

	shown := doRequest(t, app, http.MethodGet, "/api/posts/1", "")
	assert.Equal(t, "pending", shown.str(t, "status"))
	assert.Equal(t, "Launch", shown.str(t, "title"))
}

func TestMalformedBody(t *testing.T) {
	app := newTestApp(t)

	for _, body := range []string{`{"title":`, `[1,2]`, `"text"`} {
		resp := doRequest(t, app, http.MethodPost, "/api/posts", body)
		assert.Equal(t, http.StatusBadRequest, resp.Status, body)
	}
}

func TestUnknownFieldsAreIgnored(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/posts",
		`{"id":77,"created_at":"2000-01-01T00:00:00Z","title":"Launch","brand":"Acme","platform":"Instagram","due_date":"2025-03-10","payment":"20","status":"completed"}`)
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))
	assert.JSONEq(t, `1`, string(resp.object(t)["id"]))
	assert.Equal(t, "20.00", string(resp.object(t)["payment"]))
	assert.NotEqual(t, "2000-01-01T00:00:00Z", resp.str(t, "created_at"))
}

func TestPaymentExponentForms(t *testing.T) {
	tests := []struct {
		name    string
		payment string
		want    string
	}{
		{"Exponent", `1e2`, "100.00"},
		{"Fractional exponent", `100.5e0`, "100.50"},
		{"Exponent as string", `"1e2"`, "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)

			body := `{"title":"Launch","brand":"Acme","platform":"Instagram","due_date":"2025-03-10","payment":` +
				tt.payment + `,"status":"pending"}`
			resp := doRequest(t, app, http.MethodPost, "/api/posts", body)
			require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))
			assert.Equal(t, tt.want, string(resp.object(t)["payment"]))

			shown := doRequest(t, app, http.MethodGet, "/api/posts/1", "")
			require.Equal(t, http.StatusOK, shown.Status)
			assert.Equal(t, tt.want, string(shown.object(t)["payment"]))
		})
	}
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	app := newTestApp(t)

	live := doRequest(t, app, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, live.Status)

	ready := doRequest(t, app, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, ready.Status)
	assert.Contains(t, string(ready.Body), `"redis":"disabled"`)

	missing := doRequest(t, app, http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, missing.Status)
	assert.Contains(t, string(missing.Body), `"message"`)

	assert.NotEmpty(t, live.Header.Get(fiber.HeaderXRequestID))
}

func TestNewServerWithDeps_RequiresDB(t *testing.T) {
	_, err := NewServerWithDeps(testConfig(), nil, nil)
	assert.Error(t, err)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig()

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, database.ApplySchema(context.Background(), db, cfg))

	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	return srv
}

func listenAsync(srv *Server) <-chan error {
	done := make(chan error, 1)
	go func() { done <- srv.Listen() }()
	return done
}

func TestShutdownBeforeListen(t *testing.T) {
	srv := newTestServer(t)
	srv.NewApp()

	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err := <-listenAsync(srv):
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen kept serving after Shutdown")
	}
}

func TestListenThenShutdown(t *testing.T) {
	srv := newTestServer(t)
	srv.NewApp()
	done := listenAsync(srv)

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.listener != nil
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after Shutdown")
	}
}
