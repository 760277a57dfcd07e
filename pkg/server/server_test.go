package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/minipl/pkg/auth"
	"github.com/antibyte/minipl/pkg/shared"
	"github.com/antibyte/minipl/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, enableAuth bool) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "minipl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &Config{
		Port:        "0",
		EnableAuth:  enableAuth,
		RecordRuns:  true,
		CorsOrigins: []string{"*"},
		MaxClients:  4,
	}
	settings := shared.RunSettings{MaxSourceBytes: 256, Timeout: 5 * time.Second}
	return NewServer(cfg, st, settings, nil), st
}

func doRequest(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRunEndpoint(t *testing.T) {
	s, _ := newTestServer(t, false)

	tests := []struct {
		name       string
		body       string
		wantStdout string
		wantKind   string
		wantGlobal map[string]any
	}{
		{
			name:       "arithmetic",
			body:       `{"source":"var a : int := 2; var b : int := 10 * a + 10; print b"}`,
			wantStdout: "30\n",
			wantGlobal: map[string]any{"a": float64(2), "b": float64(30)},
		},
		{
			name:       "read from stdin",
			body:       `{"source":"var s : string; read s; print s","stdin":"hello\n"}`,
			wantStdout: "hello\n",
			wantGlobal: map[string]any{"s": "hello"},
		},
		{
			name:     "program error",
			body:     `{"source":"print nothing"}`,
			wantKind: "UndeclaredVariableError",
		},
		{
			name:     "lexical error",
			body:     `{"source":"var x : int := 1 $ 2"}`,
			wantKind: "LexicalError",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/run", tt.body, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decode[RunResponse](t, rec)
			assert.NotEmpty(t, resp.RunID)
			assert.Equal(t, tt.wantStdout, resp.Stdout)
			if tt.wantKind != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantKind, resp.Error.Kind)
				return
			}
			assert.Nil(t, resp.Error)
			assert.Equal(t, tt.wantGlobal, resp.Globals)
		})
	}
}

func TestRunEndpointRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t, false)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"source":`, http.StatusBadRequest},
		{"source too large", `{"source":"` + strings.Repeat("print x;", 40) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/run", tt.body, "")
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Message)
		})
	}
}

func TestRunHistory(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := doRequest(t, s, http.MethodPost, "/api/run", `{"source":"var x : int := 4; print x"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[RunResponse](t, rec).RunID

	rec = doRequest(t, s, http.MethodGet, "/api/runs/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[store.Run](t, rec)
	assert.Equal(t, "4\n", run.Stdout)
	assert.Equal(t, auth.GuestUser, run.Username)

	rec = doRequest(t, s, http.MethodGet, "/api/runs?limit=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]store.Run](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodGet, "/api/runs/missing", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, http.MethodGet, "/api/runs?limit=zero", "", "").Code)
}

func TestPrograms(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := doRequest(t, s, http.MethodGet, "/api/programs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]string](t, rec))

	rec = doRequest(t, s, http.MethodPut, "/api/programs/hello", `{"source":"print \"hi\""}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, s, http.MethodGet, "/api/programs/hello", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `print "hi"`, decode[store.Program](t, rec).Source)

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodGet, "/api/programs/other", "", "").Code)
}

func TestAuthRequired(t *testing.T) {
	s, st := newTestServer(t, true)
	require.NoError(t, st.CreateUser("ada", "lovelace", false))

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, s, http.MethodGet, "/api/runs", "", "").Code)

	rec := doRequest(t, s, http.MethodPost, "/api/auth/login", `{"username":"ada","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/auth/login", `{"username":"ada","password":"lovelace"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[auth.LoginResponse](t, rec).Token
	require.NotEmpty(t, token)

	rec = doRequest(t, s, http.MethodPost, "/api/run", `{"source":"var x : int := 1"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[RunResponse](t, rec).RunID

	rec = doRequest(t, s, http.MethodGet, "/api/runs/"+id, "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada", decode[store.Run](t, rec).Username)
}

func TestRunHistoryIsPerUser(t *testing.T) {
	s, st := newTestServer(t, true)
	require.NoError(t, st.CreateUser("ada", "lovelace", false))
	require.NoError(t, st.CreateUser("alan", "turing", false))

	login := func(user, password string) string {
		body := `{"username":"` + user + `","password":"` + password + `"}`
		rec := doRequest(t, s, http.MethodPost, "/api/auth/login", body, "")
		require.Equal(t, http.StatusOK, rec.Code)
		return decode[auth.LoginResponse](t, rec).Token
	}
	ada := login("ada", "lovelace")
	alan := login("alan", "turing")

	rec := doRequest(t, s, http.MethodPost, "/api/run", `{"source":"var secret : string; read secret","stdin":"hunter2\n"}`, ada)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[RunResponse](t, rec).RunID
	require.NotEmpty(t, id)

	rec = doRequest(t, s, http.MethodGet, "/api/runs", "", ada)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]store.Run](t, rec), 1)

	rec = doRequest(t, s, http.MethodGet, "/api/runs", "", alan)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]store.Run](t, rec))

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodGet, "/api/runs/"+id, "", alan).Code)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := doRequest(t, s, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s, _ := newTestServer(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.CorsOrigins)

	assert.Equal(t, []string{"http://a", "http://b"}, splitOrigins(" http://a, ,http://b "))
	assert.Error(t, validatePort("70000"))
	assert.Error(t, validatePort("http"))
}
