package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"learnlynk/internal/config"
	"learnlynk/internal/db"
	"learnlynk/internal/engine"
	"learnlynk/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testJWTSecret, AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "counselor-1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestCreateListCompleteFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", map[string]any{
		"application_id": "app-1",
		"task_type":      "call",
		"due_at":         "2024-03-16T09:00:00Z",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created CreateTaskResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	if !created.Success || created.TaskID == "" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks?application_id=app-1", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var list TaskListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if list.Count != 1 || list.Items[0].ID != created.TaskID || list.Items[0].Status != "open" {
		t.Fatalf("unexpected list: %+v", list)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+created.TaskID+"/complete", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(data))
	}
	var completed CompleteTaskResponse
	if err := json.Unmarshal(data, &completed); err != nil {
		t.Fatalf("unmarshal complete: %v", err)
	}
	if !completed.Success || completed.Status != "completed" {
		t.Fatalf("unexpected complete response: %+v", completed)
	}

	// a second completion now conflicts
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+created.TaskID+"/complete", nil, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if env.Error.Code != "conflict" {
		t.Fatalf("expected conflict code, got %q", env.Error.Code)
	}
}

func TestTodayEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// due later today relative to the pinned clock
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", map[string]any{
		"application_id": "app-7",
		"task_type":      "review",
		"due_at":         "2024-03-15T18:00:00Z",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created CreateTaskResponse
	_ = json.Unmarshal(data, &created)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks/today", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("today status %d: %s", res.StatusCode, string(data))
	}
	var list TaskListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal today: %v", err)
	}
	if list.Count != 1 || list.Items[0].ID != created.TaskID {
		t.Fatalf("unexpected today list: %+v", list)
	}

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+created.TaskID+"/complete", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks/today", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("today status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal today: %v", err)
	}
	if list.Count != 0 {
		t.Fatalf("completed task still in today list: %+v", list)
	}
}

func TestCreateValidationErrors(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	cases := []struct {
		name string
		body map[string]any
		code string
	}{
		{"missing fields", map[string]any{"application_id": "app-1"}, "missing_fields"},
		{"empty body", map[string]any{}, "missing_fields"},
		{"invalid type", map[string]any{"application_id": "app-1", "task_type": "sms", "due_at": "2024-03-16T09:00:00Z"}, "invalid_task_type"},
		{"bad timestamp", map[string]any{"application_id": "app-1", "task_type": "call", "due_at": "soon"}, "invalid_timestamp"},
		{"not future", map[string]any{"application_id": "app-1", "task_type": "call", "due_at": "2024-03-15T12:00:00Z"}, "timestamp_not_future"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", tc.body, nil)
			if res.StatusCode != http.StatusBadRequest {
				t.Fatalf("status %d: %s", res.StatusCode, string(data))
			}
			var env errorEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("unmarshal error: %v", err)
			}
			if env.Error.Code != tc.code {
				t.Fatalf("expected code %q, got %q (%s)", tc.code, env.Error.Code, string(data))
			}
			if tc.code == "missing_fields" {
				required, ok := env.Error.Details["required"].([]any)
				if !ok || len(required) == 0 {
					t.Fatalf("expected required field list in details, got %v", env.Error.Details)
				}
			}
		})
	}
}

func TestInvalidTypeCarriesAllowedSet(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/tasks", map[string]any{
		"application_id": "app-1",
		"task_type":      "sms",
		"due_at":         "2024-03-16T09:00:00Z",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	allowed, ok := env.Error.Details["allowed"].([]any)
	if !ok || len(allowed) != 3 {
		t.Fatalf("expected allowed set in details, got %v", env.Error.Details)
	}
	want := []string{"call", "email", "review"}
	for i, v := range allowed {
		if v != want[i] {
			t.Fatalf("allowed %v, want %v", allowed, want)
		}
	}
}

func TestCompleteUnknownTaskReturns404(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/tasks/nope/complete", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/tasks/today", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}
}

func TestHealthExemptFromAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, err := srv.Client().Get(srv.URL + "/v1/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestJWTBearerAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "counselor-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/tasks/today", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bearer auth status %d", res.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/tasks/today", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	res, err = srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
}
