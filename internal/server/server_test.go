package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := engine.New(conn, cfg)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{AllowLegacyActorHeader: true},
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
	t.Cleanup(testSrv.Close)
	return testSrv
}

func seedUser(t *testing.T, e engine.Engine, username, role string) domain.User {
	t.Helper()
	u, err := e.Repo.InsertUser(context.Background(), domain.User{
		Username:  username,
		Email:     username + "@example.com",
		Role:      role,
		CreatedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func actorHeader(u domain.User) map[string]string {
	return map[string]string{"X-Actor-Id": fmt.Sprint(u.ID)}
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

func TestAllocationFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	admin := seedUser(t, srv.Engine, "root", "admin")
	manager := seedUser(t, srv.Engine, "mgr", "manager")
	alice := seedUser(t, srv.Engine, "alice", "freelancer")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", map[string]any{
		"title": "Translate catalog",
	}, actorHeader(admin))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create job: %d %s", res.StatusCode, string(data))
	}
	var job JobResponse
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/v0/jobs/%d/manager", srv.URL, job.ID), map[string]any{
		"username": manager.Username,
	}, actorHeader(admin))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign manager: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches", map[string]any{
		"job_id":   job.ID,
		"capacity": 10,
	}, actorHeader(manager))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create batch: %d %s", res.StatusCode, string(data))
	}
	var batch BatchResponse
	if err := json.Unmarshal(data, &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"job_id":              job.ID,
		"batch_id":            batch.ID,
		"freelancer_username": alice.Username,
		"title":               "Chapter 1",
		"count":               6,
	}, actorHeader(manager))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var created TaskDetailResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.Task.Count != 6 || created.Task.Status != "pending" {
		t.Fatalf("unexpected task %+v", created.Task)
	}

	// over-allocating reports the computed remaining
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"job_id":              job.ID,
		"batch_id":            batch.ID,
		"freelancer_username": alice.Username,
		"title":               "Chapter 2",
		"count":               5,
	}, actorHeader(manager))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "capacity_exceeded" {
		t.Fatalf("error code %q body %s", envelope.Error.Code, string(data))
	}
	if envelope.Error.Details["remaining"] != float64(4) {
		t.Fatalf("error details %+v", envelope.Error.Details)
	}

	res, data = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/v0/batches/%d", srv.URL, batch.ID), nil, actorHeader(manager))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("batch detail: %d %s", res.StatusCode, string(data))
	}
	var detail BatchDetailResponse
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail.AssignedTotal != 6 || detail.Remaining != 4 {
		t.Fatalf("detail totals: %+v", detail)
	}

	// assignee works the task through its lifecycle
	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/v0/tasks/%d/status", srv.URL, created.Task.ID), map[string]any{
		"status": "in_progress",
	}, actorHeader(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set status: %d %s", res.StatusCode, string(data))
	}
	var updated TaskResponse
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if updated.Status != "in_progress" {
		t.Fatalf("status %s", updated.Status)
	}
}

func TestApplicationPromotionFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	admin := seedUser(t, srv.Engine, "root", "admin")
	manager := seedUser(t, srv.Engine, "mgr", "manager")
	bob := seedUser(t, srv.Engine, "bob", "freelancer")

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", map[string]any{"title": "Review queue"}, actorHeader(admin))
	var job JobResponse
	_ = json.Unmarshal(data, &job)
	doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/v0/jobs/%d/manager", srv.URL, job.ID), map[string]any{"username": manager.Username}, actorHeader(admin))
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches", map[string]any{"job_id": job.ID, "capacity": 5}, actorHeader(manager))
	var batch BatchResponse
	_ = json.Unmarshal(data, &batch)

	res, data := doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/v0/batches/%d/applications", srv.URL, batch.ID), map[string]any{}, actorHeader(bob))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("apply: %d %s", res.StatusCode, string(data))
	}
	var app ApplicationResponse
	if err := json.Unmarshal(data, &app); err != nil {
		t.Fatalf("unmarshal application: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/v0/applications/%d/review", srv.URL, app.ID), map[string]any{
		"decision": "accepted",
	}, actorHeader(manager))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("review: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/v0/batches/%d/members", srv.URL, batch.ID), nil, actorHeader(manager))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("members: %d %s", res.StatusCode, string(data))
	}
	var members []MemberResponse
	if err := json.Unmarshal(data, &members); err != nil {
		t.Fatalf("unmarshal members: %v", err)
	}
	if len(members) != 1 || members[0].ID != bob.ID {
		t.Fatalf("accepted applicant missing from members: %+v", members)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	freelancer := seedUser(t, srv.Engine, "alice", "freelancer")

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}

	// health stays open
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", res.StatusCode)
	}

	// role gate: a freelancer cannot carve batches
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches", map[string]any{
		"job_id":   1,
		"capacity": 5,
	}, actorHeader(freelancer))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}
}
