package automation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestExecuteSkill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/skills/sk-1/execute" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Browser-Use-API-Key"); got != "key" {
			t.Errorf("api key header = %q", got)
		}
		var body struct {
			Parameters map[string]any `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Parameters["location"] != "Boston" {
			t.Errorf("parameters = %v", body.Parameters)
		}
		w.Write([]byte(`{"result":{"success":true}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", APIKey: "key"}, zap.NewNop())
	out, err := c.ExecuteSkill(context.Background(), "sk-1", map[string]any{"location": "Boston"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(out) != `{"result":{"success":true}}` {
		t.Errorf("output = %s", out)
	}
}

func TestExecuteSkillAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "rate limited")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, zap.NewNop())
	_, err := c.ExecuteSkill(context.Background(), "sk-1", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 429 || apiErr.Error() != "HTTP 429: rate limited" {
		t.Errorf("api error = %+v (%q)", apiErr, apiErr.Error())
	}
}

func TestSessionAndTaskEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["profileId"] != "prof" {
			t.Errorf("profileId = %q", body["profileId"])
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"sess-1"}`)
	})
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		var req TaskRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SessionID != "sess-1" || len(req.Skills) != 1 || req.Task != "do it" {
			t.Errorf("task request = %+v", req)
		}
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"id":"task-1","status":"created"}`)
	})
	mux.HandleFunc("GET /tasks/task-1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"task-1","status":"finished","isSuccess":true,"output":"done","steps":[{},{}]}`)
	})
	mux.HandleFunc("DELETE /sessions/sess-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := New(Config{BaseURL: srv.URL}, zap.NewNop())

	sess, err := c.CreateSession(ctx, "prof")
	if err != nil || sess.ID != "sess-1" {
		t.Fatalf("create session = %+v, %v", sess, err)
	}
	task, err := c.CreateTask(ctx, TaskRequest{SessionID: sess.ID, Skills: []string{"sk"}, Task: "do it"})
	if err != nil || task.ID != "task-1" || task.Terminal() {
		t.Fatalf("create task = %+v, %v", task, err)
	}
	task, err = c.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !task.Terminal() || !task.Succeeded() || task.OutputText() != "done" || len(task.Steps) != 2 {
		t.Errorf("task = %+v", task)
	}
	if err := c.DeleteSession(ctx, sess.ID); err != nil {
		t.Errorf("delete of a gone session should succeed: %v", err)
	}
}

func TestCreateSessionRejectsUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"id":"s"}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, zap.NewNop())
	if _, err := c.CreateSession(context.Background(), "p"); err == nil {
		t.Fatal("202 is not an accepted session status")
	}
}
