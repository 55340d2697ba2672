package callback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestSendGETEncodesPayloadAsQuery(t *testing.T) {
	var gotJobID, gotStatus, gotResult string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		gotJobID = r.URL.Query().Get("jobid")
		gotStatus = r.URL.Query().Get("status")
		gotResult = r.URL.Query().Get("json_result")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(testLogger(t))
	d.Send(context.Background(), srv.URL, jobtypes.CallbackGET, Payload{
		JobID: "job-1", Status: jobtypes.StatusCompleted, JSONResult: json.RawMessage(`{"n":1}`),
	})

	if gotJobID != "job-1" {
		t.Fatalf("expected jobid=job-1, got %q", gotJobID)
	}
	if gotStatus != string(jobtypes.StatusCompleted) {
		t.Fatalf("expected status=completed, got %q", gotStatus)
	}
	if gotResult != `{"n":1}` {
		t.Fatalf("expected json_result forwarded, got %q", gotResult)
	}
}

func TestSendPUTUsesQueryLikeGET(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(testLogger(t))
	d.Send(context.Background(), srv.URL, jobtypes.CallbackPUT, Payload{JobID: "job-2", Status: jobtypes.StatusCompleted})

	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
}

func TestSendPOSTEncodesPayloadAsJSONBody(t *testing.T) {
	var gotBody Payload
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &gotBody); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(testLogger(t))
	d.Send(context.Background(), srv.URL, jobtypes.CallbackPOST, Payload{
		JobID: "job-3", Status: jobtypes.StatusException, JSONResult: json.RawMessage(`["a","b"]`),
	})

	if gotContentType != "application/json" {
		t.Fatalf("expected application/json content-type, got %q", gotContentType)
	}
	if gotBody.JobID != "job-3" || gotBody.Status != jobtypes.StatusException {
		t.Fatalf("unexpected decoded body: %+v", gotBody)
	}
	if string(gotBody.JSONResult) != `["a","b"]` {
		t.Fatalf("expected json_result round-tripped, got %q", gotBody.JSONResult)
	}
}

func TestSendEmptyURLIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	d := New(testLogger(t))
	d.Send(context.Background(), "   ", jobtypes.CallbackGET, Payload{JobID: "job-4"})

	if called {
		t.Fatalf("expected no request for an empty callback URL")
	}
}

func TestSendDefaultsToGETWhenMethodUnset(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(testLogger(t))
	d.Send(context.Background(), srv.URL, "", Payload{JobID: "job-5"})

	if gotMethod != http.MethodGet {
		t.Fatalf("expected default GET, got %s", gotMethod)
	}
}

func TestSendSwallowsNon2xxResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(testLogger(t))
	// Should not panic or block despite the 500; failure is logged and dropped.
	d.Send(context.Background(), srv.URL, jobtypes.CallbackGET, Payload{JobID: "job-6"})
}

func TestSendSwallowsUnreachableHost(t *testing.T) {
	d := New(testLogger(t))
	// Should not panic or block; connection failures are logged and dropped.
	d.Send(context.Background(), "http://127.0.0.1:1", jobtypes.CallbackGET, Payload{JobID: "job-7"})
}

func TestSendOmitsJSONResultWhenNotDetailed(t *testing.T) {
	var sawResult bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawResult = r.URL.Query().Has("json_result")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(testLogger(t))
	d.Send(context.Background(), srv.URL, jobtypes.CallbackGET, Payload{JobID: "job-8", Status: jobtypes.StatusCompleted})

	if sawResult {
		t.Fatalf("expected json_result to be omitted when payload carries none")
	}
}
