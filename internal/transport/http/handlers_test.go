package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/infiniteaudio/mixintel/internal/analyzer"
	"github.com/infiniteaudio/mixintel/internal/config"
	"github.com/infiniteaudio/mixintel/internal/job"
	"github.com/infiniteaudio/mixintel/internal/memstore"
	"github.com/infiniteaudio/mixintel/internal/scheduler"
	"github.com/infiniteaudio/mixintel/internal/store"
)

func testAnalyzer(payload string, fail error) analyzer.Analyzer {
	return analyzer.Func(func(ctx context.Context, mixCtx job.Context, input job.InputRef) (json.RawMessage, error) {
		if fail != nil {
			return nil, fail
		}
		return json.RawMessage(payload), nil
	})
}

func newTestServer(t *testing.T, st store.Store, an analyzer.Analyzer) *httptest.Server {
	t.Helper()
	h := &Handlers{
		Store:  st,
		Sched:  scheduler.New(st, an),
		Config: config.Config{StoreMode: "memory", StorageMode: "local"},
	}
	r := chi.NewRouter()
	h.Routers(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func enqueueBody(priority int) []byte {
	req := job.EnqueueRequest{
		UserID:          uuid.New(),
		Context:         job.ContextFullMix,
		InputBucketKey:  "local",
		InputObjectKey:  "mixes/2026/08/30/beat_ab12cd34.wav",
		Filename:        "beat.wav",
		ContentType:     "audio/wav",
		SizeBytes:       2 << 20,
		DurationSeconds: 180,
		Priority:        priority,
	}
	b, _ := json.Marshal(req)
	return b
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestCreateJob(t *testing.T) {
	srv := newTestServer(t, memstore.New(), testAnalyzer(`{"ok":true}`, nil))

	resp, err := http.Post(srv.URL+"/v1/mix/jobs", "application/json", bytes.NewReader(enqueueBody(0)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	body := decodeBody(t, resp)
	j, ok := body["job"].(map[string]any)
	if !ok {
		t.Fatalf("response missing job object: %v", body)
	}
	if j["status"] != string(job.StatusQueued) {
		t.Errorf("status = %v, want %q", j["status"], job.StatusQueued)
	}
	if j["stage"] != "created" {
		t.Errorf("stage = %v, want %q", j["stage"], "created")
	}
	if j["progress"] != float64(0) {
		t.Errorf("progress = %v, want 0", j["progress"])
	}
}

func TestCreateJob_InvalidBody(t *testing.T) {
	srv := newTestServer(t, memstore.New(), testAnalyzer(`{}`, nil))

	cases := []struct {
		name string
		body string
	}{
		{"not json", "not-json"},
		{"bad context", `{"user_id":"` + uuid.NewString() + `","context":"KARAOKE","input_bucket_key":"local","input_object_key":"k","filename":"f.wav","content_type":"audio/wav","size_bytes":1,"duration_seconds":60}`},
		{"zero size", `{"user_id":"` + uuid.NewString() + `","context":"FULL_MIX","input_bucket_key":"local","input_object_key":"k","filename":"f.wav","content_type":"audio/wav","size_bytes":0,"duration_seconds":60}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/mix/jobs", "application/json", bytes.NewReader([]byte(tc.body)))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestProcessNext_FullCycle(t *testing.T) {
	st := memstore.New()
	srv := newTestServer(t, st, testAnalyzer(`{"meta":{"tool":"mix_intelligence"}}`, nil))

	resp, err := http.Post(srv.URL+"/v1/mix/jobs", "application/json", bytes.NewReader(enqueueBody(0)))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created := decodeBody(t, resp)
	jobID := created["job"].(map[string]any)["id"].(string)

	resp, err = http.Post(srv.URL+"/v1/mix/jobs/process-next", "application/json", nil)
	if err != nil {
		t.Fatalf("process-next failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, resp)
	if body["processed"] != true {
		t.Fatalf("processed = %v, want true: %v", body["processed"], body)
	}
	if body["outcome"] != string(scheduler.OutcomeProcessed) {
		t.Errorf("outcome = %v, want %q", body["outcome"], scheduler.OutcomeProcessed)
	}
	if body["job_id"] != jobID {
		t.Errorf("job_id = %v, want %v", body["job_id"], jobID)
	}

	resp, err = http.Get(srv.URL + "/v1/mix/jobs/" + jobID + "/result")
	if err != nil {
		t.Fatalf("get result failed: %v", err)
	}
	body = decodeBody(t, resp)
	j := body["job"].(map[string]any)
	if j["status"] != string(job.StatusCompleted) {
		t.Errorf("status = %v, want %q", j["status"], job.StatusCompleted)
	}
	if j["progress"] != float64(100) {
		t.Errorf("progress = %v, want 100", j["progress"])
	}
	if body["audit"] == nil {
		t.Error("audit missing from completed job result")
	}
	if body["result"] == nil {
		t.Error("result row missing from completed job result")
	}
}

func TestProcessNext_NoWork(t *testing.T) {
	srv := newTestServer(t, memstore.New(), testAnalyzer(`{}`, nil))

	resp, err := http.Post(srv.URL+"/v1/mix/jobs/process-next", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, resp)
	if body["processed"] != false {
		t.Errorf("processed = %v, want false", body["processed"])
	}
	if body["outcome"] != string(scheduler.OutcomeNoWork) {
		t.Errorf("outcome = %v, want %q", body["outcome"], scheduler.OutcomeNoWork)
	}
	if _, ok := body["job_id"]; ok {
		t.Error("job_id should be omitted when queue is empty")
	}
}

func TestProcessNext_AnalyzerFailure(t *testing.T) {
	st := memstore.New()
	srv := newTestServer(t, st, testAnalyzer("", fmt.Errorf("decoder blew up")))

	resp, err := http.Post(srv.URL+"/v1/mix/jobs", "application/json", bytes.NewReader(enqueueBody(0)))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created := decodeBody(t, resp)
	jobID := created["job"].(map[string]any)["id"].(string)

	resp, err = http.Post(srv.URL+"/v1/mix/jobs/process-next", "application/json", nil)
	if err != nil {
		t.Fatalf("process-next failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, resp)
	if body["outcome"] != string(scheduler.OutcomeFailed) {
		t.Fatalf("outcome = %v, want %q: %v", body["outcome"], scheduler.OutcomeFailed, body)
	}
	if body["error_message"] == "" || body["error_message"] == nil {
		t.Error("error_message missing for failed outcome")
	}

	resp, err = http.Get(srv.URL + "/v1/mix/jobs/" + jobID)
	if err != nil {
		t.Fatalf("get job failed: %v", err)
	}
	j := decodeBody(t, resp)["job"].(map[string]any)
	if j["status"] != string(job.StatusFailed) {
		t.Errorf("status = %v, want %q", j["status"], job.StatusFailed)
	}
}

func TestProcessNext_TargetedJob(t *testing.T) {
	st := memstore.New()
	srv := newTestServer(t, st, testAnalyzer(`{"ok":true}`, nil))

	// the targeted job sits behind a higher-priority one
	resp, err := http.Post(srv.URL+"/v1/mix/jobs", "application/json", bytes.NewReader(enqueueBody(10)))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	decodeBody(t, resp)

	resp, err = http.Post(srv.URL+"/v1/mix/jobs", "application/json", bytes.NewReader(enqueueBody(0)))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	targetID := decodeBody(t, resp)["job"].(map[string]any)["id"].(string)

	resp, err = http.Post(srv.URL+"/v1/mix/jobs/process-next?job_id="+targetID, "application/json", nil)
	if err != nil {
		t.Fatalf("process-next failed: %v", err)
	}
	body := decodeBody(t, resp)
	if body["job_id"] != targetID {
		t.Errorf("job_id = %v, want targeted %v", body["job_id"], targetID)
	}
}

func TestProcessNext_TargetNotFound(t *testing.T) {
	srv := newTestServer(t, memstore.New(), testAnalyzer(`{}`, nil))

	resp, err := http.Post(srv.URL+"/v1/mix/jobs/process-next?job_id="+uuid.NewString(), "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestProcessNext_BadTargetID(t *testing.T) {
	srv := newTestServer(t, memstore.New(), testAnalyzer(`{}`, nil))

	resp, err := http.Post(srv.URL+"/v1/mix/jobs/process-next?job_id=not-a-uuid", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	srv := newTestServer(t, memstore.New(), testAnalyzer(`{}`, nil))

	resp, err := http.Get(srv.URL + "/v1/mix/jobs/" + uuid.NewString())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestGetResult_QueuedJob(t *testing.T) {
	srv := newTestServer(t, memstore.New(), testAnalyzer(`{}`, nil))

	resp, err := http.Post(srv.URL+"/v1/mix/jobs", "application/json", bytes.NewReader(enqueueBody(0)))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	jobID := decodeBody(t, resp)["job"].(map[string]any)["id"].(string)

	resp, err = http.Get(srv.URL + "/v1/mix/jobs/" + jobID + "/result")
	if err != nil {
		t.Fatalf("get result failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, resp)
	if body["job"].(map[string]any)["status"] != string(job.StatusQueued) {
		t.Errorf("status = %v, want %q", body["job"].(map[string]any)["status"], job.StatusQueued)
	}
	if body["audit"] != nil {
		t.Errorf("audit = %v, want null for a queued job", body["audit"])
	}
	if body["result"] != nil {
		t.Errorf("result = %v, want null for a queued job", body["result"])
	}
}
