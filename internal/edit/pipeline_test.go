package edit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeRunner satisfies JobRunner without a network.
type fakeRunner struct {
	mu        sync.Mutex
	submitted []*JobPayload
	submitErr error
	status    Status
	output    []byte
	jobErr    string
}

func (f *fakeRunner) Submit(ctx context.Context, payload *JobPayload) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, payload)
	return &Job{ID: fmt.Sprintf("job-%d", len(f.submitted)), Status: StatusPending}, nil
}

func (f *fakeRunner) AwaitCompletion(ctx context.Context, job *Job, timeout time.Duration) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Status = f.status
	job.Output = f.output
	job.Error = f.jobErr
	return job, nil
}

func completedOutput(t *testing.T, image []byte) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"image": base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		t.Fatalf("marshal output: %v", err)
	}
	return raw
}

func newTestPipeline(t *testing.T, runner JobRunner) *Pipeline {
	t.Helper()
	p, err := NewPipeline(PipelineOptions{
		Resolver: NewResolver(ResolverOptions{}),
		Runner:   runner,
	})
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	return p
}

func TestPipelineEndToEndDefaults(t *testing.T) {
	source := tinyPNG(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(source)
	}))
	defer ts.Close()

	runner := &fakeRunner{status: StatusCompleted, output: completedOutput(t, tinyPNG(t))}
	pipeline := newTestPipeline(t, runner)

	item, err := Request{Prompt: "add sunglasses", ImageURL: ts.URL + "/a.jpg"}.Item()
	if err != nil {
		t.Fatalf("Item error: %v", err)
	}
	outcome, err := pipeline.Edit(context.Background(), item)
	if err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("outcome not successful")
	}
	if !strings.HasPrefix(outcome.DataURI(), "data:image/png;base64,") {
		t.Fatalf("data uri = %q", outcome.DataURI())
	}

	if len(runner.submitted) != 1 {
		t.Fatalf("submitted = %d payloads, want 1", len(runner.submitted))
	}
	payload := runner.submitted[0]
	if payload.Version != "qwen-image-edit/v1" {
		t.Fatalf("version = %q, want the single-image template", payload.Version)
	}
	sampler := payload.Workflow["sampler"].Inputs
	if sampler["seed"] != 12345 || sampler["steps"] != 40 || sampler["cfg"] != 4.0 {
		t.Fatalf("sampler defaults wrong: %#v", sampler)
	}
	scale := payload.Workflow["scale"].Inputs
	if scale["width"] != 1024 || scale["height"] != 1024 {
		t.Fatalf("scale defaults wrong: %#v", scale)
	}
	if got := payload.Workflow["negative"].Inputs["prompt"]; got != " " {
		t.Fatalf("negative prompt = %#v, want single space", got)
	}
	if got := payload.Workflow["positive"].Inputs["prompt"]; got != "add sunglasses" {
		t.Fatalf("prompt = %#v", got)
	}
	image, _ := payload.Workflow["load_image"].Inputs["image"].(string)
	if !strings.HasPrefix(image, "data:image/") {
		t.Fatalf("image slot should be inlined, got %q", image)
	}
}

func TestPipelineDualImageResolution(t *testing.T) {
	runner := &fakeRunner{status: StatusCompleted, output: completedOutput(t, tinyPNG(t))}
	pipeline := newTestPipeline(t, runner)

	donor := base64.StdEncoding.EncodeToString(tinyPNG(t))
	canvas := base64.StdEncoding.EncodeToString(tinyPNG(t))
	item, err := Request{Prompt: "swap the person", ImageBase64: donor, ImageBase642: canvas}.Item()
	if err != nil {
		t.Fatalf("Item error: %v", err)
	}
	if _, err := pipeline.Edit(context.Background(), item); err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	payload := runner.submitted[0]
	if payload.Version != "qwen-image-edit-dual/v1" {
		t.Fatalf("version = %q, want the dual-image template", payload.Version)
	}
}

func TestPipelineFailsFastBeforeSubmission(t *testing.T) {
	runner := &fakeRunner{status: StatusCompleted}
	pipeline := newTestPipeline(t, runner)

	width := 513
	item, err := Request{Prompt: "x", ImageBase64: "QQ==", Width: &width}.Item()
	if err != nil {
		t.Fatalf("Item error: %v", err)
	}
	if _, err := pipeline.Edit(context.Background(), item); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("error = %v, want ErrInvalidParameter", err)
	}
	if len(runner.submitted) != 0 {
		t.Fatalf("invalid request reached submission")
	}
}

func TestPipelineAbortsWhenEitherResolutionFails(t *testing.T) {
	runner := &fakeRunner{status: StatusCompleted}
	pipeline := newTestPipeline(t, runner)

	donor := base64.StdEncoding.EncodeToString(tinyPNG(t))
	item, err := Request{
		Prompt:      "swap",
		ImageBase64: donor,
		ImagePath2:  "/definitely/not/here.png",
	}.Item()
	if err != nil {
		t.Fatalf("Item error: %v", err)
	}
	if _, err := pipeline.Edit(context.Background(), item); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if len(runner.submitted) != 0 {
		t.Fatalf("failed resolution reached submission")
	}
}

type fakeStager struct {
	mu   sync.Mutex
	keys []string
}

func (s *fakeStager) Stage(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return "/runpod-volume/" + key, nil
}

func TestPipelineStagesLargeInputs(t *testing.T) {
	runner := &fakeRunner{status: StatusCompleted, output: completedOutput(t, tinyPNG(t))}
	stager := &fakeStager{}
	pipeline, err := NewPipeline(PipelineOptions{
		Resolver:    NewResolver(ResolverOptions{}),
		Runner:      runner,
		Stager:      stager,
		InlineLimit: 1,
	})
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}

	item, err := Request{Prompt: "x", ImageBase64: base64.StdEncoding.EncodeToString(tinyPNG(t))}.Item()
	if err != nil {
		t.Fatalf("Item error: %v", err)
	}
	if _, err := pipeline.Edit(context.Background(), item); err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	if len(stager.keys) != 1 {
		t.Fatalf("staged %d inputs, want 1", len(stager.keys))
	}
	if !strings.HasPrefix(stager.keys[0], "input/qwen/") {
		t.Fatalf("staging key = %q", stager.keys[0])
	}
	image, _ := runner.submitted[0].Workflow["load_image"].Inputs["image"].(string)
	if !strings.HasPrefix(image, "/runpod-volume/input/qwen/") {
		t.Fatalf("image slot = %q, want a volume path", image)
	}
}

func TestPipelineSurfacesBackendFailure(t *testing.T) {
	runner := &fakeRunner{status: StatusFailed, jobErr: "CUDA out of memory"}
	pipeline := newTestPipeline(t, runner)

	item, err := Request{Prompt: "x", ImageBase64: base64.StdEncoding.EncodeToString(tinyPNG(t))}.Item()
	if err != nil {
		t.Fatalf("Item error: %v", err)
	}
	_, err = pipeline.Edit(context.Background(), item)
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("error = %v, want ErrBackend", err)
	}
}

// recordingRecorder captures lifecycle notifications.
type recordingRecorder struct {
	mu        sync.Mutex
	submitted []string
	finished  []Status
}

func (r *recordingRecorder) JobSubmitted(ctx context.Context, jobID string, mode Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, jobID)
	return nil
}

func (r *recordingRecorder) JobFinished(ctx context.Context, jobID string, status Status, errMsg string, took time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, status)
	return nil
}

func TestPipelineNotifiesRecorder(t *testing.T) {
	runner := &fakeRunner{status: StatusCompleted, output: completedOutput(t, tinyPNG(t))}
	rec := &recordingRecorder{}
	pipeline, err := NewPipeline(PipelineOptions{
		Resolver: NewResolver(ResolverOptions{}),
		Runner:   runner,
		Recorder: rec,
	})
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}

	item, err := Request{Prompt: "x", ImageBase64: base64.StdEncoding.EncodeToString(tinyPNG(t))}.Item()
	if err != nil {
		t.Fatalf("Item error: %v", err)
	}
	if _, err := pipeline.Edit(context.Background(), item); err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	if len(rec.submitted) != 1 || len(rec.finished) != 1 {
		t.Fatalf("recorder calls = %d/%d, want 1/1", len(rec.submitted), len(rec.finished))
	}
	if rec.finished[0] != StatusCompleted {
		t.Fatalf("finished status = %q", rec.finished[0])
	}
}
