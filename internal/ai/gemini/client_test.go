package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-rotator/internal/retry"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeModels struct {
	mu     sync.Mutex
	queue  []fakeResponse
	models []string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, model)
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func fastEngine() *retry.Engine {
	return retry.New(retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil, zap.NewNop())
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	models := &fakeModels{queue: []fakeResponse{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{resp: textResponse(`{"fit": true}`)},
	}}
	g := newGenerator(models, "", fastEngine())

	out, err := g.GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"fit": true}` {
		t.Fatalf("unexpected output %q", out)
	}
	if len(models.models) != 2 || models.models[0] != defaultModel {
		t.Fatalf("expected two calls to the default model, got %v", models.models)
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	models := &fakeModels{queue: []fakeResponse{
		{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
	}}
	g := newGenerator(models, "gemini-pro", fastEngine())

	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error")
	}
	if len(models.models) != 1 {
		t.Fatalf("expected a single call, got %d", len(models.models))
	}
}

func TestGeneratorGivesUpOnQuota(t *testing.T) {
	quota := genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
	models := &fakeModels{queue: []fakeResponse{{err: quota}, {err: quota}, {err: quota}}}
	g := newGenerator(models, "gemini-pro", fastEngine())

	_, err := g.GenerateContent(context.Background(), "prompt")
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("expected exhausted retries, got %v", err)
	}
	if len(models.models) != 3 {
		t.Fatalf("expected three attempts, got %d", len(models.models))
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	models := &fakeModels{queue: []fakeResponse{{resp: &genai.GenerateContentResponse{}}}}
	g := newGenerator(models, "gemini-pro", fastEngine())

	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected empty response error")
	}
	if _, err := g.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatalf("expected empty prompt error")
	}
}
