package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

type fakeModel struct {
	resp    *genai.GenerateContentResponse
	err     error
	calls   int
	prompts []string
}

func (f *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	for _, p := range parts {
		if t, ok := p.(genai.Text); ok {
			f.prompts = append(f.prompts, string(t))
		}
	}
	return f.resp, f.err
}

func textResponse(chunks ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, len(chunks))
	for i, c := range chunks {
		parts[i] = genai.Text(c)
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: parts}, FinishReason: genai.FinishReasonStop},
		},
	}
}

func TestGenerate_ReturnsText(t *testing.T) {
	model := &fakeModel{resp: textResponse("4")}
	svc := newGeminiService(model, 1, 0)

	got, err := svc.Generate(context.Background(), "2+2?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "4" {
		t.Fatalf("expected %q, got %q", "4", got)
	}
	if model.calls != 1 {
		t.Fatalf("expected exactly one outbound call, got %d", model.calls)
	}
	if len(model.prompts) != 1 || model.prompts[0] != "2+2?" {
		t.Fatalf("prompt was not sent verbatim: %v", model.prompts)
	}
}

func TestGenerate_ConcatenatesParts(t *testing.T) {
	svc := newGeminiService(&fakeModel{resp: textResponse("Hello, ", "world")}, 1, 0)

	got, err := svc.Generate(context.Background(), "greet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello, world" {
		t.Fatalf("expected joined text, got %q", got)
	}
}

func TestGenerate_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{"nil response", nil},
		{"no candidates", &genai.GenerateContentResponse{}},
		{"empty text", textResponse("   ")},
		{"candidate without content", &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newGeminiService(&fakeModel{resp: tc.resp}, 1, 0)

			_, err := svc.Generate(context.Background(), "hi")
			if KindOf(err) != ErrorKindMalformed {
				t.Fatalf("expected malformed error, got %v", err)
			}
		})
	}
}

func TestGenerate_ClassifiesTransportErrors(t *testing.T) {
	svc := newGeminiService(&fakeModel{err: &googleapi.Error{Code: http.StatusTooManyRequests, Message: "Resource has been exhausted"}}, 1, 0)

	_, err := svc.Generate(context.Background(), "hi")

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *GenerationError, got %T", err)
	}
	if genErr.Kind != ErrorKindQuota {
		t.Fatalf("expected quota kind, got %s", genErr.Kind)
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected the googleapi error to stay reachable")
	}
}

func TestGenerate_ReleasesRateSlot(t *testing.T) {
	svc := newGeminiService(&fakeModel{err: errors.New("boom")}, 1, 0)

	for i := 0; i < 3; i++ {
		if _, err := svc.Generate(context.Background(), "hi"); err == nil {
			t.Fatalf("expected error on call %d", i)
		}
	}
	if len(svc.rateChan) != 1 {
		t.Fatalf("expected rate slot to be returned, have %d", len(svc.rateChan))
	}
}

func TestGenerate_CancelledWhileWaitingForSlot(t *testing.T) {
	svc := newGeminiService(&fakeModel{resp: textResponse("ok")}, 1, 0)
	<-svc.rateChan // occupy the only slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := svc.Generate(ctx, "hi")
	if KindOf(err) != ErrorKindNetwork {
		t.Fatalf("expected network kind for a cancelled wait, got %v", err)
	}
}

// gatedModel blocks each call until release is closed and records the
// highest number of calls it saw at once.
type gatedModel struct {
	mu      sync.Mutex
	active  int
	peak    int
	entered chan struct{}
	release chan struct{}
}

func (g *gatedModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	g.active++
	if g.active > g.peak {
		g.peak = g.active
	}
	g.mu.Unlock()

	g.entered <- struct{}{}
	<-g.release

	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	return textResponse("ok"), nil
}

func TestGenerate_SlotsBoundDirectCallers(t *testing.T) {
	tests := []struct {
		name     string
		slots    int
		wantPeak int
	}{
		{"single slot serializes", 1, 1},
		{"two slots overlap", 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &gatedModel{entered: make(chan struct{}, 3), release: make(chan struct{})}
			svc := newGeminiService(model, tt.slots, 0)

			var wg sync.WaitGroup
			for i := 0; i < 3; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := svc.Generate(context.Background(), "hi"); err != nil {
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}

			for i := 0; i < tt.wantPeak; i++ {
				<-model.entered
			}
			// Any call beyond the slot count would have entered by now.
			time.Sleep(50 * time.Millisecond)
			if got := len(model.entered); got != 0 {
				t.Fatalf("%d calls ran past the %d slot(s)", got, tt.slots)
			}

			close(model.release)
			wg.Wait()

			if model.peak != tt.wantPeak {
				t.Fatalf("expected at most %d concurrent calls, saw %d", tt.wantPeak, model.peak)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorKindNetwork},
		{"cancelled", context.Canceled, ErrorKindNetwork},
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, ErrorKindAuthentication},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden, Message: "Permission denied"}, ErrorKindAuthentication},
		{"forbidden region", &googleapi.Error{Code: http.StatusForbidden, Message: "User location is not supported for the API use."}, ErrorKindQuota},
		{"bad request region", &googleapi.Error{Code: http.StatusBadRequest, Message: "User location is not supported for the API use."}, ErrorKindQuota},
		{"bad request key", &googleapi.Error{Code: http.StatusBadRequest, Message: "API key not valid. Please pass a valid API key."}, ErrorKindAuthentication},
		{"too many requests", &googleapi.Error{Code: http.StatusTooManyRequests}, ErrorKindQuota},
		{"server error", &googleapi.Error{Code: http.StatusServiceUnavailable}, ErrorKindNetwork},
		{"blocked prompt", &genai.BlockedError{}, ErrorKindMalformed},
		{"connection refused text", errors.New("dial tcp: connection refused"), ErrorKindNetwork},
		{"quota text", errors.New("rpc error: code = ResourceExhausted desc = Quota exceeded"), ErrorKindQuota},
		{"unknown", errors.New("something odd"), ErrorKindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyError(tc.err)
			if got.Kind != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got.Kind)
			}
			if !errors.Is(got, tc.err) {
				t.Errorf("Expected classified error to wrap the original")
			}
		})
	}
}

func TestClassifyError_KeepsExistingKind(t *testing.T) {
	orig := &GenerationError{Kind: ErrorKindMalformed, Err: errors.New("empty")}
	if got := classifyError(fmt.Errorf("wrapped: %w", orig)); got != orig {
		t.Fatalf("expected the existing GenerationError to be reused")
	}
}

func TestKindOf_ForeignError(t *testing.T) {
	if KindOf(errors.New("x")) != ErrorKindUnknown {
		t.Fatalf("expected unknown kind for errors not produced by the adapter")
	}
}
