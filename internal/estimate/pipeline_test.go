package estimate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"caloriebot/internal/domain"
	"caloriebot/internal/locale"
	"caloriebot/internal/metrics"
)

// stubProvider answers every request with a fixed response or error.
type stubProvider struct {
	mu       sync.Mutex
	response string
	err      error
	delay    time.Duration
	honorCtx bool
	requests []domain.AnalysisRequest
}

func (s *stubProvider) Name() string                      { return "stub" }
func (s *stubProvider) Healthy(ctx context.Context) error { return nil }

func (s *stubProvider) Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.delay > 0 {
		if s.honorCtx {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		} else {
			time.Sleep(s.delay)
		}
	}
	return s.response, s.err
}

func (s *stubProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestPipeline(t *testing.T, p domain.Provider) *Pipeline {
	t.Helper()
	pack, err := locale.Load("en")
	if err != nil {
		t.Fatalf("load locale: %v", err)
	}
	return New(Config{
		Provider:     p,
		Pack:         pack,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		PhotoTimeout: 200 * time.Millisecond,
		TextTimeout:  100 * time.Millisecond,
		Temperature:  0.1,
	})
}

var photoInput = domain.NormalizedInput{
	Kind:  domain.KindPhoto,
	Image: &domain.NormalizedImage{Base64: "AAAA", MIMEType: "image/jpeg", Width: 10, Height: 10},
}

var estimatePattern = regexp.MustCompile(`^.+ \(~\d+g\) — ~\d+ kcal$`)

func TestEstimate_TextFoodEstimate(t *testing.T) {
	stub := &stubProvider{response: "  Apples (~360g) — ~187 kcal\n"}
	p := newTestPipeline(t, stub)

	res := p.Estimate(context.Background(), domain.NormalizedInput{Kind: domain.KindText, Text: "2 apples"})
	if res.Kind != domain.ResultFoodEstimate {
		t.Fatalf("expected food estimate, got %s (%v)", res.Kind, res.Err)
	}
	if res.Source != domain.KindText {
		t.Fatalf("expected text source, got %s", res.Source)
	}
	if !estimatePattern.MatchString(res.Estimate) {
		t.Fatalf("estimate %q does not match the reply format", res.Estimate)
	}
	if !strings.Contains(strings.ToLower(res.Estimate), "apple") {
		t.Fatalf("expected apples in the label, got %q", res.Estimate)
	}
	if stub.calls() != 1 {
		t.Fatalf("expected exactly one provider call, got %d", stub.calls())
	}
}

func TestBuildRequest_Text(t *testing.T) {
	p := newTestPipeline(t, &stubProvider{})
	req := p.BuildRequest(domain.NormalizedInput{Kind: domain.KindText, Text: "200g boiled rice"})

	if req.Image != nil {
		t.Fatal("text request must not carry an image")
	}
	if req.MaxTokens != 60 || req.Timeout != 100*time.Millisecond || req.Temperature != 0.1 {
		t.Fatalf("unexpected params: %+v", req)
	}
	for _, want := range []string{"'200g boiled rice'", "NO_FOOD", "100g", "150 kcal", "portion"} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q: %s", want, req.Prompt)
		}
	}
}

func TestBuildRequest_Photo(t *testing.T) {
	p := newTestPipeline(t, &stubProvider{})
	req := p.BuildRequest(photoInput)

	if req.Image != photoInput.Image {
		t.Fatal("photo request must embed the normalized image")
	}
	if req.MaxTokens != 80 || req.ImageDetail != "low" || req.Timeout != 200*time.Millisecond {
		t.Fatalf("unexpected params: %+v", req)
	}
	if !strings.Contains(req.Prompt, "NO_FOOD") {
		t.Fatalf("photo prompt must name the sentinel: %s", req.Prompt)
	}
}

func TestEstimate_SentinelAnywhere(t *testing.T) {
	responses := []string{
		"NO_FOOD",
		"no_food",
		"I'm sorry, but the picture shows a wall. NO_FOOD.",
		"Answer: No Food detected",
		"'NO_FOOD'",
	}
	for _, r := range responses {
		p := newTestPipeline(t, &stubProvider{response: r})
		res := p.Estimate(context.Background(), photoInput)
		if res.Kind != domain.ResultNoFood {
			t.Errorf("response %q: expected no_food, got %s", r, res.Kind)
		}
		if res.Estimate != "" {
			t.Errorf("response %q: no-food result must not carry an estimate", r)
		}
	}
}

func TestEstimate_ShortResponseUnrecognized(t *testing.T) {
	for _, r := range []string{"", "   ", "ok", "1234"} {
		p := newTestPipeline(t, &stubProvider{response: r})
		res := p.Estimate(context.Background(), photoInput)
		if res.Kind != domain.ResultProviderError {
			t.Errorf("response %q: expected provider_error, got %s", r, res.Kind)
		}
		if !errors.Is(res.Err, ErrUnrecognized) {
			t.Errorf("response %q: expected ErrUnrecognized, got %v", r, res.Err)
		}
	}
}

func TestEstimate_ProviderError(t *testing.T) {
	boom := errors.New("openai returned 500: internal")
	p := newTestPipeline(t, &stubProvider{err: boom})

	res := p.Estimate(context.Background(), domain.NormalizedInput{Kind: domain.KindText, Text: "pizza"})
	if res.Kind != domain.ResultProviderError {
		t.Fatalf("expected provider_error, got %s", res.Kind)
	}
	if !errors.Is(res.Err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", res.Err)
	}
}

func TestEstimate_TimeoutHonoringContext(t *testing.T) {
	stub := &stubProvider{response: "Pizza (~100g) — ~266 kcal", delay: time.Second, honorCtx: true}
	p := newTestPipeline(t, stub)

	start := time.Now()
	res := p.Estimate(context.Background(), domain.NormalizedInput{Kind: domain.KindText, Text: "pizza"})
	if res.Kind != domain.ResultTimedOut {
		t.Fatalf("expected timed_out, got %s", res.Kind)
	}
	if res.Estimate != "" {
		t.Fatalf("timed out result must not carry a partial estimate, got %q", res.Estimate)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", res.Err)
	}
	if elapsed := time.Since(start); elapsed > 800*time.Millisecond {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

func TestEstimate_TimeoutIgnoringContext(t *testing.T) {
	stub := &stubProvider{response: "Pizza (~100g) — ~266 kcal", delay: time.Second}
	p := newTestPipeline(t, stub)

	start := time.Now()
	res := p.Estimate(context.Background(), photoInput)
	if res.Kind != domain.ResultTimedOut {
		t.Fatalf("expected timed_out, got %s", res.Kind)
	}
	if elapsed := time.Since(start); elapsed > 800*time.Millisecond {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

func TestEstimate_Idempotent(t *testing.T) {
	for _, r := range []string{"Toast (~30g) — ~80 kcal", "NO_FOOD", "??"} {
		p := newTestPipeline(t, &stubProvider{response: r})
		in := domain.NormalizedInput{Kind: domain.KindText, Text: "toast"}
		a := p.Estimate(context.Background(), in)
		b := p.Estimate(context.Background(), in)
		if a.Kind != b.Kind {
			t.Errorf("response %q: classification changed between runs: %s vs %s", r, a.Kind, b.Kind)
		}
	}
}

func TestEstimate_CountsOutcome(t *testing.T) {
	counter := metrics.Estimate("photo", "no_food")
	before := testutil.ToFloat64(counter)

	p := newTestPipeline(t, &stubProvider{response: "NO_FOOD"})
	p.Estimate(context.Background(), photoInput)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("expected outcome counter +1, got %v", got)
	}
}

func TestClassify_RussianSentinels(t *testing.T) {
	pack, err := locale.Load("ru")
	if err != nil {
		t.Fatal(err)
	}
	kind, _, err := Classify("На фото стена, нет_еды", pack.Sentinels)
	if err != nil || kind != domain.ResultNoFood {
		t.Fatalf("expected no_food, got %s (%v)", kind, err)
	}
	kind, est, err := Classify("Яблоки (~360г) — ~187 ккал", pack.Sentinels)
	if err != nil || kind != domain.ResultFoodEstimate || est != "Яблоки (~360г) — ~187 ккал" {
		t.Fatalf("expected verbatim estimate, got %s %q (%v)", kind, est, err)
	}
}
