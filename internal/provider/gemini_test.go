package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"caloriebot/internal/domain"
)

func TestGemini_AnalyzePhoto(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Banana (~120g) — ~107 kcal"}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), GeminiConfig{APIKey: "g-key", APIBase: srv.URL, Logger: testLogger()})
	if err != nil {
		t.Fatalf("new gemini: %v", err)
	}
	out, err := g.Analyze(context.Background(), domain.AnalysisRequest{
		Prompt:      "Is there food in the photo?",
		Image:       &domain.NormalizedImage{Base64: "QUJD", MIMEType: "image/jpeg"},
		MaxTokens:   80,
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Banana (~120g) — ~107 kcal" {
		t.Fatalf("unexpected text %q", out)
	}
	for _, want := range []string{"Is there food in the photo?", "QUJD", "image/jpeg", `"maxOutputTokens":80`} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %s: %s", want, body)
		}
	}
}

func TestGeminiParts_RejectsBadBase64(t *testing.T) {
	_, err := geminiParts(domain.AnalysisRequest{
		Prompt: "p",
		Image:  &domain.NormalizedImage{Base64: "!!!", MIMEType: "image/jpeg"},
	})
	if err == nil {
		t.Fatal("expected error for invalid base64 payload")
	}
}

func TestGeminiParts_TextOnly(t *testing.T) {
	parts, err := geminiParts(domain.AnalysisRequest{Prompt: "2 eggs"})
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || parts[0].Text != "2 eggs" {
		t.Fatalf("expected a single text part, got %+v", parts)
	}
}
