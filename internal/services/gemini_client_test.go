package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGeminiClient(t *testing.T, handler http.HandlerFunc) GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_BASE_URL", server.URL)
	t.Setenv("GEMINI_MODEL", "test-model")
	t.Setenv("GEMINI_MAX_RETRIES", "1")

	client, err := NewGeminiClient(testLogger())
	if err != nil {
		t.Fatalf("client init failed: %v", err)
	}
	return client
}

func grounded(answer string, chunks ...map[string]any) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": answer}},
				},
				"groundingMetadata": map[string]any{
					"groundingChunks": chunks,
				},
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     100,
			"candidatesTokenCount": 50,
			"totalTokenCount":      150,
		},
	}
}

func TestGeminiAnswer_ParsesAnswerCitationsAndTokens(t *testing.T) {
	var captured geminiRequest
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if !strings.Contains(r.URL.Path, "models/test-model:generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(grounded(
			"The rook moves in straight lines.",
			map[string]any{"retrievedContext": map[string]any{"title": "Rulebook", "text": "Rooks move\nhorizontally."}},
		))
	})

	result, err := client.Answer(context.Background(), ChatQuery{
		Question:      "How does the rook move?",
		VectorStoreID: "fileSearchStores/store-1",
		Language:      "en",
		History: []ChatTurn{
			{Role: "user", Text: "Hi"},
			{Role: "model", Text: "Hello"},
		},
		GameName:    "Chess",
		GameSummary: "Classic strategy game",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "The rook moves in straight lines." {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if len(result.Citations) != 1 || result.Citations[0].DocumentTitle != "Rulebook" {
		t.Fatalf("unexpected citations %+v", result.Citations)
	}
	if strings.Contains(result.Citations[0].Excerpt, "\n") {
		t.Fatalf("excerpt must be single-line, got %q", result.Citations[0].Excerpt)
	}
	if result.ModelInfo.TotalTokens == nil || *result.ModelInfo.TotalTokens != 150 {
		t.Fatalf("unexpected token count %+v", result.ModelInfo)
	}

	// The request must carry the file search store and the history plus the
	// new question.
	if len(captured.Tools) != 1 || captured.Tools[0].FileSearch == nil ||
		captured.Tools[0].FileSearch.FileSearchStoreNames[0] != "fileSearchStores/store-1" {
		t.Fatalf("file search tool not wired: %+v", captured.Tools)
	}
	if len(captured.Contents) != 3 {
		t.Fatalf("want history+question contents, got %d", len(captured.Contents))
	}
	if captured.Contents[2].Role != "user" || captured.Contents[2].Parts[0].Text != "How does the rook move?" {
		t.Fatalf("question must be the last content: %+v", captured.Contents[2])
	}
	if captured.SystemInstruction == nil || !strings.Contains(captured.SystemInstruction.Parts[0].Text, "Chess") {
		t.Fatalf("system instruction must name the game")
	}
}

func TestGeminiAnswer_RetriesOnServerError(t *testing.T) {
	calls := 0
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(grounded("ok"))
	})

	result, err := client.Answer(context.Background(), ChatQuery{Question: "q", VectorStoreID: "s"})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("want 2 calls got %d", calls)
	}
	if result.Answer != "ok" {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
}

func TestGeminiAnswer_NoRetryOnBadRequest(t *testing.T) {
	calls := 0
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Answer(context.Background(), ChatQuery{Question: "q", VectorStoreID: "s"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("client errors must not be retried, got %d calls", calls)
	}
}

func TestGeminiAnswer_EmptyResponseYieldsSentinel(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []map[string]any{}})
	})

	result, err := client.Answer(context.Background(), ChatQuery{Question: "q", VectorStoreID: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != noInfoAnswer {
		t.Fatalf("want sentinel answer got %q", result.Answer)
	}
	if len(result.Citations) != 0 {
		t.Fatalf("no grounding means no citations")
	}
}

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := NewGeminiClient(testLogger()); err == nil {
		t.Fatalf("missing key must fail init")
	}
}
