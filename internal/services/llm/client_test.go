package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lecturenotes/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{WithRetryBackoff(0, 0)}, opts...)
	return NewClient(Config{
		APIKey:          "test",
		BaseURL:         server.URL + "/v1",
		TranscribeModel: "whisper-1",
		CaptionModel:    "vision-model",
		EmbedModel:      "embed-model",
		NoteModel:       "note-model",
	}, opts...)
}

func writeChat(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"note-model","object":"model"}]}`)
	})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service marker, got %v", err)
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1/v1"})
	if _, err := client.GenerateNote(context.Background(), "caption", nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls atomic.Int32
	var slept []time.Duration
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
			return
		}
		writeChat(t, w, "1. Concise Summary Notes\nok")
	}, WithRetryBackoff(5*time.Millisecond, 20*time.Millisecond), WithSleeper(func(d time.Duration) {
		slept = append(slept, d)
	}))

	text, err := client.GenerateNote(context.Background(), "caption", []string{"segment"})
	if err != nil {
		t.Fatalf("GenerateNote returned error: %v", err)
	}
	if !strings.Contains(text, "Concise Summary") {
		t.Fatalf("unexpected note text %q", text)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if len(slept) != 1 || slept[0] != 5*time.Millisecond {
		t.Fatalf("unexpected sleeps %v", slept)
	}
}

func TestClientDoesNotRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad","type":"invalid_request_error"}}`)
	})
	if _, err := client.GenerateNote(context.Background(), "caption", nil); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeChat(t, w, "   ")
			return
		}
		writeChat(t, w, "a caption")
	})
	text, err := client.Caption(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "")
	if err != nil {
		t.Fatalf("Caption returned error: %v", err)
	}
	if text != "a caption" {
		t.Fatalf("unexpected caption %q", text)
	}
}

func TestClientCaptionSendsImageDataURI(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "data:image/jpeg;base64,") {
			t.Fatalf("request missing data uri: %s", body)
		}
		if !strings.Contains(string(body), `"model":"vision-model"`) {
			t.Fatalf("request missing caption model: %s", body)
		}
		writeChat(t, w, "slide about sorting")
	})
	text, err := client.Caption(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Caption returned error: %v", err)
	}
	if text != "slide about sorting" {
		t.Fatalf("unexpected caption %q", text)
	}
}

func TestClientCaptionRejectsEmptyImage(t *testing.T) {
	client := NewClient(Config{APIKey: "test"})
	if _, err := client.Caption(context.Background(), nil, "image/png"); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestClientEmbedOrdersByIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"model":"embed-model"}`)
	})
	vectors, err := client.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
}

func TestClientEmbedCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1]}]}`)
	}, WithRetryMaxAttempts(1))
	if _, err := client.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestClientTranscribe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Fatalf("unexpected model %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"  hello class  "}`)
	})
	audio := filepath.Join(t.TempDir(), "lecture.mp3")
	if err := os.WriteFile(audio, []byte("fake audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	text, err := client.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "hello class" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestClientClassifyImportanceCodeFence(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeChat(t, w, "```json\n{\"segment1\":{\"reason\":\"defines recursion\"},\"segment9\":{\"reason\":\"unknown\"}}\n```")
	})
	got, err := client.ClassifyImportance(context.Background(), map[string]string{
		"segment0": "welcome back",
		"segment1": "recursion is a function calling itself",
	})
	if err != nil {
		t.Fatalf("ClassifyImportance returned error: %v", err)
	}
	if len(got) != 1 || got["segment1"] != "defines recursion" {
		t.Fatalf("unexpected verdicts %v", got)
	}
}

func TestClientClassifyImportanceEmptyInput(t *testing.T) {
	client := NewClient(Config{})
	got, err := client.ClassifyImportance(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
}

func TestDecodeLLMJSONSnippetOnFailure(t *testing.T) {
	var target map[string]any
	err := DecodeLLMJSON("no json here at all", &target)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !strings.Contains(err.Error(), "payload snippet") {
		t.Fatalf("expected snippet in error, got %v", err)
	}
}

func TestDecodeLLMJSONExtractsEmbeddedObject(t *testing.T) {
	var target struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(`Sure! Here it is: {"ok": true} hope that helps`, &target); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if !target.OK {
		t.Fatal("expected ok=true")
	}
}

func TestBackoffDelayCaps(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 3*time.Second))
	if got := client.backoffDelay(1); got != time.Second {
		t.Fatalf("attempt 1 delay = %v", got)
	}
	if got := client.backoffDelay(2); got != 2*time.Second {
		t.Fatalf("attempt 2 delay = %v", got)
	}
	if got := client.backoffDelay(5); got != 3*time.Second {
		t.Fatalf("attempt 5 delay = %v", got)
	}
}
