package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/allybot/ally-core/core/inference"
)

func newTestServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != chatPath {
			t.Errorf("expected request to %q, got %q", chatPath, r.URL.Path)
		}

		var body chatRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if !body.Stream {
			t.Errorf("expected streaming request")
		}

		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
}

func collectChunks(t *testing.T, stream inference.Stream) ([]inference.StreamChunk, []error) {
	t.Helper()
	chunks := []inference.StreamChunk{}
	errs := []error{}
	for chunk, err := range stream.Chunks(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, errs
}

func TestChatStream(t *testing.T) {
	server := newTestServer(t, []string{
		`{"message":{"role":"assistant","content":"Hello"},"done":false}`,
		`{"message":{"role":"assistant","content":", world"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "test-model")
	stream := client.ChatStream(context.Background(), []inference.Message{
		{Role: inference.RoleUser, Content: "Hi"},
	})

	chunks, errs := collectChunks(t, stream)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	content := ""
	for _, chunk := range chunks {
		content += chunk.Content
	}
	if content != "Hello, world" {
		t.Fatalf("expected content %q, got %q", "Hello, world", content)
	}
	if !chunks[len(chunks)-1].Done {
		t.Fatalf("expected final chunk to be marked done")
	}
}

func TestChatStreamDoneWithTrailingContent(t *testing.T) {
	server := newTestServer(t, []string{
		`{"message":{"role":"assistant","content":"Almost"},"done":false}`,
		`{"message":{"role":"assistant","content":" done."},"done":true}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "test-model")
	stream := client.ChatStream(context.Background(), nil)

	chunks, errs := collectChunks(t, stream)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Content != " done." || !chunks[1].Done {
		t.Fatalf("expected terminal chunk to carry trailing content, got %+v", chunks[1])
	}
}

func TestChatStreamTruncatedStream(t *testing.T) {
	server := newTestServer(t, []string{
		`{"message":{"role":"assistant","content":"Partial"},"done":false}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "test-model")
	stream := client.ChatStream(context.Background(), nil)

	chunks, errs := collectChunks(t, stream)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !chunks[1].Done {
		t.Fatalf("expected synthesized terminal chunk, got %+v", chunks[1])
	}
}

func TestChatStreamNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "missing-model")
	stream := client.ChatStream(context.Background(), nil)

	chunks, errs := collectChunks(t, stream)
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
	if len(errs) != 1 {
		t.Fatalf("expected a single error, got %v", errs)
	}
}

func TestChatStreamSkipsMalformedLines(t *testing.T) {
	server := newTestServer(t, []string{
		`{"message":{"role":"assistant","content":"ok"},"done":false}`,
		`not json`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "test-model")
	stream := client.ChatStream(context.Background(), nil)

	chunks, errs := collectChunks(t, stream)
	if len(errs) != 1 {
		t.Fatalf("expected one decode error, got %v", errs)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !chunks[1].Done {
		t.Fatalf("expected stream to finish after malformed line, got %+v", chunks[1])
	}
}
