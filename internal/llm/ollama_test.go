package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaClient_CompleteTextOnly(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(generateResponse{Response: "  find chair \n", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClient(Config{OllamaURL: server.URL, Model: "text", VisionModel: "eyes"})
	text, err := client.Complete(context.Background(), "classify this", nil)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "find chair" {
		t.Errorf("expected trimmed text, got %q", text)
	}
	if got.Model != "text" || len(got.Images) != 0 || got.Stream {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestOllamaClient_CompleteWithImageUsesVisionModel(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(generateResponse{Response: "a desk", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClient(Config{OllamaURL: server.URL, Model: "text", VisionModel: "eyes"})
	if _, err := client.Complete(context.Background(), "describe", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Model != "eyes" {
		t.Errorf("expected vision model, got %s", got.Model)
	}
	if len(got.Images) != 1 || got.Images[0] != "AQID" {
		t.Errorf("expected base64 image, got %v", got.Images)
	}
}

func TestOllamaClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "empty",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(generateResponse{Response: "   ", Done: true})
			},
			wantErr: ErrEmptyResponse,
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewOllamaClient(Config{OllamaURL: server.URL})
			_, err := client.Complete(context.Background(), "p", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOllamaClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "embedder" || req.Input != "a kitchen" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.5, 0.25}}})
	}))
	defer server.Close()

	client := NewOllamaClient(Config{OllamaURL: server.URL, EmbedModel: "embedder"})
	vec, err := client.Embed(context.Background(), "a kitchen")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestOllamaClient_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	client := NewOllamaClient(Config{OllamaURL: server.URL})
	if !client.IsAvailable(context.Background()) {
		t.Error("expected available")
	}

	server.Close()
	if client.IsAvailable(context.Background()) {
		t.Error("expected unavailable after close")
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	if _, ok := New(Config{}).(*OllamaClient); !ok {
		t.Error("expected ollama by default")
	}
	if _, ok := New(Config{Provider: "OpenAI", OpenAIKey: "k"}).(*OpenAIClient); !ok {
		t.Error("expected openai client")
	}
}
