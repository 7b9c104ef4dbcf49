package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{Endpoint: "https://r.openai.azure.com", Deployment: "gpt-4o", APIKey: "k"},
		},
		{
			name:    "missing endpoint",
			cfg:     Config{Deployment: "gpt-4o", APIKey: "k"},
			wantErr: true,
		},
		{
			name:    "missing deployment",
			cfg:     Config{Endpoint: "https://r.openai.azure.com", APIKey: "k"},
			wantErr: true,
		},
		{
			name:    "missing API key",
			cfg:     Config{Endpoint: "https://r.openai.azure.com", Deployment: "gpt-4o"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello there"}}]}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Endpoint:    server.URL,
		Deployment:  "gpt-4o",
		APIVersion:  "2024-02-01",
		APIKey:      "secret-key",
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	reply, err := client.Generate(context.Background(), "you are terse", "say hi")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "hello there" {
		t.Errorf("Generate() = %q, want %q", reply, "hello there")
	}
	if want := "/openai/deployments/gpt-4o/chat/completions?api-version=2024-02-01"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotKey != "secret-key" {
		t.Errorf("api-key header = %q", gotKey)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	if gotReq.Temperature != 0.1 || gotReq.MaxTokens != 2000 {
		t.Errorf("sampling params = %v/%d", gotReq.Temperature, gotReq.MaxTokens)
	}
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":"429","message":"rate limited"}}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, Deployment: "gpt-4o", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Generate(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("Generate() = nil error, want rate limit error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %v, want to carry API message", err)
	}
}

func TestGenerateNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, Deployment: "gpt-4o", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := client.Generate(context.Background(), "s", "u"); err == nil {
		t.Error("Generate() = nil error, want no-choices error")
	}
}
