package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNoop(t *testing.T) {
	client := New(Config{})
	if client.Available() {
		t.Fatal("Noop should not report available")
	}
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello"}},
			},
		})
	}))
	defer srv.Close()

	client := New(Config{Endpoint: srv.URL, APIKey: "test-key", Model: "test-model"})
	out, err := client.Complete(context.Background(), Request{System: "sys", Prompt: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "hello" {
		t.Fatalf("text = %q", out.Text)
	}
}

func TestComplete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(Config{Endpoint: srv.URL, APIKey: "k", Model: "m"})
	if _, err := client.Complete(context.Background(), Request{Prompt: "hi"}); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestParseJSONBlock(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"bare", `["a", "b"]`},
		{"fenced", "Here you go:\n```json\n[\"a\", \"b\"]\n```\n"},
		{"prose", `The selectors are ["a", "b"] as requested.`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out []string
			if err := ParseJSONBlock(tc.in, &out); err != nil {
				t.Fatal(err)
			}
			if len(out) != 2 || out[0] != "a" {
				t.Fatalf("out = %v", out)
			}
		})
	}
}

func TestParseJSONBlock_NoJSON(t *testing.T) {
	var out []string
	if err := ParseJSONBlock("sorry, I cannot help", &out); err == nil {
		t.Fatal("expected error for prose-only response")
	}
}
