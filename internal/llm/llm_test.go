package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseWithPlainFence(t *testing.T) {
	text := "```\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	result := ParseJSONResponse("not json at all")
	if result != nil {
		t.Error("expected nil for invalid JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	result := ParseJSONResponse("")
	if result != nil {
		t.Error("expected nil for empty string")
	}
}

func TestParseJSONResponseWhitespace(t *testing.T) {
	result := ParseJSONResponse("  \n  {\"key\": \"value\"}  \n  ")
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\nline one\nline two\n```", "line one\nline two"},
		{"  ```json\n{}\n```  ", "{}"},
	}
	for _, c := range cases {
		if got := StripCodeFences(c.in); got != c.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("expected x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("expected anthropic-version header")
		}

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "claude-sonnet-4-20250514" {
			t.Errorf("unexpected model %q", body.Model)
		}
		if body.MaxTokens != 500 {
			t.Errorf("unexpected max_tokens %d", body.MaxTokens)
		}

		fmt.Fprint(w, `{"content": [{"type": "text", "text": "generated advice"}]}`)
	}))
	defer srv.Close()

	p := &AnthropicProvider{
		Model:   "claude-sonnet-4-20250514",
		APIKey:  "test-key",
		BaseURL: srv.URL,
		client:  srv.Client(),
	}

	text, err := p.Generate(context.Background(), "test prompt", 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "generated advice" {
		t.Errorf("expected response text, got %q", text)
	}
}

func TestAnthropicGenerateUnconfigured(t *testing.T) {
	p := &AnthropicProvider{Model: "m", client: http.DefaultClient}
	if p.IsConfigured() {
		t.Error("expected unconfigured without key")
	}
	if _, err := p.Generate(context.Background(), "prompt", 100); err == nil {
		t.Error("expected error without API key")
	}
}

func TestAnthropicGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &AnthropicProvider{Model: "m", APIKey: "k", BaseURL: srv.URL, client: srv.Client()}
	if _, err := p.Generate(context.Background(), "prompt", 100); err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestBatchSubmitGetResults(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/v1/messages/batches":
			var body struct {
				Requests []struct {
					CustomID string `json:"custom_id"`
					Params   struct {
						Model     string `json:"model"`
						MaxTokens int    `json:"max_tokens"`
					} `json:"params"`
				} `json:"requests"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if len(body.Requests) != 2 {
				t.Errorf("expected 2 requests, got %d", len(body.Requests))
			}
			if body.Requests[0].CustomID != "in-1" {
				t.Errorf("expected custom_id in-1, got %q", body.Requests[0].CustomID)
			}
			if body.Requests[0].Params.MaxTokens != 200 {
				t.Errorf("expected max_tokens 200, got %d", body.Requests[0].Params.MaxTokens)
			}
			fmt.Fprint(w, `{"id": "msgbatch_01", "processing_status": "in_progress",
				"request_counts": {"processing": 2, "succeeded": 0, "errored": 0, "canceled": 0, "expired": 0}}`)

		case r.Method == "GET" && r.URL.Path == "/v1/messages/batches/msgbatch_01":
			polls++
			if polls < 2 {
				fmt.Fprint(w, `{"id": "msgbatch_01", "processing_status": "in_progress",
					"request_counts": {"processing": 1, "succeeded": 1, "errored": 0, "canceled": 0, "expired": 0}}`)
				return
			}
			fmt.Fprint(w, `{"id": "msgbatch_01", "processing_status": "ended",
				"request_counts": {"processing": 0, "succeeded": 1, "errored": 1, "canceled": 0, "expired": 0}}`)

		case r.Method == "GET" && r.URL.Path == "/v1/messages/batches/msgbatch_01/results":
			// Out of order on purpose; callers correlate by custom_id.
			fmt.Fprintln(w, `{"custom_id": "in-2", "result": {"type": "errored"}}`)
			fmt.Fprintln(w, `{"custom_id": "in-1", "result": {"type": "succeeded", "message": {"content": [{"type": "text", "text": "{\"confidence\": 0.9}"}]}}}`)

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &BatchClient{Model: "claude-sonnet-4-20250514", APIKey: "test-key", BaseURL: srv.URL, client: srv.Client()}

	batch, err := c.Submit(context.Background(), []BatchRequest{
		{CustomID: "in-1", Prompt: "classify one", MaxTokens: 200},
		{CustomID: "in-2", Prompt: "classify two", MaxTokens: 200},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if batch.ID != "msgbatch_01" {
		t.Errorf("expected batch id, got %q", batch.ID)
	}
	if batch.Ended() {
		t.Error("expected batch still processing")
	}
	if batch.RequestCounts.Total() != 2 {
		t.Errorf("expected total 2, got %d", batch.RequestCounts.Total())
	}

	batch, err = c.Get(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if batch.Ended() {
		t.Error("expected first poll still in progress")
	}
	if batch.RequestCounts.Done() != 1 {
		t.Errorf("expected 1 done, got %d", batch.RequestCounts.Done())
	}

	batch, err = c.Get(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !batch.Ended() {
		t.Fatal("expected batch ended on second poll")
	}

	results, err := c.Results(context.Background(), batch)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].CustomID != "in-2" || results[0].Succeeded() {
		t.Errorf("expected in-2 errored, got %+v", results[0])
	}
	if results[1].CustomID != "in-1" || !results[1].Succeeded() {
		t.Errorf("expected in-1 succeeded, got %+v", results[1])
	}
	if results[1].Text != `{"confidence": 0.9}` {
		t.Errorf("unexpected result text %q", results[1].Text)
	}
}

func TestPollUntilEndedRetriesTransientFailures(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls <= 2 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"id": "msgbatch_01", "processing_status": "ended",
			"request_counts": {"processing": 0, "succeeded": 1, "errored": 0, "canceled": 0, "expired": 0}}`)
	}))
	defer srv.Close()

	c := &BatchClient{Model: "m", APIKey: "k", BaseURL: srv.URL, client: srv.Client()}
	batch, err := c.PollUntilEnded(context.Background(), "msgbatch_01", time.Millisecond)
	if err != nil {
		t.Fatalf("expected recovery after transient failures, got %v", err)
	}
	if !batch.Ended() {
		t.Error("expected ended batch")
	}
	if polls != 3 {
		t.Errorf("expected 3 polls, got %d", polls)
	}
}

func TestPollUntilEndedGivesUpAfterRepeatedFailures(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &BatchClient{Model: "m", APIKey: "k", BaseURL: srv.URL, client: srv.Client()}
	if _, err := c.PollUntilEnded(context.Background(), "msgbatch_01", time.Millisecond); err == nil {
		t.Fatal("expected error after exhausting the failure budget")
	}
	if polls != maxPollFailures {
		t.Errorf("expected %d polls, got %d", maxPollFailures, polls)
	}
}

func TestPollUntilEndedCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "msgbatch_01", "processing_status": "in_progress",
			"request_counts": {"processing": 1, "succeeded": 0, "errored": 0, "canceled": 0, "expired": 0}}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &BatchClient{Model: "m", APIKey: "k", BaseURL: srv.URL, client: srv.Client()}
	if _, err := c.PollUntilEnded(ctx, "msgbatch_01", time.Minute); err == nil {
		t.Fatal("expected context cancellation to stop polling")
	}
}

func TestBatchSubmitEmpty(t *testing.T) {
	c := &BatchClient{Model: "m", APIKey: "k", client: http.DefaultClient}
	if _, err := c.Submit(context.Background(), nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestBatchSubmitUnconfigured(t *testing.T) {
	c := &BatchClient{Model: "m", client: http.DefaultClient}
	if c.IsConfigured() {
		t.Error("expected unconfigured without key")
	}
	reqs := []BatchRequest{{CustomID: "x", Prompt: "p", MaxTokens: 10}}
	if _, err := c.Submit(context.Background(), reqs); err == nil {
		t.Error("expected error without API key")
	}
}
