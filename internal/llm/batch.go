package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// BatchStatusEnded is the terminal processing status of a batch.
const BatchStatusEnded = "ended"

// BatchRequest is one entry in a batch submission. CustomID correlates the
// response back to the record it was built from.
type BatchRequest struct {
	CustomID  string
	Prompt    string
	MaxTokens int
}

// RequestCounts is the per-state request tally reported by the batch service.
type RequestCounts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Errored    int `json:"errored"`
	Canceled   int `json:"canceled"`
	Expired    int `json:"expired"`
}

// Done returns the number of requests in a terminal state.
func (rc RequestCounts) Done() int {
	return rc.Succeeded + rc.Errored + rc.Canceled + rc.Expired
}

// Total returns the total number of requests in the batch.
func (rc RequestCounts) Total() int {
	return rc.Processing + rc.Done()
}

// Batch is the server-side state of a submitted batch.
type Batch struct {
	ID               string        `json:"id"`
	ProcessingStatus string        `json:"processing_status"`
	RequestCounts    RequestCounts `json:"request_counts"`
	ResultsURL       string        `json:"results_url"`
}

// Ended reports whether the batch reached its terminal status.
func (b *Batch) Ended() bool {
	return b.ProcessingStatus == BatchStatusEnded
}

// BatchResult is one per-request outcome from a finished batch. Text is
// empty unless Type is "succeeded".
type BatchResult struct {
	CustomID string
	Type     string
	Text     string
}

// Succeeded reports whether the individual request completed.
func (r BatchResult) Succeeded() bool {
	return r.Type == "succeeded"
}

// BatchClient talks to the Anthropic message batches API.
type BatchClient struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewBatchClient creates a batch client reading its key from the named
// environment variable.
func NewBatchClient(model, apiKeyEnv string) *BatchClient {
	return &BatchClient{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: "https://api.anthropic.com",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (c *BatchClient) IsConfigured() bool {
	return c.APIKey != ""
}

// Submit creates a batch from the given requests and returns its initial
// state. Each request becomes one messages call with the shared model.
func (c *BatchClient) Submit(ctx context.Context, requests []BatchRequest) (*Batch, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key not configured")
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	entries := make([]map[string]any, len(requests))
	for i, r := range requests {
		entries[i] = map[string]any{
			"custom_id": r.CustomID,
			"params": map[string]any{
				"model":       c.Model,
				"max_tokens":  r.MaxTokens,
				"temperature": 0.2,
				"messages": []map[string]string{
					{"role": "user", "content": r.Prompt},
				},
			},
		}
	}

	data, err := json.Marshal(map[string]any{"requests": entries})
	if err != nil {
		return nil, fmt.Errorf("marshaling batch: %w", err)
	}

	resp, err := c.do(ctx, "POST", c.BaseURL+"/v1/messages/batches", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeBatch(resp)
}

// Get retrieves the current state of a batch by id.
func (c *BatchClient) Get(ctx context.Context, batchID string) (*Batch, error) {
	resp, err := c.do(ctx, "GET", c.BaseURL+"/v1/messages/batches/"+batchID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeBatch(resp)
}

// Results streams the per-request outcomes of an ended batch. Results may
// arrive in any order; callers correlate through CustomID.
func (c *BatchClient) Results(ctx context.Context, batch *Batch) ([]BatchResult, error) {
	url := batch.ResultsURL
	if url == "" {
		url = c.BaseURL + "/v1/messages/batches/" + batch.ID + "/results"
	}

	resp, err := c.do(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("batch results returned %d: %s", resp.StatusCode, string(respBody))
	}

	// One JSON object per line.
	var results []BatchResult
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry struct {
			CustomID string `json:"custom_id"`
			Result   struct {
				Type    string `json:"type"`
				Message struct {
					Content []struct {
						Type string `json:"type"`
						Text string `json:"text"`
					} `json:"content"`
				} `json:"message"`
			} `json:"result"`
		}
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("decoding result line: %w", err)
		}

		result := BatchResult{CustomID: entry.CustomID, Type: entry.Result.Type}
		for _, block := range entry.Result.Message.Content {
			if block.Type == "text" {
				result.Text = block.Text
				break
			}
		}
		results = append(results, result)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}

	return results, nil
}

func (c *BatchClient) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch API error: %w", err)
	}
	return resp, nil
}

func decodeBatch(resp *http.Response) (*Batch, error) {
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("batch API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var batch Batch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decoding batch: %w", err)
	}
	if batch.ID == "" {
		return nil, fmt.Errorf("batch response missing id")
	}
	return &batch, nil
}
