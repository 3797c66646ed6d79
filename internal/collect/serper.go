package collect

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

const serperBaseURL = "https://google.serper.dev/search"

// SearchResult is one organic result from a Serper query.
type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

// SerperClient discovers LinkedIn posts via Google search (Serper.dev),
// avoiding direct LinkedIn scraping.
type SerperClient struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewSerperClient creates a new Serper client reading the key from the
// given environment variable.
func NewSerperClient(apiKeyEnv string) *SerperClient {
	return &SerperClient{
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: serperBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *SerperClient) IsConfigured() bool {
	return c.APIKey != ""
}

// SearchPosts runs one search query and returns results pointing at
// LinkedIn posts or articles.
func (c *SerperClient) SearchPosts(query string, numResults int) []SearchResult {
	if c.APIKey == "" {
		log.Println("Serper not configured, skipping search")
		return nil
	}

	payload := map[string]any{
		"q":   query,
		"num": numResults,
		"tbs": "qdr:y", // last year
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	req, err := http.NewRequest("POST", c.BaseURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("Serper request error: %v", err)
		return nil
	}
	req.Header.Set("X-API-KEY", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("Serper error: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Serper HTTP error: %d", resp.StatusCode)
		return nil
	}

	var result struct {
		Organic []struct {
			Link    string `json:"link"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("Serper decode error: %v", err)
		return nil
	}

	var results []SearchResult
	for _, item := range result.Organic {
		if !isLinkedInPost(item.Link) {
			continue
		}
		results = append(results, SearchResult{
			URL:     item.Link,
			Title:   strings.TrimSpace(item.Title),
			Snippet: strings.TrimSpace(item.Snippet),
		})
	}

	return results
}

func isLinkedInPost(link string) bool {
	return strings.Contains(link, "linkedin.com/posts/") ||
		strings.Contains(link, "linkedin.com/pulse/")
}
