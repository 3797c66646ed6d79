package collect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/TobiSchelling/SalesCoach/internal/config"
	"github.com/TobiSchelling/SalesCoach/internal/database"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>Test Channel</title>
  <entry>
    <id>yt:video:abc123DEF45</id>
    <yt:videoId>abc123DEF45</yt:videoId>
    <title>Discovery Call Tips</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=abc123DEF45"/>
    <published>2025-05-01T10:00:00+00:00</published>
  </entry>
  <entry>
    <id>yt:video:xyz789GHI01</id>
    <yt:videoId>xyz789GHI01</yt:videoId>
    <title>Cold Call Openers</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=xyz789GHI01"/>
    <published>2025-05-02T10:00:00+00:00</published>
  </entry>
</feed>`

func serperTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]any{
			"organic": []map[string]string{
				{
					"link":    "https://www.linkedin.com/posts/iankoniak_sales-activity-123",
					"title":   "Ian Koniak on discovery",
					"snippet": "Ask better questions before you pitch",
				},
				{
					"link":    "https://example.com/not-linkedin",
					"title":   "Unrelated",
					"snippet": "noise",
				},
				{
					"link":    "https://www.linkedin.com/pulse/enterprise-selling-guide",
					"title":   "Enterprise selling guide",
					"snippet": "Long form advice",
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func feedTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(testFeedXML))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchPostsFiltersLinkedIn(t *testing.T) {
	srv := serperTestServer(t)

	client := &SerperClient{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		client:  srv.Client(),
	}

	results := client.SearchPosts(`site:linkedin.com/posts/ "iankoniak"`, 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 LinkedIn results, got %d", len(results))
	}
	if results[0].URL != "https://www.linkedin.com/posts/iankoniak_sales-activity-123" {
		t.Errorf("unexpected first URL: %s", results[0].URL)
	}
	if results[0].Snippet != "Ask better questions before you pitch" {
		t.Errorf("unexpected snippet: %q", results[0].Snippet)
	}
}

func TestSearchPostsUnconfigured(t *testing.T) {
	client := &SerperClient{BaseURL: "http://localhost:1", client: http.DefaultClient}
	if client.IsConfigured() {
		t.Error("expected unconfigured client")
	}
	if results := client.SearchPosts("query", 10); results != nil {
		t.Errorf("expected nil results without API key, got %d", len(results))
	}
}

func TestChannelFeedVideos(t *testing.T) {
	srv := feedTestServer(t)

	cf := NewChannelFeed()
	cf.BaseURL = srv.URL + "?channel_id="

	videos, err := cf.Videos("UCtest")
	if err != nil {
		t.Fatalf("failed to fetch channel feed: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}

	first := videos[0]
	if first.VideoID != "abc123DEF45" {
		t.Errorf("unexpected video id: %s", first.VideoID)
	}
	if first.URL != "https://youtube.com/watch?v=abc123DEF45" {
		t.Errorf("unexpected canonical URL: %s", first.URL)
	}
	if first.Title != "Discovery Call Tips" {
		t.Errorf("unexpected title: %s", first.Title)
	}
	if first.PublishedDate != "2025-05-01" {
		t.Errorf("unexpected published date: %s", first.PublishedDate)
	}
}

func TestInfluencerQueries(t *testing.T) {
	inf := config.Influencer{Slug: "ian-koniak", Name: "Ian Koniak", LinkedIn: "iankoniak"}
	queries := influencerQueries(inf)
	if len(queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(queries))
	}
	if queries[0] != `site:linkedin.com/posts/ "iankoniak"` {
		t.Errorf("unexpected profile query: %s", queries[0])
	}
	if queries[1] != `site:linkedin.com/posts/ "Ian Koniak" sales` {
		t.Errorf("unexpected name query: %s", queries[1])
	}
}

func TestCollectEnqueuesAndDedupes(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	serper := serperTestServer(t)
	feeds := feedTestServer(t)

	cfg := &config.Config{
		Influencers: []config.Influencer{
			{Slug: "ian-koniak", Name: "Ian Koniak", LinkedIn: "iankoniak", YouTubeChannel: "UCtest"},
		},
		Collect: config.Collect{
			Serper:            config.SerperConfig{Enabled: true, ResultsPerQuery: 10},
			RequestsPerSecond: 1000,
			Burst:             10,
		},
	}

	c := NewCollector(cfg, db)
	c.serper = &SerperClient{APIKey: "test-key", BaseURL: serper.URL, client: serper.Client()}
	c.channels.BaseURL = feeds.URL + "?channel_id="

	r := c.Collect(context.Background(), "all")

	// Two LinkedIn queries return the same two posts, so the second query's
	// results are duplicates. The channel feed adds two videos.
	if r.Queries != 2 {
		t.Errorf("expected 2 queries, got %d", r.Queries)
	}
	if r.NewItems != 4 {
		t.Errorf("expected 4 new items, got %d", r.NewItems)
	}
	if r.Duplicates != 2 {
		t.Errorf("expected 2 duplicates, got %d", r.Duplicates)
	}
	if r.Sources["Ian Koniak"] != 4 {
		t.Errorf("expected 4 items for Ian Koniak, got %d", r.Sources["Ian Koniak"])
	}

	// Everything is known on a second run.
	r2 := c.Collect(context.Background(), "all")
	if r2.NewItems != 0 {
		t.Errorf("expected 0 new items on rerun, got %d", r2.NewItems)
	}
	if r2.Duplicates != 6 {
		t.Errorf("expected 6 duplicates on rerun, got %d", r2.Duplicates)
	}

	// Raw items landed in the fetch queue with URL-derived ids.
	items, err := db.GetItemsNeedingFetch()
	if err != nil {
		t.Fatalf("failed to list items needing fetch: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items needing fetch, got %d", len(items))
	}
	for _, item := range items {
		if item.ID != database.ContentID(item.SourceURL) {
			t.Errorf("item id %s does not match URL hash", item.ID)
		}
	}
}

func TestCollectSourceFilter(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	feeds := feedTestServer(t)

	cfg := &config.Config{
		Influencers: []config.Influencer{
			{Slug: "ian-koniak", Name: "Ian Koniak", LinkedIn: "iankoniak", YouTubeChannel: "UCtest"},
		},
		Collect: config.Collect{RequestsPerSecond: 1000, Burst: 10},
	}

	c := NewCollector(cfg, db)
	c.channels.BaseURL = feeds.URL + "?channel_id="

	// Serper disabled in config, youtube only.
	r := c.Collect(context.Background(), "youtube")
	if r.NewItems != 2 {
		t.Errorf("expected 2 new items from youtube, got %d", r.NewItems)
	}
	if r.Queries != 0 {
		t.Errorf("expected 0 search queries, got %d", r.Queries)
	}
}
