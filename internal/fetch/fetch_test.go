package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/SalesCoach/internal/config"
	"github.com/TobiSchelling/SalesCoach/internal/database"
)

const testPostHTML = `<!DOCTYPE html><html><head>
<meta property="og:description" content="Stop pitching on the first call. Ask about the problem until you can describe it better than the buyer can."/>
<meta name="description" content="LinkedIn post by Ian Koniak"/>
<title>Post</title></head><body></body></html>`

const testTranscriptXML = `<?xml version="1.0" encoding="utf-8"?>
<transcript>
<text start="0" dur="2.5">the first thing I do</text>
<text start="2.5" dur="3">is research the account&amp;#39;s priorities</text>
<text start="5.5" dur="2"></text>
</transcript>`

func openTestFetcher(t *testing.T) (*ContentFetcher, *database.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Collect: config.Collect{RequestsPerSecond: 1000, Burst: 10},
	}
	return NewContentFetcher(cfg, db), db
}

func TestMetaPreview(t *testing.T) {
	content, err := metaPreview(strings.NewReader(testPostHTML))
	if err != nil {
		t.Fatalf("failed to extract preview: %v", err)
	}

	want := "Stop pitching on the first call. Ask about the problem until you can describe it better than the buyer can. LinkedIn post by Ian Koniak"
	if content != want {
		t.Errorf("unexpected preview:\n got: %q\nwant: %q", content, want)
	}
}

func TestMetaPreviewTooShort(t *testing.T) {
	html := `<html><head><meta property="og:description" content="hi"/></head></html>`
	content, err := metaPreview(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "" {
		t.Errorf("expected empty content for short preview, got %q", content)
	}
}

func TestTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "vid123" {
			t.Errorf("unexpected video id: %s", r.URL.Query().Get("v"))
		}
		if r.URL.Query().Get("lang") != "en" {
			t.Errorf("unexpected lang: %s", r.URL.Query().Get("lang"))
		}
		w.Write([]byte(testTranscriptXML))
	}))
	defer srv.Close()

	c := NewCaptionClient(0)
	c.BaseURL = srv.URL

	text, err := c.Transcript("vid123")
	if err != nil {
		t.Fatalf("failed to fetch transcript: %v", err)
	}

	want := "the first thing I do is research the account's priorities"
	if text != want {
		t.Errorf("unexpected transcript:\n got: %q\nwant: %q", text, want)
	}
}

func TestTranscriptNoCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Captionless videos return 200 with an empty body.
	}))
	defer srv.Close()

	c := NewCaptionClient(0)
	c.BaseURL = srv.URL

	text, err := c.Transcript("vid123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty transcript, got %q", text)
	}
}

func TestVideoIDFromURL(t *testing.T) {
	if id := videoIDFromURL("https://youtube.com/watch?v=abc123"); id != "abc123" {
		t.Errorf("expected abc123, got %q", id)
	}
	if id := videoIDFromURL("https://example.com/nope"); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}

func TestFetchMissingContent(t *testing.T) {
	posts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPostHTML))
	}))
	defer posts.Close()

	captions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testTranscriptXML))
	}))
	defer captions.Close()

	f, db := openTestFetcher(t)
	f.captions.BaseURL = captions.URL

	postURL := posts.URL + "/posts/ian-on-discovery"
	videoURL := "https://youtube.com/watch?v=vid123"

	items := []*database.RawItem{
		{
			ID:             database.ContentID(postURL),
			InfluencerSlug: "ian-koniak",
			InfluencerName: "Ian Koniak",
			SourceType:     "linkedin",
			SourceURL:      postURL,
		},
		{
			ID:             database.ContentID(videoURL),
			InfluencerSlug: "ian-koniak",
			InfluencerName: "Ian Koniak",
			SourceType:     "youtube",
			SourceURL:      videoURL,
		},
	}
	for _, item := range items {
		if _, err := db.InsertRawItem(item); err != nil {
			t.Fatalf("failed to insert raw item: %v", err)
		}
	}

	// The video transcript fetch needs to hit the test server, not YouTube.
	// Rewriting the caption base URL covers that; the post URL already
	// points at the test server.
	r := f.FetchMissingContent(context.Background())
	if r.Fetched != 2 {
		t.Fatalf("expected 2 fetched, got %d (%d failed)", r.Fetched, r.Failed)
	}

	pending, err := db.GetItemsNeedingFetch()
	if err != nil {
		t.Fatalf("failed to list pending items: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending items, got %d", len(pending))
	}

	ready, err := db.GetUnprocessed(0)
	if err != nil {
		t.Fatalf("failed to list unprocessed items: %v", err)
	}
	if len(ready) != 2 {
		t.Fatalf("expected 2 unprocessed items, got %d", len(ready))
	}
	for _, item := range ready {
		if item.Content == nil || *item.Content == "" {
			t.Errorf("item %s has no content", item.ID)
		}
	}
}

func TestFetchMarksFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f, db := openTestFetcher(t)

	postURL := srv.URL + "/posts/deleted"
	if _, err := db.InsertRawItem(&database.RawItem{
		ID:             database.ContentID(postURL),
		InfluencerSlug: "ian-koniak",
		InfluencerName: "Ian Koniak",
		SourceType:     "linkedin",
		SourceURL:      postURL,
	}); err != nil {
		t.Fatalf("failed to insert raw item: %v", err)
	}

	r := f.FetchMissingContent(context.Background())
	if r.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", r.Failed)
	}

	// A failed item is not retried on the next run.
	pending, err := db.GetItemsNeedingFetch()
	if err != nil {
		t.Fatalf("failed to list pending items: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending items after failed attempt, got %d", len(pending))
	}
}
