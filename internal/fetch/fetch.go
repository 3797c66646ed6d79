package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/SalesCoach/internal/config"
	"github.com/TobiSchelling/SalesCoach/internal/database"
)

const (
	// Readable article text below this length falls through to the
	// meta-tag preview path.
	minArticleLength = 100
	// LinkedIn previews shorter than this are usually just the page
	// boilerplate, not the post.
	minPreviewLength = 50

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// ContentFetcher fills raw items with full text: post pages through
// readability with a meta-tag fallback, videos through caption tracks.
type ContentFetcher struct {
	db       *database.DB
	client   *http.Client
	captions *CaptionClient
	limiter  *rate.Limiter
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(cfg *config.Config, db *database.DB) *ContentFetcher {
	rps := cfg.Collect.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	burst := cfg.Collect.Burst
	if burst < 1 {
		burst = 1
	}

	return &ContentFetcher{
		db: db,
		client: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		captions: NewCaptionClient(15 * time.Second),
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// FetchMissingContent fetches content for raw items that have none yet.
func (f *ContentFetcher) FetchMissingContent(ctx context.Context) *Result {
	items, err := f.db.GetItemsNeedingFetch()
	if err != nil {
		log.Printf("Error listing items needing fetch: %v", err)
		return &Result{}
	}

	if len(items) == 0 {
		log.Println("No items need content fetching")
		return &Result{}
	}

	result := &Result{}
	for _, item := range items {
		if err := f.limiter.Wait(ctx); err != nil {
			return result
		}

		var content string
		var fetchErr error
		switch item.SourceType {
		case "youtube":
			content, fetchErr = f.fetchTranscript(item.SourceURL)
		default:
			content, fetchErr = f.fetchPost(item.SourceURL)
		}

		if fetchErr != nil || content == "" {
			f.db.MarkFetchAttempted(item.ID)
			result.Failed++
			if fetchErr != nil {
				log.Printf("Fetch failed for %s: %v", item.SourceURL, fetchErr)
			} else {
				log.Printf("No extractable content from %s", item.SourceURL)
			}
			continue
		}

		f.db.UpdateRawItemContent(item.ID, &content)
		result.Fetched++
		log.Printf("Fetched %d chars for %s", len(content), item.ID)
	}

	log.Printf("Content fetch complete: %d fetched, %d failed", result.Fetched, result.Failed)
	return result
}

func (f *ContentFetcher) fetchPost(postURL string) (string, error) {
	req, err := http.NewRequest("GET", postURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(postURL)
	if article, err := readability.FromReader(bytes.NewReader(body), parsedURL); err == nil {
		text := strings.TrimSpace(article.TextContent)
		if len(text) >= minArticleLength {
			return text, nil
		}
	}

	return metaPreview(bytes.NewReader(body))
}

// metaPreview extracts the post preview from meta tags. LinkedIn serves
// the post text in og:description even behind the login wall.
func metaPreview(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	var parts []string
	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && desc != "" {
		parts = append(parts, desc)
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && desc != "" {
		if len(parts) == 0 || parts[0] != desc {
			parts = append(parts, desc)
		}
	}

	content := strings.TrimSpace(strings.Join(parts, " "))
	if len(content) < minPreviewLength {
		return "", nil
	}
	return content, nil
}

func (f *ContentFetcher) fetchTranscript(watchURL string) (string, error) {
	videoID := videoIDFromURL(watchURL)
	if videoID == "" {
		return "", fmt.Errorf("no video id in %s", watchURL)
	}
	return f.captions.Transcript(videoID)
}

func videoIDFromURL(watchURL string) string {
	u, err := url.Parse(watchURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
