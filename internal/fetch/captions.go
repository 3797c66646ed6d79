package fetch

import (
	"bytes"
	"encoding/xml"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const timedtextBaseURL = "https://www.youtube.com/api/timedtext"

// CaptionClient fetches caption tracks from YouTube's public timedtext
// endpoint. No API key required; videos without an English track come
// back empty.
type CaptionClient struct {
	BaseURL string
	client  *http.Client
}

// NewCaptionClient creates a new caption client.
func NewCaptionClient(timeout time.Duration) *CaptionClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &CaptionClient{
		BaseURL: timedtextBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Transcript fetches the English caption track for a video and joins it
// into plain text. Returns empty text when the video has no captions.
func (c *CaptionClient) Transcript(videoID string) (string, error) {
	params := url.Values{
		"lang": {"en"},
		"v":    {videoID},
	}

	resp, err := c.client.Get(c.BaseURL + "?" + params.Encode())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	// Captionless videos return an empty 200 response.
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}

	var track struct {
		Texts []struct {
			Value string `xml:",chardata"`
		} `xml:"text"`
	}
	if err := xml.Unmarshal(body, &track); err != nil {
		return "", err
	}

	var parts []string
	for _, t := range track.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Value))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
