package collect

import (
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

const channelFeedBase = "https://www.youtube.com/feeds/videos.xml?channel_id="

// VideoEntry is one video discovered from a channel feed.
type VideoEntry struct {
	VideoID       string
	URL           string
	Title         string
	PublishedDate string // YYYY-MM-DD or empty
}

// ChannelFeed lists recent videos for YouTube channels via their public
// Atom feeds. No API key required.
type ChannelFeed struct {
	BaseURL string
	parser  *gofeed.Parser
}

// NewChannelFeed creates a new channel feed reader.
func NewChannelFeed() *ChannelFeed {
	return &ChannelFeed{
		BaseURL: channelFeedBase,
		parser:  gofeed.NewParser(),
	}
}

// Videos fetches the Atom feed for one channel and returns its entries.
func (cf *ChannelFeed) Videos(channelID string) ([]VideoEntry, error) {
	feed, err := cf.parser.ParseURL(cf.BaseURL + channelID)
	if err != nil {
		return nil, err
	}

	var videos []VideoEntry
	for _, item := range feed.Items {
		entry := parseVideo(item)
		if entry != nil {
			videos = append(videos, *entry)
		}
	}
	return videos, nil
}

func parseVideo(item *gofeed.Item) *VideoEntry {
	id := videoID(item)
	if id == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.Format("2006-01-02")
	}

	return &VideoEntry{
		VideoID:       id,
		URL:           WatchURL(id),
		Title:         title,
		PublishedDate: published,
	}
}

// videoID prefers the yt:videoId feed extension, falling back to the
// link's v query parameter.
func videoID(item *gofeed.Item) string {
	if ns, ok := item.Extensions["yt"]; ok {
		if ids, ok := ns["videoId"]; ok && len(ids) > 0 && ids[0].Value != "" {
			return ids[0].Value
		}
	}

	u, err := url.Parse(item.Link)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

// WatchURL is the canonical video URL used as the dedup key.
func WatchURL(videoID string) string {
	return "https://youtube.com/watch?v=" + videoID
}
