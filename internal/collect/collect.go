package collect

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/time/rate"

	"github.com/TobiSchelling/SalesCoach/internal/config"
	"github.com/TobiSchelling/SalesCoach/internal/database"
)

// Result holds the results of a collection run.
type Result struct {
	Queries    int
	Found      int
	NewItems   int
	Duplicates int
	Sources    map[string]int
}

// Collector discovers new posts and videos for each configured influencer
// and enqueues them as raw items for the fetch and classify stages.
type Collector struct {
	db          *database.DB
	serper      *SerperClient
	channels    *ChannelFeed
	influencers []config.Influencer
	perQuery    int
	limiter     *rate.Limiter
}

// NewCollector creates a new collector.
func NewCollector(cfg *config.Config, db *database.DB) *Collector {
	rps := cfg.Collect.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	burst := cfg.Collect.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Collector{
		db:          db,
		channels:    NewChannelFeed(),
		influencers: cfg.Influencers,
		perQuery:    cfg.Collect.Serper.ResultsPerQuery,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
	}
	if cfg.Collect.Serper.Enabled {
		c.serper = NewSerperClient(cfg.Collect.Serper.APIKeyEnv)
	}
	return c
}

// Collect discovers new content from all configured sources. Source narrows
// the run to "linkedin" or "youtube"; empty or "all" runs both.
func (c *Collector) Collect(ctx context.Context, source string) *Result {
	r := &Result{Sources: make(map[string]int)}

	if wantSource(source, "linkedin") {
		if c.serper != nil && c.serper.IsConfigured() {
			c.collectLinkedIn(ctx, r)
		} else {
			log.Println("Serper not configured, skipping LinkedIn collection")
		}
	}
	if wantSource(source, "youtube") {
		c.collectYouTube(ctx, r)
	}

	log.Printf("Collection complete: %d found, %d new, %d duplicates",
		r.Found, r.NewItems, r.Duplicates)
	return r
}

func wantSource(requested, source string) bool {
	return requested == "" || requested == "all" || requested == source
}

func (c *Collector) collectLinkedIn(ctx context.Context, r *Result) {
	log.Println("Collecting LinkedIn posts via Serper...")

	for _, inf := range c.influencers {
		if inf.LinkedIn == "" {
			continue
		}

		for _, query := range influencerQueries(inf) {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}

			results := c.serper.SearchPosts(query, c.perQuery)
			r.Queries++
			r.Found += len(results)

			for _, res := range results {
				item := &database.RawItem{
					ID:             database.ContentID(res.URL),
					InfluencerSlug: inf.Slug,
					InfluencerName: inf.Name,
					SourceType:     "linkedin",
					SourceURL:      res.URL,
				}
				if res.Title != "" {
					item.Title = &res.Title
				}
				c.enqueue(r, item)
			}
		}
		log.Printf("Searched LinkedIn posts for %s", inf.Name)
	}
}

func (c *Collector) collectYouTube(ctx context.Context, r *Result) {
	log.Println("Collecting videos from YouTube channel feeds...")

	for _, inf := range c.influencers {
		if inf.YouTubeChannel == "" {
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		videos, err := c.channels.Videos(inf.YouTubeChannel)
		if err != nil {
			log.Printf("Failed to read channel feed for %s: %v", inf.Name, err)
			continue
		}
		r.Found += len(videos)

		for _, video := range videos {
			item := &database.RawItem{
				ID:             database.ContentID(video.URL),
				InfluencerSlug: inf.Slug,
				InfluencerName: inf.Name,
				SourceType:     "youtube",
				SourceURL:      video.URL,
			}
			if video.Title != "" {
				item.Title = &video.Title
			}
			c.enqueue(r, item)
		}
		log.Printf("Checked channel feed for %s: %d videos", inf.Name, len(videos))
	}
}

// influencerQueries builds the x-ray search queries for one influencer:
// posts from their profile, and posts mentioning their name on a sales topic.
func influencerQueries(inf config.Influencer) []string {
	return []string{
		fmt.Sprintf(`site:linkedin.com/posts/ "%s"`, inf.LinkedIn),
		fmt.Sprintf(`site:linkedin.com/posts/ "%s" sales`, inf.Name),
	}
}

func (c *Collector) enqueue(r *Result, item *database.RawItem) {
	known, err := c.db.HasSourceURL(item.SourceURL)
	if err != nil {
		log.Printf("Dedup check failed for %s: %v", item.SourceURL, err)
		return
	}
	if known {
		r.Duplicates++
		return
	}

	inserted, err := c.db.InsertRawItem(item)
	if err != nil || !inserted {
		r.Duplicates++
		return
	}
	r.NewItems++
	r.Sources[item.InfluencerName]++
}
