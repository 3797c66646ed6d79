package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/TobiSchelling/SalesCoach/internal/config"
	"github.com/TobiSchelling/SalesCoach/internal/database"
	"github.com/TobiSchelling/SalesCoach/internal/llm"
)

const taggingPrompt = `Analyze this sales insight and identify which sales methodology components it relates to.

INSIGHT:
Influencer: %s
Stage: %s
Key Insight: %s
Tactical Steps: %s
Keywords: %s
Best Quote: %s

METHODOLOGY COMPONENTS (only tag if genuinely relevant, not just keyword overlap):
%s

Respond in JSON format only (no markdown, no explanation):
{
  "tags": [
    {"component_id": "meddic_champion", "confidence": 0.85},
    {"component_id": "spin_implication", "confidence": 0.6}
  ]
}

Rules:
- Only include tags with confidence >= 0.5
- Maximum 5 tags per insight (most insights will have 1-3)
- Confidence 0.8+: insight directly teaches or demonstrates this component
- Confidence 0.6-0.8: insight is clearly related to this component
- Confidence 0.5-0.6: insight touches on this component
- Return {"tags": []} if no methodology components apply
- Consider the full meaning, not just keyword matches`

const (
	// The tag list response is small.
	maxTokens = 300

	// Tags below this confidence are discarded even if the model returns
	// them despite the prompt rules.
	minTagConfidence = 0.5

	maxTagsPerInsight = 5
)

// Result summarizes a tagging run.
type Result struct {
	Submitted      int
	InsightsTagged int
	TagsWritten    int
	InvalidIDs     int
	Errors         int
	BatchID        string
}

// Options control a tagging run.
type Options struct {
	// BatchID resumes polling an already-submitted batch.
	BatchID string
	// Limit caps how many insights are tagged. Zero means all.
	Limit int
	// Yes skips the confirmation prompt for large batches.
	Yes bool
	// DryRun reports what would be submitted without calling the API.
	DryRun bool
}

// Tagger associates insights with methodology components through the batch
// API. The component catalog is loaded from the database, so freshly seeded
// methodologies are picked up without code changes.
type Tagger struct {
	db        *database.DB
	batch     *llm.BatchClient
	threshold int
	interval  time.Duration
	confirm   func(prompt string) bool
}

// NewTagger creates a tagger from the configured model settings.
func NewTagger(cfg *config.Config, db *database.DB) *Tagger {
	cl := cfg.Classification
	return &Tagger{
		db:        db,
		batch:     llm.NewBatchClient(cl.Model, cl.APIKeyEnv),
		threshold: cl.BatchThreshold,
		interval:  time.Duration(cl.PollInterval) * time.Second,
		confirm:   llm.ConfirmStdin,
	}
}

// Run selects insights without methodology tags, sends each against the
// component catalog in one batch and writes the returned tags.
func (tg *Tagger) Run(ctx context.Context, opts Options) (*Result, error) {
	if !tg.batch.IsConfigured() && !opts.DryRun {
		return nil, fmt.Errorf("Anthropic API key not configured")
	}

	componentsList, total, err := tg.componentsList()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, fmt.Errorf("no methodology components in database, run seed first")
	}
	log.Printf("Loaded %d methodology components for tagging", total)

	r := &Result{}

	batchID := opts.BatchID
	if batchID != "" {
		log.Printf("Resuming batch %s", batchID)
	} else {
		insights, err := tg.db.GetUntagged(opts.Limit)
		if err != nil {
			return nil, fmt.Errorf("selecting untagged insights: %w", err)
		}
		if len(insights) == 0 {
			log.Println("All insights already tagged")
			return r, nil
		}
		log.Printf("Found %d insights to tag", len(insights))

		estCost := float64(len(insights)*800)*0.04/1e6 + float64(len(insights)*100)*0.20/1e6
		log.Printf("Estimated cost: $%.2f (%d requests, batch pricing)", estCost, len(insights))

		if opts.DryRun {
			log.Printf("Dry run: no batch submitted")
			return r, nil
		}

		if len(insights) >= tg.threshold && !opts.Yes {
			if !tg.confirm(fmt.Sprintf("Submit batch of %d requests? [y/N]: ", len(insights))) {
				return nil, fmt.Errorf("aborted")
			}
		}

		requests := make([]llm.BatchRequest, 0, len(insights))
		for _, in := range insights {
			requests = append(requests, llm.BatchRequest{
				CustomID:  in.ID,
				Prompt:    buildTaggingPrompt(in, componentsList),
				MaxTokens: maxTokens,
			})
		}

		log.Printf("Submitting batch of %d requests...", len(requests))
		batch, err := tg.batch.Submit(ctx, requests)
		if err != nil {
			return nil, fmt.Errorf("submitting batch: %w", err)
		}
		batchID = batch.ID
		r.Submitted = len(requests)
		log.Printf("Batch created: %s", batchID)
	}
	r.BatchID = batchID

	batch, err := tg.batch.PollUntilEnded(ctx, batchID, tg.interval)
	if err != nil {
		return r, err
	}

	results, err := tg.batch.Results(ctx, batch)
	if err != nil {
		return r, fmt.Errorf("fetching batch results: %w", err)
	}

	validIDs, err := tg.db.GetComponentIDs()
	if err != nil {
		return r, fmt.Errorf("loading component ids: %w", err)
	}

	for _, res := range results {
		if !res.Succeeded() {
			r.Errors++
			continue
		}
		tags, err := parseTags(res.Text)
		if err != nil {
			log.Printf("Parse error for %s: %v", res.CustomID, err)
			r.Errors++
			continue
		}

		tagged := false
		for _, tag := range tags {
			if !validIDs[tag.ComponentID] {
				r.InvalidIDs++
				continue
			}
			if tag.Confidence < minTagConfidence {
				continue
			}
			if err := tg.db.TagMethodology(res.CustomID, tag.ComponentID, tag.Confidence, "claude"); err != nil {
				log.Printf("Tag write for %s failed: %v", res.CustomID, err)
				r.Errors++
				continue
			}
			r.TagsWritten++
			tagged = true
		}
		if tagged {
			r.InsightsTagged++
		}
	}

	if r.InvalidIDs > 0 {
		log.Printf("Skipped %d tags with invalid component IDs", r.InvalidIDs)
	}
	log.Printf("Methodology tagging complete: %d insights tagged, %d tags written, %d errors",
		r.InsightsTagged, r.TagsWritten, r.Errors)
	return r, nil
}

// componentsList renders the catalog as one prompt line per component.
func (tg *Tagger) componentsList() (string, int, error) {
	tree, err := tg.db.GetMethodologyTree()
	if err != nil {
		return "", 0, fmt.Errorf("loading methodology tree: %w", err)
	}

	var lines []string
	for _, m := range tree {
		for _, c := range m.Components {
			lines = append(lines, fmt.Sprintf("%s > %s (id: %s): %s",
				m.Name, c.Name, c.ID, strings.Join(c.Keywords, ", ")))
		}
	}
	return strings.Join(lines, "\n"), len(lines), nil
}

func buildTaggingPrompt(in database.Insight, componentsList string) string {
	quote := ""
	if in.BestQuote != nil {
		quote = *in.BestQuote
	}
	return fmt.Sprintf(taggingPrompt,
		in.InfluencerName,
		in.PrimaryStage,
		in.KeyInsight,
		strings.Join(in.TacticalSteps, ", "),
		strings.Join(in.Keywords, ", "),
		quote,
		componentsList,
	)
}

// tag is one entry of the JSON response.
type tag struct {
	ComponentID string  `json:"component_id"`
	Confidence  float64 `json:"confidence"`
}

func parseTags(text string) ([]tag, error) {
	var resp struct {
		Tags []tag `json:"tags"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFences(text)), &resp); err != nil {
		return nil, fmt.Errorf("parsing tagging response: %w", err)
	}
	if len(resp.Tags) > maxTagsPerInsight {
		resp.Tags = resp.Tags[:maxTagsPerInsight]
	}
	return resp.Tags, nil
}
