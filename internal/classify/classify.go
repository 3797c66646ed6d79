package classify

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

// Stages is the fixed deal-stage taxonomy. Prompts enumerate these labels
// and responses naming anything else are rejected.
var Stages = []string{
	"Territory Planning",
	"Account Research",
	"Stakeholder Mapping",
	"Outreach Strategy",
	"Initial Contact",
	"Discovery",
	"Needs Analysis",
	"Demo & Presentation",
	"Business Case Development",
	"Proof of Value",
	"RFP/RFQ Response",
	"Procurement & Negotiation",
	"Closing",
	"Onboarding & Expansion",
	"General Sales Mindset",
}

const analysisPrompt = `Analyze this sales content and extract structured insights.

CONTENT:
%s

SOURCE: %s by %s

Available deal stages: %s

Respond in JSON format only (no markdown, no explanation):
{
  "primary_stage": "One of the deal stages listed above",
  "secondary_stages": ["Up to 2 additional relevant stages"],
  "key_insight": "One sentence summary of the main wisdom",
  "tactical_steps": ["2-4 actionable steps from the content"],
  "keywords": ["5-8 searchable keywords"],
  "situation_examples": ["1-2 specific scenarios where this applies"],
  "best_quote": "Most memorable/quotable line from content",
  "relevance_score": 1-10
}

Scoring guide:
- 8-10: Highly tactical, specific, immediately actionable
- 6-7: Good general advice with some specifics
- 4-5: Tangentially related or too generic
- 1-3: Not relevant to sales execution`

// maxContentChars caps how much of a post or transcript goes into one
// prompt. Long transcripts front-load their framing, so the head is the
// useful part.
const maxContentChars = 3000

// Result summarizes a classification run.
type Result struct {
	Submitted int
	Updated   int
	Errors    int
	BatchID   string
}

// Options control a classification run.
type Options struct {
	// BatchID resumes polling an already-submitted batch instead of
	// selecting items and submitting a new one.
	BatchID string
	// Limit caps how many items are classified. Zero means all.
	Limit int
	// Yes skips the confirmation prompt for large batches.
	Yes bool
}

// Classifier turns fetched raw items into structured insights through the
// message batch API. Items whose responses fail to parse stay unprocessed
// and are picked up again on the next run.
type Classifier struct {
	db        *database.DB
	batch     *llm.BatchClient
	maxTokens int
	threshold int
	interval  time.Duration
	confirm   func(prompt string) bool
}

// NewClassifier creates a classifier from the configured model settings.
func NewClassifier(cfg *config.Config, db *database.DB) *Classifier {
	cl := cfg.Classification
	return &Classifier{
		db:        db,
		batch:     llm.NewBatchClient(cl.Model, cl.APIKeyEnv),
		maxTokens: cl.MaxTokens,
		threshold: cl.BatchThreshold,
		interval:  time.Duration(cl.PollInterval) * time.Second,
		confirm:   llm.ConfirmStdin,
	}
}

// Run selects unprocessed raw items and submits them as one batch, then
// polls it to completion and writes the resulting insights back.
func (c *Classifier) Run(ctx context.Context, opts Options) (*Result, error) {
	if !c.batch.IsConfigured() {
		return nil, fmt.Errorf("Anthropic API key not configured")
	}

	r := &Result{}

	batchID := opts.BatchID
	if batchID != "" {
		log.Printf("Resuming batch %s", batchID)
	} else {
		items, err := c.db.GetUnprocessed(opts.Limit)
		if err != nil {
			return nil, fmt.Errorf("selecting unprocessed items: %w", err)
		}
		if len(items) == 0 {
			log.Println("No unprocessed content to classify")
			return r, nil
		}

		requests := make([]llm.BatchRequest, 0, len(items))
		totalChars := 0
		for _, item := range items {
			requests = append(requests, llm.BatchRequest{
				CustomID:  item.ID,
				Prompt:    buildAnalysisPrompt(item),
				MaxTokens: c.maxTokens,
			})
			if item.Content != nil {
				totalChars += len(*item.Content)
			}
		}

		log.Printf("Classifying %d items (~%d input tokens)", len(items), totalChars/4)
		if len(items) >= c.threshold && !opts.Yes {
			if !c.confirm(fmt.Sprintf("Submit batch of %d requests? [y/N]: ", len(items))) {
				return nil, fmt.Errorf("aborted")
			}
		}

		log.Printf("Submitting batch of %d requests...", len(requests))
		batch, err := c.batch.Submit(ctx, requests)
		if err != nil {
			return nil, fmt.Errorf("submitting batch: %w", err)
		}
		batchID = batch.ID
		r.Submitted = len(requests)
		log.Printf("Batch created: %s", batchID)
	}
	r.BatchID = batchID

	batch, err := c.batch.PollUntilEnded(ctx, batchID, c.interval)
	if err != nil {
		return r, err
	}

	results, err := c.batch.Results(ctx, batch)
	if err != nil {
		return r, fmt.Errorf("fetching batch results: %w", err)
	}

	for _, res := range results {
		if !res.Succeeded() {
			r.Errors++
			continue
		}
		if err := c.storeResult(res.CustomID, res.Text); err != nil {
			log.Printf("Result for %s not stored: %v", res.CustomID, err)
			r.Errors++
			continue
		}
		r.Updated++
	}

	log.Printf("Classification complete: %d updated, %d errors", r.Updated, r.Errors)
	return r, nil
}

func buildAnalysisPrompt(item database.RawItem) string {
	content := ""
	if item.Content != nil {
		content = *item.Content
	}
	if content == "" && item.Title != nil {
		content = *item.Title
	}
	if len(content) > maxContentChars {
		content = content[:maxContentChars] + "..."
	}
	return fmt.Sprintf(analysisPrompt, content, item.SourceType, item.InfluencerName, strings.Join(Stages, ", "))
}

// analysis is the JSON object the model is asked to return.
type analysis struct {
	PrimaryStage      string   `json:"primary_stage"`
	SecondaryStages   []string `json:"secondary_stages"`
	KeyInsight        string   `json:"key_insight"`
	TacticalSteps     []string `json:"tactical_steps"`
	Keywords          []string `json:"keywords"`
	SituationExamples []string `json:"situation_examples"`
	BestQuote         string   `json:"best_quote"`
	RelevanceScore    int      `json:"relevance_score"`
}

func parseAnalysis(text string) (*analysis, error) {
	var a analysis
	if err := json.Unmarshal([]byte(llm.StripCodeFences(text)), &a); err != nil {
		return nil, fmt.Errorf("parsing analysis response: %w", err)
	}
	if a.KeyInsight == "" {
		return nil, fmt.Errorf("response missing key_insight")
	}
	if !validStage(a.PrimaryStage) {
		return nil, fmt.Errorf("unknown primary stage %q", a.PrimaryStage)
	}
	if a.RelevanceScore < 1 || a.RelevanceScore > 10 {
		return nil, fmt.Errorf("relevance score %d out of range", a.RelevanceScore)
	}

	// Secondary stages are optional color. Keep the valid ones, drop the rest.
	kept := a.SecondaryStages[:0]
	for _, s := range a.SecondaryStages {
		if validStage(s) {
			kept = append(kept, s)
		}
	}
	if len(kept) > 2 {
		kept = kept[:2]
	}
	a.SecondaryStages = kept
	return &a, nil
}

func validStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// storeResult parses one batch response and writes the insight under the
// same id as the raw item it came from. The item is marked processed only
// after the insight lands, so a failed write keeps it in the queue.
func (c *Classifier) storeResult(itemID, text string) error {
	a, err := parseAnalysis(text)
	if err != nil {
		return err
	}

	item, err := c.db.GetRawItem(itemID)
	if err != nil {
		return fmt.Errorf("loading raw item: %w", err)
	}
	if item == nil {
		return fmt.Errorf("raw item %s no longer exists", itemID)
	}

	in := &database.Insight{
		ID:                itemID,
		InfluencerSlug:    item.InfluencerSlug,
		InfluencerName:    item.InfluencerName,
		SourceType:        item.SourceType,
		SourceURL:         item.SourceURL,
		DateCollected:     collectedDate(item),
		PrimaryStage:      a.PrimaryStage,
		SecondaryStages:   a.SecondaryStages,
		KeyInsight:        a.KeyInsight,
		TacticalSteps:     a.TacticalSteps,
		Keywords:          a.Keywords,
		SituationExamples: a.SituationExamples,
		RelevanceScore:    a.RelevanceScore,
	}
	if a.BestQuote != "" {
		in.BestQuote = &a.BestQuote
	}

	if err := c.db.UpsertInsight(in); err != nil {
		return fmt.Errorf("storing insight: %w", err)
	}
	return c.db.MarkProcessed(itemID)
}

func collectedDate(item *database.RawItem) string {
	if item.CollectedAt != nil && len(*item.CollectedAt) >= 10 {
		return (*item.CollectedAt)[:10]
	}
	return time.Now().Format("2006-01-02")
}
