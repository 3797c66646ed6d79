package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/SalesCoach/internal/audience"
	"github.com/TobiSchelling/SalesCoach/internal/classify"
	"github.com/TobiSchelling/SalesCoach/internal/collect"
	"github.com/TobiSchelling/SalesCoach/internal/config"
	"github.com/TobiSchelling/SalesCoach/internal/database"
	"github.com/TobiSchelling/SalesCoach/internal/fetch"
	"github.com/TobiSchelling/SalesCoach/internal/tagging"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name     string
	Summary  string
	Duration time.Duration
	Err      error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps []StepResult
}

// Failed reports whether any step errored.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Options control a pipeline run.
type Options struct {
	Source string // "", "linkedin" or "youtube"
	Limit  int    // cap per classification stage, 0 = all
	Yes    bool   // skip large-batch confirmations
}

// Pipeline orchestrates the 5-step ingestion pipeline.
type Pipeline struct {
	cfg *config.Config
	db  *database.DB
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	return &Pipeline{cfg: cfg, db: db}
}

// Run executes the full pipeline. Classification failures stop the chain;
// the audience and tagging passes need classified insights to work on.
func (p *Pipeline) Run(ctx context.Context, opts Options) *Result {
	r := &Result{}

	// Step 1: Collect
	step := p.runCollect(ctx, opts.Source)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Fetch content
	step = p.runFetch(ctx)
	r.Steps = append(r.Steps, step)

	// Step 3: Classify
	step = p.runClassify(ctx, opts)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 4: Audience
	step = p.runAudience(ctx, opts)
	r.Steps = append(r.Steps, step)

	// Step 5: Tag methodologies
	step = p.runTag(ctx, opts)
	r.Steps = append(r.Steps, step)

	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}

	stats, err := p.db.GetStats()
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: err})
		return r
	}

	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] %d raw items already in DB", stats.RawItems),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] %d items need content fetching", stats.PendingFetch),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Classify",
		Summary: fmt.Sprintf("[dry-run] %d items need classification", stats.PendingClassify),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Audience",
		Summary: fmt.Sprintf("[dry-run] %d insights need audience classification", stats.TotalInsights-stats.AudienceClassified),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Tag",
		Summary: fmt.Sprintf("[dry-run] %d insights need methodology tags", stats.TotalInsights-stats.TaggedInsights),
	})

	return r
}

func (p *Pipeline) runCollect(ctx context.Context, source string) StepResult {
	log.Println("Step 1/5: Collecting content...")
	start := time.Now()
	collector := collect.NewCollector(p.cfg, p.db)
	result := collector.Collect(ctx, source)
	return StepResult{
		Name:     "Collect",
		Summary:  fmt.Sprintf("Found %d new items (%d total, %d duplicates)", result.NewItems, result.Found, result.Duplicates),
		Duration: time.Since(start),
	}
}

func (p *Pipeline) runFetch(ctx context.Context) StepResult {
	log.Println("Step 2/5: Fetching full content...")
	start := time.Now()
	fetcher := fetch.NewContentFetcher(p.cfg, p.db)
	result := fetcher.FetchMissingContent(ctx)
	return StepResult{
		Name:     "Fetch",
		Summary:  fmt.Sprintf("Fetched %d items, %d failed", result.Fetched, result.Failed),
		Duration: time.Since(start),
	}
}

func (p *Pipeline) runClassify(ctx context.Context, opts Options) StepResult {
	log.Println("Step 3/5: Classifying content...")
	start := time.Now()
	classifier := classify.NewClassifier(p.cfg, p.db)
	result, err := classifier.Run(ctx, classify.Options{Limit: opts.Limit, Yes: opts.Yes})
	if err != nil {
		return StepResult{Name: "Classify", Duration: time.Since(start), Err: err}
	}
	return StepResult{
		Name:     "Classify",
		Summary:  fmt.Sprintf("Classified %d items: %d insights, %d errors", result.Submitted, result.Updated, result.Errors),
		Duration: time.Since(start),
	}
}

func (p *Pipeline) runAudience(ctx context.Context, opts Options) StepResult {
	log.Println("Step 4/5: Classifying target audience...")
	start := time.Now()
	classifier := audience.NewClassifier(p.cfg, p.db)
	result, err := classifier.Run(ctx, audience.Options{Limit: opts.Limit, Yes: opts.Yes})
	if err != nil {
		return StepResult{Name: "Audience", Duration: time.Since(start), Err: err}
	}
	return StepResult{
		Name:     "Audience",
		Summary:  fmt.Sprintf("Classified %d insights, %d errors", result.Updated, result.Errors),
		Duration: time.Since(start),
	}
}

func (p *Pipeline) runTag(ctx context.Context, opts Options) StepResult {
	log.Println("Step 5/5: Tagging methodologies...")
	start := time.Now()
	tagger := tagging.NewTagger(p.cfg, p.db)
	result, err := tagger.Run(ctx, tagging.Options{Limit: opts.Limit, Yes: opts.Yes})
	if err != nil {
		return StepResult{Name: "Tag", Duration: time.Since(start), Err: err}
	}
	return StepResult{
		Name:     "Tag",
		Summary:  fmt.Sprintf("Tagged %d insights with %d tags, %d errors", result.InsightsTagged, result.TagsWritten, result.Errors),
		Duration: time.Since(start),
	}
}
