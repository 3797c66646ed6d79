package audience

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

// Roles is the fixed audience-role taxonomy. vp_sales and cro are
// interchangeable in practice; the prompt tells the model to pick one.
var Roles = []string{"vp_sales", "cro", "director", "manager", "ae", "sdr", "general"}

const roleDescriptions = `- vp_sales: VP Sales / CRO. Managing teams, pipeline strategy, forecasting, coaching reps, board reporting, org design, hiring
- cro: Chief Revenue Officer. Same as vp_sales (use vp_sales OR cro, never combine them)
- director: Sales Director. First-line leadership, deal coaching, team enablement
- manager: Sales Manager. Rep development, frontline coaching, hiring
- ae: Account Executive. Running deals, discovery calls, demos, negotiations, closing
- sdr: SDR / BDR. Prospecting, cold outreach, booking meetings, lead qualification
- general: Applicable across all roles equally`

const classificationPrompt = `Classify who this sales insight is most useful for.
The question is: "Who would act on this advice?"

INSIGHT: %s
TACTICAL STEPS: %s
KEYWORDS: %s
SITUATION EXAMPLES: %s
DEAL STAGE: %s

TARGET AUDIENCE ROLES:
%s

Respond in JSON only (no markdown):
{"target_audience": ["role1", "role2"], "confidence": 0.85, "reasoning": "One sentence why"}

Rules:
- Return 1-3 roles (most specific to least)
- Confidence 0.0-1.0 reflects how clearly this targets a specific audience vs being general
- If content could apply to anyone, return ["general"] with lower confidence
- "vp_sales" and "cro" are for content about BEING a leader, not selling TO leaders`

// The classification response is one short JSON object.
const maxTokens = 200

// Result summarizes an audience classification run.
type Result struct {
	Submitted int
	Updated   int
	Errors    int
	BatchID   string
}

// Options control an audience classification run.
type Options struct {
	// BatchID resumes polling an already-submitted batch.
	BatchID string
	// Limit caps how many insights are classified. Zero means all.
	Limit int
	// Yes skips the confirmation prompt for large batches.
	Yes bool
}

// Classifier assigns target audience roles to stored insights. It writes
// only the three audience columns, so it can run concurrently with
// re-ingestion of the same rows.
type Classifier struct {
	db        *database.DB
	batch     *llm.BatchClient
	threshold int
	interval  time.Duration
	confirm   func(prompt string) bool
}

// NewClassifier creates an audience classifier from the configured model
// settings.
func NewClassifier(cfg *config.Config, db *database.DB) *Classifier {
	cl := cfg.Classification
	return &Classifier{
		db:        db,
		batch:     llm.NewBatchClient(cl.Model, cl.APIKeyEnv),
		threshold: cl.BatchThreshold,
		interval:  time.Duration(cl.PollInterval) * time.Second,
		confirm:   llm.ConfirmStdin,
	}
}

// Run selects insights without a target audience, classifies them in one
// batch and writes the audience columns back.
func (c *Classifier) Run(ctx context.Context, opts Options) (*Result, error) {
	if !c.batch.IsConfigured() {
		return nil, fmt.Errorf("Anthropic API key not configured")
	}

	r := &Result{}

	batchID := opts.BatchID
	if batchID != "" {
		log.Printf("Resuming batch %s", batchID)
	} else {
		insights, err := c.db.GetUnclassified(opts.Limit)
		if err != nil {
			return nil, fmt.Errorf("selecting unclassified insights: %w", err)
		}
		if len(insights) == 0 {
			log.Println("All insights already classified")
			return r, nil
		}
		log.Printf("Found %d unclassified insights", len(insights))

		estCost := float64(len(insights)*400)*0.40/1e6 + float64(len(insights)*80)*2.00/1e6
		log.Printf("Estimated cost: $%.2f (batch pricing)", estCost)

		if len(insights) >= c.threshold && !opts.Yes {
			if !c.confirm(fmt.Sprintf("Submit batch of %d requests? [y/N]: ", len(insights))) {
				return nil, fmt.Errorf("aborted")
			}
		}

		requests := make([]llm.BatchRequest, 0, len(insights))
		for _, in := range insights {
			requests = append(requests, llm.BatchRequest{
				CustomID:  in.ID,
				Prompt:    buildClassificationPrompt(in),
				MaxTokens: maxTokens,
			})
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
		parsed, err := parseClassification(res.Text)
		if err != nil {
			log.Printf("Parse error for %s: %v", res.CustomID, err)
			r.Errors++
			continue
		}
		if err := c.db.SetAudience(res.CustomID, parsed.TargetAudience, parsed.Confidence, parsed.Reasoning); err != nil {
			log.Printf("Audience update for %s failed: %v", res.CustomID, err)
			r.Errors++
			continue
		}
		r.Updated++
	}

	log.Printf("Classification complete: %d updated, %d errors", r.Updated, r.Errors)
	return r, nil
}

func buildClassificationPrompt(in database.Insight) string {
	return fmt.Sprintf(classificationPrompt,
		in.KeyInsight,
		strings.Join(in.TacticalSteps, ", "),
		strings.Join(in.Keywords, ", "),
		strings.Join(in.SituationExamples, ", "),
		in.PrimaryStage,
		roleDescriptions,
	)
}

// classification is the JSON object the model is asked to return.
type classification struct {
	TargetAudience []string `json:"target_audience"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
}

func parseClassification(text string) (*classification, error) {
	var cl classification
	if err := json.Unmarshal([]byte(llm.StripCodeFences(text)), &cl); err != nil {
		return nil, fmt.Errorf("parsing classification response: %w", err)
	}
	if len(cl.TargetAudience) == 0 {
		return nil, fmt.Errorf("response missing target_audience")
	}
	for _, role := range cl.TargetAudience {
		if !validRole(role) {
			return nil, fmt.Errorf("unknown audience role %q", role)
		}
	}
	if len(cl.TargetAudience) > 3 {
		cl.TargetAudience = cl.TargetAudience[:3]
	}
	if cl.Confidence < 0 || cl.Confidence > 1 {
		return nil, fmt.Errorf("confidence %.2f out of range", cl.Confidence)
	}
	return &cl, nil
}

func validRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}
