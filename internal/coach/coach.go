package coach

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/SalesCoach/internal/config"
	"github.com/TobiSchelling/SalesCoach/internal/database"
	"github.com/TobiSchelling/SalesCoach/internal/llm"
)

const coachInstruction = `You are an expert sales coach who synthesizes wisdom from top sales leaders to provide actionable advice.

Your role is to:
1. Understand the salesperson's specific situation
2. Draw from the provided expert insights to craft personalized advice
3. Give concrete, actionable steps (not generic platitudes)
4. Reference which expert's approach you're drawing from
5. Keep advice focused and practical (3-5 key points)

Format your response with:
- A brief acknowledgment of their situation
- Numbered actionable recommendations
- Brief attribution to the relevant experts`

const coachQuestion = `A salesperson describes their situation:

"%s"

Based on these expert insights from top sales leaders:

%s

Provide specific, actionable coaching advice. Reference which expert's wisdom you're drawing from when relevant.`

const leadersInstruction = `You are a sales leadership coach specializing in advice for VP Sales and CRO roles.
You synthesize wisdom from top sales leaders to provide actionable advice for sales executives.
Focus on leadership, team management, strategy, and organizational decisions, not individual deal tactics.
Reference which expert's wisdom you're drawing from.`

const leadersQuestion = `A sales leader asks:

"%s"

Based on these leadership insights:

%s

Provide specific, actionable advice for a VP Sales or CRO.`

const noMatchesText = "No matching insights found. Try different keywords or ask about a specific deal stage like discovery, negotiation or closing."

const noLeaderMatchesText = "No VP/CRO leadership content found for this query. Try broader keywords or a lower confidence threshold."

// Answer is synthesized advice plus the insights it drew from. Sources is
// empty exactly when retrieval found nothing, in which case Text carries a
// canned suggestion and no model call was made.
type Answer struct {
	Text    string
	Sources []database.Insight
}

// AskOptions narrow the retrieval step of a question.
type AskOptions struct {
	// Leaders restricts candidates to VP/CRO-classified insights.
	Leaders bool
	// Stage filters candidates by primary deal stage.
	Stage string
	// Influencer filters candidates by influencer name substring.
	Influencer string
	// MinConfidence overrides the configured audience confidence floor in
	// leaders mode. Zero keeps the default.
	MinConfidence float64
	// Limit overrides the configured candidate cap. Zero keeps the default.
	Limit int
}

// Coach answers sales questions from the collected knowledge base: a
// full-text search picks a handful of candidate insights and one completion
// call turns them into advice with attribution.
type Coach struct {
	db            *database.DB
	provider      llm.Provider
	candidates    int
	minConfidence float64
	minScore      int
	maxTokens     int
}

// New creates a coach using the given provider for synthesis. Candidates
// inherit the export relevance floor: low-scoring insights stay searchable
// but never feed synthesized advice.
func New(cfg *config.Config, db *database.DB, provider llm.Provider) *Coach {
	return &Coach{
		db:            db,
		provider:      provider,
		candidates:    cfg.Coach.Candidates,
		minConfidence: cfg.Coach.MinConfidence,
		minScore:      cfg.Export.MinScore,
		maxTokens:     cfg.Coach.MaxTokens,
	}
}

// Ask retrieves matching insights and synthesizes advice for the question.
// Zero matches short-circuit to a no-results answer without touching the
// model.
func (c *Coach) Ask(ctx context.Context, question string, opts AskOptions) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = c.candidates
	}

	filters := database.SearchFilters{
		Stage:      opts.Stage,
		Influencer: opts.Influencer,
		MinScore:   c.minScore,
	}
	if opts.Leaders {
		minConf := opts.MinConfidence
		if minConf <= 0 {
			minConf = c.minConfidence
		}
		filters = database.SearchFilters{
			MinScore:      c.minScore,
			LeadersOnly:   true,
			MinConfidence: minConf,
		}
	}

	candidates, err := c.db.Search(question, limit, filters)
	if err != nil {
		return nil, fmt.Errorf("searching insights: %w", err)
	}

	if len(candidates) == 0 {
		if opts.Leaders {
			return &Answer{Text: noLeaderMatchesText}, nil
		}
		return &Answer{Text: noMatchesText}, nil
	}

	if c.provider == nil || !c.provider.IsConfigured() {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	log.Printf("Synthesizing advice from %d insights", len(candidates))
	text, err := c.provider.Generate(ctx, buildPrompt(question, candidates, opts.Leaders), c.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating advice: %w", err)
	}

	return &Answer{Text: strings.TrimSpace(text), Sources: candidates}, nil
}

// buildPrompt folds the fixed instruction, the question and the retrieved
// context into one completion prompt.
func buildPrompt(question string, candidates []database.Insight, leaders bool) string {
	if leaders {
		return leadersInstruction + "\n\n" + fmt.Sprintf(leadersQuestion, question, leadersContext(candidates))
	}
	return coachInstruction + "\n\n" + fmt.Sprintf(coachQuestion, question, coachContext(candidates))
}

// coachContext renders candidates as attribution-ready blocks: who said it,
// at which stage, what to do with it.
func coachContext(candidates []database.Insight) string {
	var parts []string
	for _, in := range candidates {
		part := fmt.Sprintf("**%s** (%s):\nInsight: %s", in.InfluencerName, in.PrimaryStage, in.KeyInsight)
		if len(in.TacticalSteps) > 0 {
			part += "\nSteps: " + strings.Join(in.TacticalSteps, ", ")
		}
		if len(in.SituationExamples) > 0 {
			part += "\nWhen to use: " + strings.Join(in.SituationExamples, ", ")
		}
		if in.BestQuote != nil && *in.BestQuote != "" {
			part += fmt.Sprintf("\nKey quote: %q", *in.BestQuote)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func leadersContext(candidates []database.Insight) string {
	var parts []string
	for _, in := range candidates {
		part := fmt.Sprintf("**%s** (%s): %s", in.InfluencerName, in.PrimaryStage, in.KeyInsight)
		if len(in.TacticalSteps) > 0 {
			part += "\nSteps: " + strings.Join(in.TacticalSteps, ", ")
		}
		if in.BestQuote != nil && *in.BestQuote != "" {
			part += fmt.Sprintf("\nQuote: %q", *in.BestQuote)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
