package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/SalesCoach/internal/database"
)

// Columns is the export header, matching the downstream catalog schema the
// CSV gets imported into.
var Columns = []string{
	"Source ID",
	"Influencer",
	"Source Type",
	"Source URL",
	"Date Collected",
	"Primary Stage",
	"Secondary Stages",
	"Key Insight",
	"Tactical Steps",
	"Keywords",
	"Situation Examples",
	"Best Quote",
	"Relevance Score",
	"Target Audience",
	"Audience Confidence",
	"Audience Reasoning",
}

// WriteCSV writes all insights at or above minScore to w and reports how
// many rows were written. Low scorers are filtered here, not deleted; they
// stay queryable in the store.
func WriteCSV(db *database.DB, minScore int, w io.Writer) (int, error) {
	insights, err := db.GetInsightsForExport(minScore)
	if err != nil {
		return 0, fmt.Errorf("selecting insights: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	for i := range insights {
		if err := cw.Write(row(&insights[i])); err != nil {
			return 0, fmt.Errorf("writing row %s: %w", insights[i].ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing export: %w", err)
	}
	return len(insights), nil
}

// FileName returns the dated default export name.
func FileName(now time.Time) string {
	return "sales_wisdom_" + now.Format("20060102") + ".csv"
}

func row(in *database.Insight) []string {
	quote := ""
	if in.BestQuote != nil {
		quote = *in.BestQuote
	}
	confidence := ""
	if in.AudienceConfidence != nil {
		confidence = strconv.FormatFloat(*in.AudienceConfidence, 'f', 2, 64)
	}
	reasoning := ""
	if in.AudienceReasoning != nil {
		reasoning = *in.AudienceReasoning
	}

	return []string{
		in.ID,
		in.InfluencerName,
		in.SourceType,
		in.SourceURL,
		dateOnly(in.DateCollected),
		in.PrimaryStage,
		strings.Join(in.SecondaryStages, ", "),
		in.KeyInsight,
		bullets(in.TacticalSteps),
		strings.Join(in.Keywords, ", "),
		bullets(in.SituationExamples),
		quote,
		strconv.Itoa(in.RelevanceScore),
		strings.Join(in.TargetAudience, ", "),
		confidence,
		reasoning,
	}
}

// bullets renders a list one item per line for long-text import fields.
func bullets(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(item)
	}
	return b.String()
}

func dateOnly(date string) string {
	if len(date) > 10 {
		return date[:10]
	}
	return date
}
