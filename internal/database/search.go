package database

import (
	"strings"
)

const (
	// minTokenLength drops noise tokens before they reach the FTS engine.
	minTokenLength = 2

	// DefaultLeaderConfidence gates the leadership view of search results.
	DefaultLeaderConfidence = 0.7
)

// buildMatchQuery turns free text into an FTS5 MATCH expression. Each token
// is quoted so user input can't inject FTS5 syntax, and tokens are joined
// with OR: recall over precision, downstream consumers rerank anyway.
// Returns "" when no usable tokens remain.
func buildMatchQuery(query string) string {
	var tokens []string
	for _, w := range strings.Fields(query) {
		w = strings.Trim(w, `"`)
		if len(w) < minTokenLength {
			continue
		}
		tokens = append(tokens, `"`+w+`"`)
	}
	return strings.Join(tokens, " OR ")
}

// Search runs a ranked full-text query over insights. An empty query (no
// usable tokens) returns no results rather than an error or a full scan.
// Filters narrow the ranked set without disturbing rank order.
func (db *DB) Search(query string, limit int, f SearchFilters) ([]Insight, error) {
	match := buildMatchQuery(query)
	if match == "" {
		return nil, nil
	}

	sqlStr := `SELECT ` + prefixedInsightColumns + `
		FROM insights_fts fts
		JOIN insights i ON i.rowid = fts.rowid`
	conditions := []string{"insights_fts MATCH ?"}
	args := []any{match}

	if f.Stage != "" {
		conditions = append(conditions, "i.primary_stage = ?")
		args = append(args, f.Stage)
	}
	if f.Influencer != "" {
		conditions = append(conditions, "i.influencer_name LIKE '%' || ? || '%'")
		args = append(args, f.Influencer)
	}
	if f.ComponentID != "" {
		sqlStr += " JOIN insight_methodology_tags t ON t.insight_id = i.id"
		conditions = append(conditions, "t.component_id = ?")
		args = append(args, f.ComponentID)
	}
	if f.MinScore > 0 {
		conditions = append(conditions, "i.relevance_score >= ?")
		args = append(args, f.MinScore)
	}
	if f.LeadersOnly {
		// Unclassified insights never match: their confidence is null.
		conditions = append(conditions,
			"i.audience_confidence >= ?",
			`(i.target_audience LIKE '%"vp_sales"%' OR i.target_audience LIKE '%"cro"%')`)
		args = append(args, f.MinConfidence)
	}

	sqlStr += " WHERE " + strings.Join(conditions, " AND ")
	sqlStr += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInsights(rows)
}

// SearchLeaders runs a full-text query restricted to insights classified for
// a sales-leadership audience: target_audience intersects {vp_sales, cro}
// and audience_confidence meets the threshold.
func (db *DB) SearchLeaders(query string, limit int, minConfidence float64) ([]Insight, error) {
	return db.Search(query, limit, SearchFilters{
		LeadersOnly:   true,
		MinConfidence: minConfidence,
	})
}

// prefixedInsightColumns is insightColumns qualified with the insights alias
// used in search joins, where bare names would be ambiguous.
const prefixedInsightColumns = `i.id, i.influencer_slug, i.influencer_name, i.source_type, i.source_url,
	i.date_collected, i.primary_stage, i.secondary_stages, i.key_insight, i.tactical_steps,
	i.keywords, i.situation_examples, i.best_quote, i.relevance_score,
	i.target_audience, i.audience_confidence, i.audience_reasoning, i.created_at, i.updated_at`
