package database

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// insightColumns is the full column list scanned by scanInsight, in order.
const insightColumns = `id, influencer_slug, influencer_name, source_type, source_url,
	date_collected, primary_stage, secondary_stages, key_insight, tactical_steps,
	keywords, situation_examples, best_quote, relevance_score,
	target_audience, audience_confidence, audience_reasoning, created_at, updated_at`

// ContentID derives the stable record id from the canonical source URL.
// Raw items and the insights they produce share this id, so re-collecting
// the same URL always lands on the same row.
func ContentID(sourceURL string) string {
	sum := md5.Sum([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// UpsertInsight inserts an insight or updates the base fields of an existing
// row with the same id. The update arm names only the columns owned by the
// ingestion path: audience columns and methodology tags belong to their own
// classification passes and are never touched here, so re-ingesting a record
// cannot clobber a later pass's work.
func (db *DB) UpsertInsight(in *Insight) error {
	_, err := db.conn.Exec(
		`INSERT INTO insights (
			id, influencer_slug, influencer_name, source_type, source_url,
			date_collected, primary_stage, secondary_stages, key_insight,
			tactical_steps, keywords, situation_examples, best_quote,
			relevance_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			influencer_name = excluded.influencer_name,
			primary_stage = excluded.primary_stage,
			secondary_stages = excluded.secondary_stages,
			key_insight = excluded.key_insight,
			tactical_steps = excluded.tactical_steps,
			keywords = excluded.keywords,
			situation_examples = excluded.situation_examples,
			best_quote = excluded.best_quote,
			relevance_score = excluded.relevance_score,
			updated_at = datetime('now')`,
		in.ID, in.InfluencerSlug, in.InfluencerName, in.SourceType, in.SourceURL,
		in.DateCollected, in.PrimaryStage, marshalList(in.SecondaryStages),
		in.KeyInsight, marshalList(in.TacticalSteps), marshalList(in.Keywords),
		marshalList(in.SituationExamples), in.BestQuote, in.RelevanceScore,
	)
	if err != nil {
		return fmt.Errorf("upserting insight %s: %w", in.ID, err)
	}
	return nil
}

// SetAudience writes the audience classification for an insight. This is the
// only writer of the audience columns.
func (db *DB) SetAudience(insightID string, roles []string, confidence float64, reasoning string) error {
	_, err := db.conn.Exec(
		`UPDATE insights SET
			target_audience = ?,
			audience_confidence = ?,
			audience_reasoning = ?,
			updated_at = datetime('now')
		WHERE id = ?`,
		marshalList(roles), confidence, reasoning, insightID,
	)
	if err != nil {
		return fmt.Errorf("setting audience for %s: %w", insightID, err)
	}
	return nil
}

// GetInsight returns a single insight by id, or nil if it doesn't exist.
func (db *DB) GetInsight(insightID string) (*Insight, error) {
	row := db.conn.QueryRow(
		"SELECT "+insightColumns+" FROM insights WHERE id = ?", insightID,
	)
	in, err := scanInsight(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

// GetUnclassified returns insights whose audience columns are still null,
// oldest first. The stable ordering keeps batch correlation deterministic
// across runs.
func (db *DB) GetUnclassified(limit int) ([]Insight, error) {
	query := "SELECT " + insightColumns + ` FROM insights
		WHERE target_audience IS NULL ORDER BY created_at, id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInsights(rows)
}

// GetInsightsForExport returns insights at or above the relevance threshold,
// newest collection date first.
func (db *DB) GetInsightsForExport(minScore int) ([]Insight, error) {
	rows, err := db.conn.Query(
		"SELECT "+insightColumns+` FROM insights
		WHERE relevance_score >= ? ORDER BY date_collected DESC, id`, minScore,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInsights(rows)
}

// GetRecentInsights returns the most recently updated insights.
func (db *DB) GetRecentInsights(limit int) ([]Insight, error) {
	rows, err := db.conn.Query(
		"SELECT "+insightColumns+" FROM insights ORDER BY updated_at DESC, id LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInsights(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInsight(row rowScanner) (*Insight, error) {
	var (
		in                Insight
		secondary, steps  sql.NullString
		keywords, samples sql.NullString
		audience          sql.NullString
		score             sql.NullInt64
	)
	if err := row.Scan(&in.ID, &in.InfluencerSlug, &in.InfluencerName,
		&in.SourceType, &in.SourceURL, &in.DateCollected, &in.PrimaryStage,
		&secondary, &in.KeyInsight, &steps, &keywords, &samples, &in.BestQuote,
		&score, &audience, &in.AudienceConfidence, &in.AudienceReasoning,
		&in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, err
	}
	in.SecondaryStages = unmarshalList(secondary)
	in.TacticalSteps = unmarshalList(steps)
	in.Keywords = unmarshalList(keywords)
	in.SituationExamples = unmarshalList(samples)
	in.TargetAudience = unmarshalList(audience)
	in.RelevanceScore = int(score.Int64)
	return &in, nil
}

func scanInsights(rows *sql.Rows) ([]Insight, error) {
	var insights []Insight
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		insights = append(insights, *in)
	}
	return insights, rows.Err()
}

// marshalList serializes a string list to JSON for storage. Empty lists are
// stored as NULL, matching how absent fields round-trip back to nil.
func marshalList(list []string) *string {
	if len(list) == 0 {
		return nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func unmarshalList(col sql.NullString) []string {
	if !col.Valid || col.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(col.String), &list); err != nil {
		return nil
	}
	return list
}
