package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// UpsertMethodology inserts or replaces a methodology record. Seeding is
// re-runnable, so replace semantics are fine for this read-mostly table.
func (db *DB) UpsertMethodology(m *Methodology) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO methodologies
			(id, name, author, source, category, overview, core_philosophy,
			 when_to_use, strengths, limitations, deal_stages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Author, m.Source, m.Category, m.Overview,
		m.CorePhilosophy, m.WhenToUse, m.Strengths, m.Limitations,
		marshalList(m.DealStages),
	)
	if err != nil {
		return fmt.Errorf("upserting methodology %s: %w", m.ID, err)
	}
	return nil
}

// UpsertComponent inserts or replaces a methodology component record.
func (db *DB) UpsertComponent(c *MethodologyComponent) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO methodology_components
			(id, methodology_id, name, abbreviation, sequence_order,
			 description, how_to_execute, common_mistakes, example_scenario, keywords)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MethodologyID, c.Name, c.Abbreviation, c.SequenceOrder,
		c.Description, c.HowToExecute, c.CommonMistakes, c.ExampleScenario,
		marshalList(c.Keywords),
	)
	if err != nil {
		return fmt.Errorf("upserting component %s: %w", c.ID, err)
	}
	return nil
}

// TagMethodology records that an insight exemplifies a methodology
// component. Re-tagging the same pair updates confidence in place.
func (db *DB) TagMethodology(insightID, componentID string, confidence float64, taggedBy string) error {
	_, err := db.conn.Exec(
		`INSERT INTO insight_methodology_tags (insight_id, component_id, confidence, tagged_by)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(insight_id, component_id) DO UPDATE SET
			confidence = excluded.confidence,
			tagged_by = excluded.tagged_by`,
		insightID, componentID, confidence, taggedBy,
	)
	if err != nil {
		return fmt.Errorf("tagging insight %s with %s: %w", insightID, componentID, err)
	}
	return nil
}

// GetMethodologyTree returns all methodologies with their components nested,
// components in sequence order.
func (db *DB) GetMethodologyTree() ([]Methodology, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, author, source, category, overview, core_philosophy,
			when_to_use, strengths, limitations, deal_stages, created_at
		FROM methodologies ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methodologies []Methodology
	for rows.Next() {
		var (
			m      Methodology
			stages sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Author, &m.Source, &m.Category,
			&m.Overview, &m.CorePhilosophy, &m.WhenToUse, &m.Strengths,
			&m.Limitations, &stages, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.DealStages = unmarshalList(stages)
		methodologies = append(methodologies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range methodologies {
		components, err := db.getComponents(methodologies[i].ID)
		if err != nil {
			return nil, err
		}
		methodologies[i].Components = components
	}
	return methodologies, nil
}

func (db *DB) getComponents(methodologyID string) ([]MethodologyComponent, error) {
	rows, err := db.conn.Query(
		`SELECT id, methodology_id, name, abbreviation, sequence_order,
			description, how_to_execute, common_mistakes, example_scenario, keywords
		FROM methodology_components WHERE methodology_id = ?
		ORDER BY sequence_order`, methodologyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var components []MethodologyComponent
	for rows.Next() {
		var (
			c        MethodologyComponent
			order    sql.NullInt64
			keywords sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.MethodologyID, &c.Name, &c.Abbreviation,
			&order, &c.Description, &c.HowToExecute, &c.CommonMistakes,
			&c.ExampleScenario, &keywords); err != nil {
			return nil, err
		}
		c.SequenceOrder = int(order.Int64)
		c.Keywords = unmarshalList(keywords)
		components = append(components, c)
	}
	return components, rows.Err()
}

// GetComponentIDs returns the set of known methodology component ids, used
// to validate tags coming back from classification.
func (db *DB) GetComponentIDs() (map[string]bool, error) {
	rows, err := db.conn.Query("SELECT id FROM methodology_components")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// GetInsightsByMethodology returns insights tagged with any component of a
// methodology at or above the confidence floor, strongest tags first.
func (db *DB) GetInsightsByMethodology(methodologyID string, minConfidence float64, limit int) ([]Insight, error) {
	rows, err := db.conn.Query(
		`SELECT DISTINCT `+prefixedInsightColumns+`
		FROM insights i
		JOIN insight_methodology_tags t ON t.insight_id = i.id
		JOIN methodology_components mc ON mc.id = t.component_id
		WHERE mc.methodology_id = ?
		  AND t.confidence >= ?
		ORDER BY t.confidence DESC
		LIMIT ?`,
		methodologyID, minConfidence, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInsights(rows)
}

// GetTagsForInsights returns methodology tags grouped by insight id. Only
// tags at or above 0.5 confidence are surfaced.
func (db *DB) GetTagsForInsights(insightIDs []string) (map[string][]MethodologyTag, error) {
	if len(insightIDs) == 0 {
		return map[string][]MethodologyTag{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(insightIDs)), ",")
	args := make([]any, len(insightIDs))
	for i, id := range insightIDs {
		args[i] = id
	}

	rows, err := db.conn.Query(
		`SELECT t.insight_id, t.component_id, m.name, mc.name, t.confidence, t.tagged_by
		FROM insight_methodology_tags t
		JOIN methodology_components mc ON mc.id = t.component_id
		JOIN methodologies m ON m.id = mc.methodology_id
		WHERE t.insight_id IN (`+placeholders+`)
		  AND t.confidence >= 0.5
		ORDER BY t.confidence DESC`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]MethodologyTag)
	for rows.Next() {
		var tag MethodologyTag
		if err := rows.Scan(&tag.InsightID, &tag.ComponentID, &tag.Methodology,
			&tag.Component, &tag.Confidence, &tag.TaggedBy); err != nil {
			return nil, err
		}
		result[tag.InsightID] = append(result[tag.InsightID], tag)
	}
	return result, rows.Err()
}

// GetUntagged returns insights that have no methodology tags yet, oldest
// first.
func (db *DB) GetUntagged(limit int) ([]Insight, error) {
	query := `SELECT ` + prefixedInsightColumns + `
		FROM insights i
		LEFT JOIN insight_methodology_tags t ON i.id = t.insight_id
		WHERE t.insight_id IS NULL
		ORDER BY i.created_at, i.id`
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
