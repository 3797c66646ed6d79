package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS insights (
    id TEXT PRIMARY KEY,
    influencer_slug TEXT NOT NULL,
    influencer_name TEXT NOT NULL,
    source_type TEXT NOT NULL,
    source_url TEXT NOT NULL,
    date_collected TEXT NOT NULL,
    primary_stage TEXT NOT NULL,
    secondary_stages TEXT,
    key_insight TEXT NOT NULL,
    tactical_steps TEXT,
    keywords TEXT,
    situation_examples TEXT,
    best_quote TEXT,
    relevance_score INTEGER,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE VIRTUAL TABLE IF NOT EXISTS insights_fts USING fts5(
    id, influencer_name, primary_stage, key_insight,
    tactical_steps, keywords, situation_examples, best_quote,
    content='insights', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS insights_ai AFTER INSERT ON insights BEGIN
    INSERT INTO insights_fts(rowid, id, influencer_name, primary_stage,
        key_insight, tactical_steps, keywords, situation_examples, best_quote)
    VALUES (new.rowid, new.id, new.influencer_name, new.primary_stage,
        new.key_insight, new.tactical_steps, new.keywords,
        new.situation_examples, new.best_quote);
END;

CREATE TRIGGER IF NOT EXISTS insights_ad AFTER DELETE ON insights BEGIN
    INSERT INTO insights_fts(insights_fts, rowid, id, influencer_name,
        primary_stage, key_insight, tactical_steps, keywords,
        situation_examples, best_quote)
    VALUES ('delete', old.rowid, old.id, old.influencer_name,
        old.primary_stage, old.key_insight, old.tactical_steps,
        old.keywords, old.situation_examples, old.best_quote);
END;

CREATE TRIGGER IF NOT EXISTS insights_au AFTER UPDATE ON insights BEGIN
    INSERT INTO insights_fts(insights_fts, rowid, id, influencer_name,
        primary_stage, key_insight, tactical_steps, keywords,
        situation_examples, best_quote)
    VALUES ('delete', old.rowid, old.id, old.influencer_name,
        old.primary_stage, old.key_insight, old.tactical_steps,
        old.keywords, old.situation_examples, old.best_quote);
    INSERT INTO insights_fts(rowid, id, influencer_name, primary_stage,
        key_insight, tactical_steps, keywords, situation_examples, best_quote)
    VALUES (new.rowid, new.id, new.influencer_name, new.primary_stage,
        new.key_insight, new.tactical_steps, new.keywords,
        new.situation_examples, new.best_quote);
END;

CREATE TABLE IF NOT EXISTS methodologies (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    author TEXT,
    source TEXT,
    category TEXT,
    overview TEXT NOT NULL,
    core_philosophy TEXT,
    when_to_use TEXT,
    strengths TEXT,
    limitations TEXT,
    deal_stages TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS methodology_components (
    id TEXT PRIMARY KEY,
    methodology_id TEXT NOT NULL REFERENCES methodologies(id),
    name TEXT NOT NULL,
    abbreviation TEXT,
    sequence_order INTEGER,
    description TEXT NOT NULL,
    how_to_execute TEXT,
    common_mistakes TEXT,
    example_scenario TEXT,
    keywords TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS insight_methodology_tags (
    insight_id TEXT NOT NULL REFERENCES insights(id),
    component_id TEXT NOT NULL REFERENCES methodology_components(id),
    confidence REAL DEFAULT 0.0,
    tagged_by TEXT DEFAULT 'claude',
    created_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (insight_id, component_id)
);

CREATE INDEX IF NOT EXISTS idx_insights_influencer ON insights(influencer_slug);
CREATE INDEX IF NOT EXISTS idx_insights_stage ON insights(primary_stage);
CREATE INDEX IF NOT EXISTS idx_insights_source_type ON insights(source_type);
CREATE INDEX IF NOT EXISTS idx_insights_relevance ON insights(relevance_score DESC);
CREATE INDEX IF NOT EXISTS idx_tags_component ON insight_methodology_tags(component_id);
CREATE INDEX IF NOT EXISTS idx_tags_insight ON insight_methodology_tags(insight_id);
CREATE INDEX IF NOT EXISTS idx_components_methodology ON methodology_components(methodology_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "raw item collection queue",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS raw_items (
    id TEXT PRIMARY KEY,
    influencer_slug TEXT NOT NULL,
    influencer_name TEXT NOT NULL,
    source_type TEXT NOT NULL,
    source_url TEXT UNIQUE NOT NULL,
    title TEXT,
    content TEXT,
    content_fetched INTEGER DEFAULT 0,
    processed INTEGER DEFAULT 0,
    collected_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_raw_items_source ON raw_items(source_type);
CREATE INDEX IF NOT EXISTS idx_raw_items_processed ON raw_items(processed);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
