package database

import "testing"

func seedTestMethodology(t *testing.T, db *DB) {
	t.Helper()
	err := db.UpsertMethodology(&Methodology{
		ID:       "meddic",
		Name:     "MEDDIC",
		Author:   ptr("Jack Napoli"),
		Category: ptr("qualification"),
		Overview: "Qualification framework for complex deals.",
	})
	if err != nil {
		t.Fatalf("seeding methodology: %v", err)
	}
	components := []MethodologyComponent{
		{ID: "meddic_metrics", MethodologyID: "meddic", Name: "Metrics", SequenceOrder: 1,
			Description: "Quantify the economic impact."},
		{ID: "meddic_champion", MethodologyID: "meddic", Name: "Champion", SequenceOrder: 6,
			Description: "Find the internal seller."},
	}
	for i := range components {
		if err := db.UpsertComponent(&components[i]); err != nil {
			t.Fatalf("seeding component: %v", err)
		}
	}
}

func TestMethodologyTree(t *testing.T) {
	db := openTestDB(t)
	seedTestMethodology(t, db)
	db.UpsertMethodology(&Methodology{
		ID: "spin", Name: "SPIN Selling", Overview: "Question-led discovery.",
	})

	tree, err := db.GetMethodologyTree()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("expected 2 methodologies, got %d", len(tree))
	}
	// Ordered by name: MEDDIC before SPIN Selling.
	if tree[0].ID != "meddic" {
		t.Errorf("expected meddic first, got %s", tree[0].ID)
	}
	if len(tree[0].Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(tree[0].Components))
	}
	if tree[0].Components[0].ID != "meddic_metrics" {
		t.Errorf("expected components in sequence order, got %s first", tree[0].Components[0].ID)
	}
	if len(tree[1].Components) != 0 {
		t.Errorf("expected no components for spin, got %d", len(tree[1].Components))
	}
}

func TestSeedingIsRerunnable(t *testing.T) {
	db := openTestDB(t)
	seedTestMethodology(t, db)
	seedTestMethodology(t, db)

	tree, _ := db.GetMethodologyTree()
	if len(tree) != 1 {
		t.Errorf("expected 1 methodology after re-seed, got %d", len(tree))
	}
	if len(tree[0].Components) != 2 {
		t.Errorf("expected 2 components after re-seed, got %d", len(tree[0].Components))
	}
}

func TestTagLifecycle(t *testing.T) {
	db := openTestDB(t)
	seedTestMethodology(t, db)
	db.UpsertInsight(sampleInsight("in-1", "Get a champion before the proposal"))

	if err := db.TagMethodology("in-1", "meddic_champion", 0.85, "claude"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tags, err := db.GetTagsForInsights([]string{"in-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags["in-1"]) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(tags["in-1"]))
	}
	tag := tags["in-1"][0]
	if tag.Methodology != "MEDDIC" || tag.Component != "Champion" {
		t.Errorf("expected joined names, got %s/%s", tag.Methodology, tag.Component)
	}
	if tag.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %v", tag.Confidence)
	}

	// Re-tagging the same pair updates in place.
	db.TagMethodology("in-1", "meddic_champion", 0.6, "claude")
	tags, _ = db.GetTagsForInsights([]string{"in-1"})
	if len(tags["in-1"]) != 1 || tags["in-1"][0].Confidence != 0.6 {
		t.Errorf("expected updated confidence, got %v", tags["in-1"])
	}
}

func TestGetTagsForInsightsFloor(t *testing.T) {
	db := openTestDB(t)
	seedTestMethodology(t, db)
	db.UpsertInsight(sampleInsight("in-1", "Weakly related"))
	db.TagMethodology("in-1", "meddic_metrics", 0.3, "claude")

	tags, _ := db.GetTagsForInsights([]string{"in-1"})
	if len(tags["in-1"]) != 0 {
		t.Errorf("expected low-confidence tags hidden, got %v", tags["in-1"])
	}

	empty, err := db.GetTagsForInsights(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty map for no ids, got %v", empty)
	}
}

func TestGetUntagged(t *testing.T) {
	db := openTestDB(t)
	seedTestMethodology(t, db)
	db.UpsertInsight(sampleInsight("in-1", "Tagged"))
	db.UpsertInsight(sampleInsight("in-2", "Untagged"))
	db.TagMethodology("in-1", "meddic_metrics", 0.8, "claude")

	untagged, err := db.GetUntagged(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(untagged) != 1 || untagged[0].ID != "in-2" {
		t.Errorf("expected only in-2 untagged, got %d", len(untagged))
	}
}

func TestGetInsightsByMethodology(t *testing.T) {
	db := openTestDB(t)
	seedTestMethodology(t, db)
	db.UpsertInsight(sampleInsight("in-1", "Strong metrics story"))
	db.UpsertInsight(sampleInsight("in-2", "Marginal fit"))
	db.TagMethodology("in-1", "meddic_metrics", 0.9, "claude")
	db.TagMethodology("in-2", "meddic_champion", 0.4, "claude")

	results, err := db.GetInsightsByMethodology("meddic", 0.5, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "in-1" {
		t.Errorf("expected only the confident tag, got %d results", len(results))
	}
}

func TestGetComponentIDs(t *testing.T) {
	db := openTestDB(t)
	seedTestMethodology(t, db)

	ids, err := db.GetComponentIDs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ids["meddic_metrics"] || !ids["meddic_champion"] {
		t.Errorf("expected seeded component ids, got %v", ids)
	}
	if ids["made_up"] {
		t.Error("expected unknown id absent")
	}
}
