package audience

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/SalesCoach/internal/config"
	"github.com/TobiSchelling/SalesCoach/internal/database"
)

func openTestClassifier(t *testing.T) (*Classifier, *database.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Classification.Model = "claude-sonnet-4-20250514"
	cfg.Classification.BatchThreshold = 100

	c := NewClassifier(cfg, db)
	c.batch.APIKey = "test-key"
	c.interval = time.Millisecond
	return c, db
}

func seedInsight(t *testing.T, db *database.DB, id, keyInsight string) {
	t.Helper()
	quote := "Ask before you pitch."
	err := db.UpsertInsight(&database.Insight{
		ID:                id,
		InfluencerSlug:    "ian-koniak",
		InfluencerName:    "Ian Koniak",
		SourceType:        "linkedin",
		SourceURL:         "https://linkedin.com/posts/" + id,
		DateCollected:     "2026-08-20",
		PrimaryStage:      "Discovery",
		KeyInsight:        keyInsight,
		TacticalSteps:     []string{"Open with a question", "Listen for pain"},
		Keywords:          []string{"discovery", "questions"},
		SituationExamples: []string{"First call with a new prospect"},
		BestQuote:         &quote,
		RelevanceScore:    8,
	})
	if err != nil {
		t.Fatalf("seeding insight %s: %v", id, err)
	}
}

func TestBuildClassificationPrompt(t *testing.T) {
	in := database.Insight{
		KeyInsight:        "Run pipeline reviews weekly with your team.",
		TacticalSteps:     []string{"Block a recurring slot", "Review stuck deals"},
		Keywords:          []string{"pipeline", "forecasting"},
		SituationExamples: []string{"Monday team meeting"},
		PrimaryStage:      "General Sales Mindset",
	}

	prompt := buildClassificationPrompt(in)
	for _, want := range []string{
		"Who would act on this advice?",
		"INSIGHT: Run pipeline reviews weekly with your team.",
		"TACTICAL STEPS: Block a recurring slot, Review stuck deals",
		"DEAL STAGE: General Sales Mindset",
		"- ae: Account Executive",
		"- vp_sales: VP Sales / CRO",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestParseClassificationFenced(t *testing.T) {
	text := "```json\n{\"target_audience\": [\"ae\"], \"confidence\": 0.9, \"reasoning\": \"Deal execution\"}\n```"
	cl, err := parseClassification(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cl.TargetAudience) != 1 || cl.TargetAudience[0] != "ae" {
		t.Errorf("expected [ae], got %v", cl.TargetAudience)
	}
	if cl.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", cl.Confidence)
	}
	if cl.Reasoning != "Deal execution" {
		t.Errorf("unexpected reasoning %q", cl.Reasoning)
	}
}

func TestParseClassificationRejectsUnknownRole(t *testing.T) {
	text := `{"target_audience": ["ceo"], "confidence": 0.8, "reasoning": "x"}`
	if _, err := parseClassification(text); err == nil {
		t.Error("expected error for role outside taxonomy")
	}
}

func TestParseClassificationRejectsConfidenceOutOfRange(t *testing.T) {
	for _, conf := range []string{"-0.1", "1.5"} {
		text := `{"target_audience": ["ae"], "confidence": ` + conf + `, "reasoning": "x"}`
		if _, err := parseClassification(text); err == nil {
			t.Errorf("expected error for confidence %s", conf)
		}
	}
}

func TestParseClassificationRequiresRoles(t *testing.T) {
	text := `{"target_audience": [], "confidence": 0.8, "reasoning": "x"}`
	if _, err := parseClassification(text); err == nil {
		t.Error("expected error for empty target_audience")
	}
}

func TestParseClassificationCapsRoles(t *testing.T) {
	text := `{"target_audience": ["vp_sales", "director", "manager", "general"], "confidence": 0.6, "reasoning": "x"}`
	cl, err := parseClassification(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cl.TargetAudience) != 3 {
		t.Errorf("expected 3 roles, got %v", cl.TargetAudience)
	}
}

func TestAudienceRunUpdatesInsights(t *testing.T) {
	c, db := openTestClassifier(t)
	seedInsight(t, db, "in-1", "Build a pipeline review cadence for your team.")
	seedInsight(t, db, "in-2", "Ask open questions on discovery calls.")

	responses := map[string]string{
		"in-1": "```json\n{\"target_audience\": [\"vp_sales\"], \"confidence\": 0.9, \"reasoning\": \"Team management advice\"}\n```",
		"in-2": `{"target_audience": ["astronaut"], "confidence": 0.7, "reasoning": "x"}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/v1/messages/batches":
			var body struct {
				Requests []struct {
					CustomID string `json:"custom_id"`
					Params   struct {
						MaxTokens int `json:"max_tokens"`
						Messages  []struct {
							Content string `json:"content"`
						} `json:"messages"`
					} `json:"params"`
				} `json:"requests"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if len(body.Requests) != 2 {
				t.Errorf("expected 2 requests, got %d", len(body.Requests))
			}
			for _, req := range body.Requests {
				if req.Params.MaxTokens != maxTokens {
					t.Errorf("expected max_tokens %d, got %d", maxTokens, req.Params.MaxTokens)
				}
				if !strings.Contains(req.Params.Messages[0].Content, "Who would act on this advice?") {
					t.Errorf("prompt for %s missing framing question", req.CustomID)
				}
			}
			fmt.Fprint(w, `{"id": "msgbatch_aud", "processing_status": "in_progress",
				"request_counts": {"processing": 2, "succeeded": 0, "errored": 0, "canceled": 0, "expired": 0}}`)

		case r.Method == "GET" && r.URL.Path == "/v1/messages/batches/msgbatch_aud":
			fmt.Fprint(w, `{"id": "msgbatch_aud", "processing_status": "ended",
				"request_counts": {"processing": 0, "succeeded": 2, "errored": 0, "canceled": 0, "expired": 0}}`)

		case r.Method == "GET" && r.URL.Path == "/v1/messages/batches/msgbatch_aud/results":
			enc := json.NewEncoder(w)
			for id, text := range responses {
				enc.Encode(map[string]any{
					"custom_id": id,
					"result": map[string]any{
						"type": "succeeded",
						"message": map[string]any{
							"content": []map[string]string{{"type": "text", "text": text}},
						},
					},
				})
			}

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c.batch.BaseURL = srv.URL

	r, err := c.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Submitted != 2 {
		t.Errorf("expected 2 submitted, got %d", r.Submitted)
	}
	if r.Updated != 1 || r.Errors != 1 {
		t.Errorf("expected 1 updated and 1 error, got %d/%d", r.Updated, r.Errors)
	}

	in, err := db.GetInsight("in-1")
	if err != nil {
		t.Fatalf("GetInsight: %v", err)
	}
	if len(in.TargetAudience) != 1 || in.TargetAudience[0] != "vp_sales" {
		t.Errorf("expected [vp_sales], got %v", in.TargetAudience)
	}
	if in.AudienceConfidence == nil || *in.AudienceConfidence != 0.9 {
		t.Error("expected confidence 0.9 stored")
	}
	if in.KeyInsight != "Build a pipeline review cadence for your team." {
		t.Error("audience update must not touch ingestion columns")
	}

	// The bad response keeps its insight selectable for the next run.
	pending, err := db.GetUnclassified(0)
	if err != nil {
		t.Fatalf("GetUnclassified: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "in-2" {
		t.Errorf("expected only in-2 pending, got %d", len(pending))
	}
}

func TestAudienceRunAlreadyClassified(t *testing.T) {
	c, db := openTestClassifier(t)
	seedInsight(t, db, "in-1", "Some insight.")
	if err := db.SetAudience("in-1", []string{"ae"}, 0.8, "done"); err != nil {
		t.Fatalf("SetAudience: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()
	c.batch.BaseURL = srv.URL

	r, err := c.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Submitted != 0 || r.Updated != 0 || r.Errors != 0 {
		t.Errorf("expected empty result, got %+v", r)
	}
}
