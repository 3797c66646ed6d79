package database

// Insight represents one classified unit of sales content.
type Insight struct {
	ID                 string
	InfluencerSlug     string
	InfluencerName     string
	SourceType         string // "linkedin" or "youtube"
	SourceURL          string
	DateCollected      string
	PrimaryStage       string
	SecondaryStages    []string
	KeyInsight         string
	TacticalSteps      []string
	Keywords           []string
	SituationExamples  []string
	BestQuote          *string
	RelevanceScore     int
	TargetAudience     []string
	AudienceConfidence *float64
	AudienceReasoning  *string
	CreatedAt          *string
	UpdatedAt          *string
}

// RawItem is a collected piece of content waiting to be classified.
type RawItem struct {
	ID             string
	InfluencerSlug string
	InfluencerName string
	SourceType     string
	SourceURL      string
	Title          *string
	Content        *string
	ContentFetched bool
	Processed      bool
	CollectedAt    *string
}

// Methodology is one sales methodology framework (MEDDIC, SPIN, ...).
type Methodology struct {
	ID             string
	Name           string
	Author         *string
	Source         *string
	Category       *string
	Overview       string
	CorePhilosophy *string
	WhenToUse      *string
	Strengths      *string
	Limitations    *string
	DealStages     []string
	Components     []MethodologyComponent
	CreatedAt      *string
}

// MethodologyComponent is a named sub-element of a methodology.
type MethodologyComponent struct {
	ID              string
	MethodologyID   string
	Name            string
	Abbreviation    *string
	SequenceOrder   int
	Description     string
	HowToExecute    *string
	CommonMistakes  *string
	ExampleScenario *string
	Keywords        []string
}

// MethodologyTag links an insight to a methodology component.
type MethodologyTag struct {
	InsightID   string
	ComponentID string
	Methodology string
	Component   string
	Confidence  float64
	TaggedBy    string
}

// SearchFilters narrows full-text search results after ranking.
type SearchFilters struct {
	Stage       string // exact match on primary_stage
	Influencer  string // substring match on influencer_name
	ComponentID string // insights tagged with this methodology component
	MinScore    int    // minimum relevance_score, 0 disables

	// LeadersOnly keeps rows whose target_audience intersects {vp_sales, cro}
	// and whose audience_confidence meets MinConfidence.
	LeadersOnly   bool
	MinConfidence float64
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalInsights      int
	ByStage            map[string]int
	BySourceType       map[string]int
	AudienceClassified int
	TaggedInsights     int
	Methodologies      int
	Components         int
	Tags               int
	RawItems           int
	PendingFetch       int
	PendingClassify    int
}
