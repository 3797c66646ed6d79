// Package seed loads the built-in sales methodology catalog into the
// database. The catalog is skeleton data (ids, names, categories, keywords);
// seeding is idempotent and safe to rerun without touching insight tags.
package seed

import (
	"fmt"
	"log"

	"github.com/TobiSchelling/SalesCoach/internal/database"
)

type methodology struct {
	id, name, author, source, category string

	dealStages []string
}

type component struct {
	id, methodologyID, name, abbreviation string

	order    int
	keywords []string
}

// Run upserts every methodology and component and returns the counts
// written.
func Run(db *database.DB) (int, int, error) {
	for _, m := range methodologies {
		err := db.UpsertMethodology(&database.Methodology{
			ID:         m.id,
			Name:       m.name,
			Author:     optional(m.author),
			Source:     optional(m.source),
			Category:   optional(m.category),
			DealStages: m.dealStages,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("seeding methodology %s: %w", m.id, err)
		}
	}
	log.Printf("Seeded %d methodologies", len(methodologies))

	for _, c := range components {
		err := db.UpsertComponent(&database.MethodologyComponent{
			ID:            c.id,
			MethodologyID: c.methodologyID,
			Name:          c.name,
			Abbreviation:  optional(c.abbreviation),
			SequenceOrder: c.order,
			Keywords:      c.keywords,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("seeding component %s: %w", c.id, err)
		}
	}
	log.Printf("Seeded %d components", len(components))

	return len(methodologies), len(components), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var methodologies = []methodology{
	{
		id: "meddic", name: "MEDDIC",
		author: "Jack Napoli & Dick Dunkel", source: "Developed at PTC in the 1990s",
		category:   "qualification",
		dealStages: []string{"Discovery", "Needs Analysis", "Business Case Development"},
	},
	{
		id: "challenger", name: "Challenger Sale",
		author: "Matthew Dixon & Brent Adamson", source: "The Challenger Sale (2011)",
		category:   "communication",
		dealStages: []string{"Discovery", "Demo & Presentation", "Business Case Development"},
	},
	{
		id: "spin", name: "SPIN Selling",
		author: "Neil Rackham", source: "SPIN Selling (1988)",
		category:   "communication",
		dealStages: []string{"Discovery", "Needs Analysis"},
	},
	{
		id: "sandler", name: "Sandler Selling System",
		author: "David Sandler", source: "Sandler Training (1967)",
		category:   "qualification",
		dealStages: []string{"Discovery", "Needs Analysis", "Procurement & Negotiation"},
	},
	{
		id: "gap", name: "Gap Selling",
		author: "Keenan", source: "Gap Selling (2018)",
		category:   "problem-centric",
		dealStages: []string{"Discovery", "Needs Analysis", "Business Case Development"},
	},
	{
		id: "solution", name: "Solution Selling",
		author: "Michael Bosworth", source: "Solution Selling (1995)",
		category:   "consultative",
		dealStages: []string{"Discovery", "Demo & Presentation", "Proof of Value"},
	},
	{
		id: "consultative", name: "Consultative Selling",
		author: "Mack Hanan", source: "Consultative Selling (1970)",
		category:   "consultative",
		dealStages: []string{"Account Research", "Discovery", "Needs Analysis"},
	},
	{
		id: "bant", name: "BANT",
		author: "IBM", source: "Developed at IBM in the 1960s",
		category:   "qualification",
		dealStages: []string{"Initial Contact", "Discovery"},
	},
	{
		id: "command_of_message", name: "Command of the Message",
		author: "Force Management", source: "Force Management framework",
		category:   "value-messaging",
		dealStages: []string{"Demo & Presentation", "Business Case Development", "Procurement & Negotiation"},
	},
	{
		id: "value_selling", name: "Value Selling",
		author: "Value Selling Associates", source: "Value Selling Framework",
		category:   "roi-driven",
		dealStages: []string{"Business Case Development", "Proof of Value", "Procurement & Negotiation"},
	},
}

// Component keywords capture how sales experts naturally talk about each
// concept, not just the methodology's formal terminology. The tagging pass
// feeds them into the classification prompt.
var components = []component{
	// MEDDIC
	{
		id: "meddic_metrics", methodologyID: "meddic", name: "Metrics", abbreviation: "M", order: 1,
		keywords: []string{"metrics", "quantifiable", "measurable outcome", "KPI", "ROI", "business impact", "success criteria", "benchmarks"},
	},
	{
		id: "meddic_economic_buyer", methodologyID: "meddic", name: "Economic Buyer", abbreviation: "E", order: 2,
		keywords: []string{"economic buyer", "budget holder", "decision maker", "purse strings", "final sign-off", "budget authority", "CFO", "VP", "C-suite"},
	},
	{
		id: "meddic_decision_criteria", methodologyID: "meddic", name: "Decision Criteria", abbreviation: "D", order: 3,
		keywords: []string{"decision criteria", "evaluation criteria", "requirements", "must-have", "scorecard", "selection criteria", "vendor comparison"},
	},
	{
		id: "meddic_decision_process", methodologyID: "meddic", name: "Decision Process", abbreviation: "D", order: 4,
		keywords: []string{"decision process", "buying process", "procurement", "approval chain", "committee", "stakeholder alignment", "timeline", "next steps"},
	},
	{
		id: "meddic_identify_pain", methodologyID: "meddic", name: "Identify Pain", abbreviation: "I", order: 5,
		keywords: []string{"pain point", "identify pain", "business problem", "challenge", "frustration", "cost of inaction", "status quo", "burning platform"},
	},
	{
		id: "meddic_champion", methodologyID: "meddic", name: "Champion", abbreviation: "C", order: 6,
		keywords: []string{"champion", "internal advocate", "coach", "mobilizer", "executive sponsor", "political ally", "insider", "sell internally"},
	},

	// Challenger Sale
	{
		id: "challenger_teach", methodologyID: "challenger", name: "Teach", order: 1,
		keywords: []string{"teach", "commercial insight", "reframe", "perspective", "educate", "thought leadership", "new way of thinking", "insight-led"},
	},
	{
		id: "challenger_tailor", methodologyID: "challenger", name: "Tailor", order: 2,
		keywords: []string{"tailor", "personalize", "stakeholder-specific", "resonate", "relevant", "custom message", "adapt", "audience"},
	},
	{
		id: "challenger_take_control", methodologyID: "challenger", name: "Take Control", order: 3,
		keywords: []string{"take control", "assertive", "push back", "constructive tension", "lead the conversation", "not afraid to disagree", "guide", "direct"},
	},

	// SPIN Selling
	{
		id: "spin_situation", methodologyID: "spin", name: "Situation Questions", abbreviation: "S", order: 1,
		keywords: []string{"situation questions", "current state", "background", "context", "how do you currently", "tell me about your process", "walk me through"},
	},
	{
		id: "spin_problem", methodologyID: "spin", name: "Problem Questions", abbreviation: "P", order: 2,
		keywords: []string{"problem questions", "difficulty", "dissatisfied", "struggle", "what challenges", "where does it break down", "limitations"},
	},
	{
		id: "spin_implication", methodologyID: "spin", name: "Implication Questions", abbreviation: "I", order: 3,
		keywords: []string{"implication", "consequence", "impact", "what happens if", "cost of", "effect on", "ripple effect", "downstream"},
	},
	{
		id: "spin_need_payoff", methodologyID: "spin", name: "Need-Payoff Questions", abbreviation: "N", order: 4,
		keywords: []string{"need-payoff", "benefit", "value", "how would it help", "what would it mean", "ideal solution", "imagine if", "worth"},
	},

	// Sandler Selling System
	{
		id: "sandler_bonding_rapport", methodologyID: "sandler", name: "Bonding & Rapport", order: 1,
		keywords: []string{"rapport", "bonding", "trust", "relationship", "personal connection", "likability", "comfortable", "authentic"},
	},
	{
		id: "sandler_upfront_contract", methodologyID: "sandler", name: "Up-Front Contract", order: 2,
		keywords: []string{"upfront contract", "agenda", "mutual agreement", "expectations", "ground rules", "what happens next", "commitment"},
	},
	{
		id: "sandler_pain", methodologyID: "sandler", name: "Pain", order: 3,
		keywords: []string{"pain funnel", "emotional pain", "surface pain", "business pain", "personal impact", "dig deeper", "why does that matter"},
	},
	{
		id: "sandler_budget", methodologyID: "sandler", name: "Budget", order: 4,
		keywords: []string{"budget", "investment", "money conversation", "financial commitment", "what have you set aside", "cost", "spend"},
	},
	{
		id: "sandler_decision", methodologyID: "sandler", name: "Decision", order: 5,
		keywords: []string{"decision", "decision-making process", "who else is involved", "authority", "committee", "final say", "sign-off"},
	},
	{
		id: "sandler_fulfillment", methodologyID: "sandler", name: "Fulfillment", order: 6,
		keywords: []string{"fulfillment", "solution presentation", "prescribe", "fit", "match solution to pain", "capabilities"},
	},
	{
		id: "sandler_post_sell", methodologyID: "sandler", name: "Post-Sell", order: 7,
		keywords: []string{"post-sell", "buyer's remorse", "reinforce", "prevent regret", "next steps confirmation", "follow through"},
	},

	// Gap Selling
	{
		id: "gap_current_state", methodologyID: "gap", name: "Current State", order: 1,
		keywords: []string{"current state", "as-is", "today", "how things work now", "existing process", "status quo", "baseline"},
	},
	{
		id: "gap_future_state", methodologyID: "gap", name: "Future State", order: 2,
		keywords: []string{"future state", "desired outcome", "vision", "goal", "where do you want to be", "ideal", "to-be", "aspiration"},
	},
	{
		id: "gap_the_gap", methodologyID: "gap", name: "The Gap", order: 3,
		keywords: []string{"gap", "delta", "distance", "what's missing", "bridge", "difference between", "cost of the gap", "unrealized potential"},
	},

	// Solution Selling
	{
		id: "solution_diagnose", methodologyID: "solution", name: "Diagnose", order: 1,
		keywords: []string{"diagnose", "discovery", "understand the problem", "root cause", "assessment", "audit", "investigate"},
	},
	{
		id: "solution_design", methodologyID: "solution", name: "Design", order: 2,
		keywords: []string{"design solution", "architect", "tailored solution", "custom approach", "proposal", "solution map", "blueprint"},
	},
	{
		id: "solution_deliver", methodologyID: "solution", name: "Deliver", order: 3,
		keywords: []string{"deliver", "implement", "prove value", "pilot", "POC", "demonstrate results", "onboard", "launch"},
	},

	// Consultative Selling
	{
		id: "consultative_research", methodologyID: "consultative", name: "Research", order: 1,
		keywords: []string{"research", "preparation", "homework", "industry knowledge", "account intelligence", "pre-call planning", "know your buyer"},
	},
	{
		id: "consultative_ask", methodologyID: "consultative", name: "Ask", order: 2,
		keywords: []string{"ask questions", "open-ended", "curious", "probe", "explore", "dig deeper", "understand needs"},
	},
	{
		id: "consultative_listen", methodologyID: "consultative", name: "Listen", order: 3,
		keywords: []string{"listen", "active listening", "hear", "understand", "empathy", "reflect back", "paraphrase", "validate"},
	},
	{
		id: "consultative_advise", methodologyID: "consultative", name: "Advise", order: 4,
		keywords: []string{"advise", "recommend", "trusted advisor", "guidance", "expertise", "prescribe", "counsel", "add value"},
	},

	// BANT
	{
		id: "bant_budget", methodologyID: "bant", name: "Budget", abbreviation: "B", order: 1,
		keywords: []string{"budget", "funding", "allocated", "spend", "investment", "price range", "financial resources", "can they afford"},
	},
	{
		id: "bant_authority", methodologyID: "bant", name: "Authority", abbreviation: "A", order: 2,
		keywords: []string{"authority", "decision maker", "who decides", "sign off", "approval", "influencer", "gatekeeper", "power"},
	},
	{
		id: "bant_need", methodologyID: "bant", name: "Need", abbreviation: "N", order: 3,
		keywords: []string{"need", "requirement", "must have", "priority", "urgency", "business need", "problem to solve", "pain"},
	},
	{
		id: "bant_timeline", methodologyID: "bant", name: "Timeline", abbreviation: "T", order: 4,
		keywords: []string{"timeline", "urgency", "when", "deadline", "time frame", "implementation date", "go-live", "fiscal year"},
	},

	// Command of the Message
	{
		id: "cotm_required_capabilities", methodologyID: "command_of_message", name: "Required Capabilities", order: 1,
		keywords: []string{"required capabilities", "must-have features", "differentiators", "unique value", "what we do that others can't", "competitive advantage"},
	},
	{
		id: "cotm_positive_business_outcomes", methodologyID: "command_of_message", name: "Positive Business Outcomes", abbreviation: "PBO", order: 2,
		keywords: []string{"positive business outcomes", "business results", "revenue impact", "cost savings", "efficiency gains", "strategic value", "outcomes"},
	},
	{
		id: "cotm_metrics", methodologyID: "command_of_message", name: "Metrics", order: 3,
		keywords: []string{"metrics", "proof points", "case study", "data", "numbers", "quantify", "evidence", "benchmark"},
	},
	{
		id: "cotm_before_after", methodologyID: "command_of_message", name: "Before/After Scenarios", order: 4,
		keywords: []string{"before and after", "transformation", "day in the life", "with vs without", "contrast", "improvement story"},
	},

	// Value Selling
	{
		id: "value_discover", methodologyID: "value_selling", name: "Discover Value", order: 1,
		keywords: []string{"discover value", "uncover", "what matters most", "business drivers", "value drivers", "priorities", "strategic goals"},
	},
	{
		id: "value_create", methodologyID: "value_selling", name: "Create Value", order: 2,
		keywords: []string{"create value", "build business case", "ROI", "total cost of ownership", "TCO", "value proposition", "justify investment"},
	},
	{
		id: "value_capture", methodologyID: "value_selling", name: "Capture Value", order: 3,
		keywords: []string{"capture value", "negotiate", "defend price", "value-based pricing", "close on value", "avoid discounting", "premium"},
	},
}
