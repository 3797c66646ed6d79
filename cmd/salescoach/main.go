package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/SalesCoach/internal/audience"
	"github.com/TobiSchelling/SalesCoach/internal/classify"
	"github.com/TobiSchelling/SalesCoach/internal/coach"
	"github.com/TobiSchelling/SalesCoach/internal/collect"
	"github.com/TobiSchelling/SalesCoach/internal/config"
	"github.com/TobiSchelling/SalesCoach/internal/database"
	"github.com/TobiSchelling/SalesCoach/internal/export"
	"github.com/TobiSchelling/SalesCoach/internal/fetch"
	"github.com/TobiSchelling/SalesCoach/internal/llm"
	"github.com/TobiSchelling/SalesCoach/internal/pipeline"
	"github.com/TobiSchelling/SalesCoach/internal/seed"
	"github.com/TobiSchelling/SalesCoach/internal/server"
	"github.com/TobiSchelling/SalesCoach/internal/tagging"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	dbPath     string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "salescoach",
	Short:   "Sales wisdom library and coach",
	Long:    "SalesCoach collects sales advice from top influencers, classifies it by deal stage and audience, and serves it back through search and synthesized coaching.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (default from config)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(audienceCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(leadersCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(methodologiesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("salescoach", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/salescoach/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure influencers, API keys, and the model.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and pipeline status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Content queue:")
		fmt.Printf("  Raw items: %d\n", stats.RawItems)
		fmt.Printf("  Pending fetch: %d\n", stats.PendingFetch)
		fmt.Printf("  Pending classification: %d\n", stats.PendingClassify)
		fmt.Println("\nInsights:")
		fmt.Printf("  Total: %d\n", stats.TotalInsights)
		fmt.Printf("  Audience classified: %d\n", stats.AudienceClassified)
		fmt.Printf("  Methodology tagged: %d\n", stats.TaggedInsights)
		fmt.Println("\nMethodology catalog:")
		fmt.Printf("  Methodologies: %d\n", stats.Methodologies)
		fmt.Printf("  Components: %d\n", stats.Components)
		fmt.Printf("  Tags: %d\n", stats.Tags)

		if len(stats.ByStage) > 0 {
			fmt.Println("\nInsights by stage:")
			printSortedCounts(stats.ByStage)
		}
		if len(stats.BySourceType) > 0 {
			fmt.Println("\nInsights by source:")
			printSortedCounts(stats.BySourceType)
		}
		return nil
	},
}

// printSortedCounts prints a count map sorted by count descending.
func printSortedCounts(counts map[string]int) {
	type kv struct {
		key string
		val int
	}
	var sorted []kv
	for k, v := range counts {
		sorted = append(sorted, kv{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].val != sorted[j].val {
			return sorted[i].val > sorted[j].val
		}
		return sorted[i].key < sorted[j].key
	})
	for _, s := range sorted {
		fmt.Printf("  %s: %d\n", s.key, s.val)
	}
}

// --- collect command ---

var collectSource string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Discover new posts and videos from configured influencers",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch collectSource {
		case "", "all", "linkedin", "youtube":
		default:
			return fmt.Errorf("invalid source %q (linkedin, youtube or all)", collectSource)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Collecting content from sources...")

		collector := collect.NewCollector(cfg, db)
		result := collector.Collect(context.Background(), collectSource)

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Total found: %d\n", result.Found)
		fmt.Printf("  New items: %d\n", result.NewItems)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)

		if len(result.Sources) > 0 {
			fmt.Println("\nItems by source:")
			printSortedCounts(result.Sources)
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectSource, "source", "", "Limit to one source: linkedin or youtube")
}

// --- fetch command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch full content for collected items",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fetcher := fetch.NewContentFetcher(cfg, db)
		result := fetcher.FetchMissingContent(context.Background())

		fmt.Printf("\nFetched %d items, %d failed\n", result.Fetched, result.Failed)
		return nil
	},
}

// --- classify command ---

var (
	classifyBatch string
	classifyLimit int
	classifyYes   bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify fetched content into insights via a message batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		classifier := classify.NewClassifier(cfg, db)
		result, err := classifier.Run(context.Background(), classify.Options{
			BatchID: classifyBatch,
			Limit:   classifyLimit,
			Yes:     classifyYes,
		})
		if err != nil {
			return err
		}

		fmt.Printf("\nClassification complete: %d submitted, %d insights, %d errors\n",
			result.Submitted, result.Updated, result.Errors)
		if result.BatchID != "" {
			fmt.Printf("Batch id: %s\n", result.BatchID)
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyBatch, "batch", "", "Resume polling an already-submitted batch")
	classifyCmd.Flags().IntVar(&classifyLimit, "limit", 0, "Max items to classify (0 = all pending)")
	classifyCmd.Flags().BoolVar(&classifyYes, "yes", false, "Skip the large-batch confirmation prompt")
}

// --- audience command ---

var (
	audienceBatch string
	audienceLimit int
	audienceYes   bool
)

var audienceCmd = &cobra.Command{
	Use:   "audience",
	Short: "Classify target audience for existing insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		classifier := audience.NewClassifier(cfg, db)
		result, err := classifier.Run(context.Background(), audience.Options{
			BatchID: audienceBatch,
			Limit:   audienceLimit,
			Yes:     audienceYes,
		})
		if err != nil {
			return err
		}

		fmt.Printf("\nAudience classification complete: %d updated, %d errors\n",
			result.Updated, result.Errors)
		if result.BatchID != "" {
			fmt.Printf("Batch id: %s\n", result.BatchID)
		}
		return nil
	},
}

func init() {
	audienceCmd.Flags().StringVar(&audienceBatch, "batch", "", "Resume polling an already-submitted batch")
	audienceCmd.Flags().IntVar(&audienceLimit, "limit", 0, "Max insights to classify (0 = all pending)")
	audienceCmd.Flags().BoolVar(&audienceYes, "yes", false, "Skip the large-batch confirmation prompt")
}

// --- tag command ---

var (
	tagBatch  string
	tagLimit  int
	tagYes    bool
	tagDryRun bool
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Tag insights with methodology components",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tagger := tagging.NewTagger(cfg, db)
		result, err := tagger.Run(context.Background(), tagging.Options{
			BatchID: tagBatch,
			Limit:   tagLimit,
			Yes:     tagYes,
			DryRun:  tagDryRun,
		})
		if err != nil {
			return err
		}
		if tagDryRun {
			return nil
		}

		fmt.Printf("\nTagging complete: %d insights tagged, %d tags written, %d errors\n",
			result.InsightsTagged, result.TagsWritten, result.Errors)
		if result.BatchID != "" {
			fmt.Printf("Batch id: %s\n", result.BatchID)
		}
		return nil
	},
}

func init() {
	tagCmd.Flags().StringVar(&tagBatch, "batch", "", "Resume polling an already-submitted batch")
	tagCmd.Flags().IntVar(&tagLimit, "limit", 0, "Max insights to tag (0 = all untagged)")
	tagCmd.Flags().BoolVar(&tagYes, "yes", false, "Skip the large-batch confirmation prompt")
	tagCmd.Flags().BoolVar(&tagDryRun, "dry-run", false, "Estimate cost without submitting")
}

// --- run command ---

var (
	runSource string
	runLimit  int
	runYes    bool
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> fetch -> classify -> audience -> tag",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		if runDryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(context.Background(), pipeline.Options{
				Source: runSource,
				Limit:  runLimit,
				Yes:    runYes,
			})
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/5: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
			if step.Duration > 0 {
				fmt.Printf("  Took %s\n", step.Duration.Round(time.Second))
			}
		}

		if !runDryRun && !result.Failed() {
			fmt.Println("\nPipeline complete! Run 'salescoach serve' to browse insights.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "", "Limit collection to one source: linkedin or youtube")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Cap items per classification stage (0 = all)")
	runCmd.Flags().BoolVar(&runYes, "yes", false, "Skip large-batch confirmation prompts")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Show what would be done without executing")
}

// --- search command ---

var (
	searchStage      string
	searchInfluencer string
	searchComponent  string
	searchLimit      int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search across insights",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		query := strings.Join(args, " ")
		results, err := db.Search(query, searchLimit, database.SearchFilters{
			Stage:       searchStage,
			Influencer:  searchInfluencer,
			ComponentID: searchComponent,
		})
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}

		if len(results) == 0 {
			fmt.Println("No insights match. Try different keywords or drop the filters.")
			return nil
		}

		fmt.Printf("\n%d results for %q\n", len(results), query)
		for i, in := range results {
			printInsight(i+1, &in)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchStage, "stage", "", "Filter by primary deal stage")
	searchCmd.Flags().StringVar(&searchInfluencer, "influencer", "", "Filter by influencer name (substring)")
	searchCmd.Flags().StringVar(&searchComponent, "component", "", "Filter by methodology component id (see 'methodologies')")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Max results")
}

// --- leaders command ---

var (
	leadersMinConfidence float64
	leadersLimit         int
)

var leadersCmd = &cobra.Command{
	Use:   "leaders <query>",
	Short: "Search insights classified for VP Sales / CRO audiences",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		query := strings.Join(args, " ")
		results, err := db.SearchLeaders(query, leadersLimit, leadersMinConfidence)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}

		if len(results) == 0 {
			fmt.Println("No VP/CRO leadership content found for this query.")
			fmt.Println("Try broader keywords or lower --min-confidence.")
			return nil
		}

		fmt.Printf("\nLeadership insights (%d results)\n", len(results))
		for i, in := range results {
			printInsight(i+1, &in)
			if len(in.TargetAudience) > 0 && in.AudienceConfidence != nil {
				fmt.Printf("   Audience: %s (confidence: %.0f%%)\n",
					strings.Join(in.TargetAudience, ", "), *in.AudienceConfidence*100)
			}
		}
		fmt.Println("\nFor synthesized advice, run: salescoach ask --leaders \"<question>\"")
		return nil
	},
}

func init() {
	leadersCmd.Flags().Float64Var(&leadersMinConfidence, "min-confidence", database.DefaultLeaderConfidence, "Minimum audience confidence")
	leadersCmd.Flags().IntVar(&leadersLimit, "limit", 10, "Max results")
}

// printInsight prints one search result in the shared CLI card format.
func printInsight(i int, in *database.Insight) {
	fmt.Printf("\n--- [%d] %s (%s) ---\n", i, in.InfluencerName, in.PrimaryStage)
	fmt.Printf("Insight: %s\n", in.KeyInsight)
	for _, step := range in.TacticalSteps {
		fmt.Printf("  - %s\n", step)
	}
	if in.BestQuote != nil && *in.BestQuote != "" {
		fmt.Printf("  %q\n", *in.BestQuote)
	}
	fmt.Printf("  Source: %s\n", in.SourceURL)
}

// --- ask command ---

var (
	askLeaders    bool
	askStage      string
	askInfluencer string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Get synthesized coaching advice for a sales situation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		question := strings.Join(args, " ")
		c := coach.New(cfg, db, newProvider())

		answer, err := c.Ask(context.Background(), question, coach.AskOptions{
			Leaders:    askLeaders,
			Stage:      askStage,
			Influencer: askInfluencer,
		})
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println(answer.Text)

		if len(answer.Sources) > 0 {
			fmt.Printf("\nSources: %d insights used\n", len(answer.Sources))
			for _, in := range answer.Sources {
				insight := in.KeyInsight
				if len(insight) > 70 {
					insight = insight[:70] + "..."
				}
				fmt.Printf("  - %s: %s\n", in.InfluencerName, insight)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askLeaders, "leaders", false, "Answer for VP Sales / CRO situations from leadership content")
	askCmd.Flags().StringVar(&askStage, "stage", "", "Restrict retrieval to one deal stage")
	askCmd.Flags().StringVar(&askInfluencer, "influencer", "", "Restrict retrieval to one influencer")
}

// --- seed command ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed or refresh the methodology catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		nm, nc, err := seed.Run(db)
		if err != nil {
			return err
		}
		fmt.Printf("\nCatalog ready: %d methodologies, %d components\n", nm, nc)
		return nil
	},
}

// --- methodologies command ---

var (
	methMinConfidence float64
	methLimit         int
)

var methodologiesCmd = &cobra.Command{
	Use:   "methodologies [id]",
	Short: "Browse the methodology catalog, or insights tagged with one methodology",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 0 {
			return printCatalog(db)
		}

		results, err := db.GetInsightsByMethodology(args[0], methMinConfidence, methLimit)
		if err != nil {
			return fmt.Errorf("loading insights for %s: %w", args[0], err)
		}
		if len(results) == 0 {
			fmt.Printf("No insights tagged with %q yet.\n", args[0])
			fmt.Println("Run 'salescoach tag' first, or 'salescoach methodologies' to list catalog ids.")
			return nil
		}

		fmt.Printf("\n%d insights tagged %s\n", len(results), args[0])
		for i, in := range results {
			printInsight(i+1, &in)
		}
		return nil
	},
}

func init() {
	methodologiesCmd.Flags().Float64Var(&methMinConfidence, "min-confidence", 0.5, "Minimum tag confidence")
	methodologiesCmd.Flags().IntVar(&methLimit, "limit", 20, "Max insights")
}

func printCatalog(db *database.DB) error {
	tree, err := db.GetMethodologyTree()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	if len(tree) == 0 {
		fmt.Println("Catalog is empty. Run 'salescoach seed' first.")
		return nil
	}

	for _, m := range tree {
		header := m.Name
		if m.Category != nil && *m.Category != "" {
			header += " [" + *m.Category + "]"
		}
		fmt.Printf("\n%s: %s\n", m.ID, header)
		if m.Author != nil && *m.Author != "" {
			byline := *m.Author
			if m.Source != nil && *m.Source != "" {
				byline += " (" + *m.Source + ")"
			}
			fmt.Printf("  %s\n", byline)
		}
		if m.CorePhilosophy != nil && *m.CorePhilosophy != "" {
			fmt.Printf("  %s\n", *m.CorePhilosophy)
		}
		if len(m.Components) > 0 {
			fmt.Println("  Components:")
			for _, c := range m.Components {
				name := c.Name
				if c.Abbreviation != nil && *c.Abbreviation != "" {
					name += " (" + *c.Abbreviation + ")"
				}
				fmt.Printf("    %s: %s\n", c.ID, name)
			}
		}
	}
	fmt.Println("\nFor tagged insights, run: salescoach methodologies <id>")
	return nil
}

// --- export command ---

var (
	exportOut      string
	exportMinScore int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export insights to CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		minScore := exportMinScore
		if minScore == 0 {
			minScore = cfg.Export.MinScore
		}

		if exportOut == "-" {
			n, err := export.WriteCSV(db, minScore, os.Stdout)
			if err != nil {
				return err
			}
			log.Printf("Exported %d records to stdout", n)
			return nil
		}

		out := exportOut
		if out == "" {
			out = export.FileName(time.Now())
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()

		n, err := export.WriteCSV(db, minScore, f)
		if err != nil {
			return err
		}
		log.Printf("Exported %d records to %s", n, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default sales_wisdom_YYYYMMDD.csv, - for stdout)")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "Minimum relevance score (default from config)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		c := coach.New(cfg, db, newProvider())

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, c, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func newProvider() llm.Provider {
	cl := cfg.Classification
	return llm.CreateProvider(cl.Provider, cl.Model, cl.APIKeyEnv, cl.OllamaModel, cl.OllamaURL)
}

func openDB() (*database.DB, error) {
	if dbPath != "" {
		return database.Open(dbPath)
	}
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DatabasePath())
}
