package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/SalesCoach/internal/classify"
	"github.com/TobiSchelling/SalesCoach/internal/coach"
	"github.com/TobiSchelling/SalesCoach/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for browsing and querying insights.
type Server struct {
	db    *database.DB
	coach *coach.Coach
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// insightView pairs an insight with its methodology tags for the card
// templates.
type insightView struct {
	database.Insight
	Tags []database.MethodologyTag
}

// New creates a new Server. The coach powers the /ask page; the other pages
// read the database directly.
func New(db *database.DB, c *coach.Coach) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"join":     strings.Join,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"pct": func(f *float64) string {
			if f == nil {
				return ""
			}
			return fmt.Sprintf("%.0f%%", *f*100)
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "search.html", "leaders.html", "ask.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, coach: c, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/search", s.handleSearch)
	s.mux.HandleFunc("/leaders", s.handleLeaders)
	s.mux.HandleFunc("/ask", s.handleAsk)
}

// withTags loads methodology tags for a batch of insights. Tag lookup
// failures degrade to untagged cards rather than failing the page.
func (s *Server) withTags(insights []database.Insight) []insightView {
	views := make([]insightView, len(insights))
	ids := make([]string, len(insights))
	for i := range insights {
		views[i].Insight = insights[i]
		ids[i] = insights[i].ID
	}

	tags, err := s.db.GetTagsForInsights(ids)
	if err != nil {
		log.Printf("Loading methodology tags: %v", err)
		return views
	}
	for i := range views {
		views[i].Tags = tags[views[i].ID]
	}
	return views
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	recent, _ := s.db.GetRecentInsights(10)

	s.render(w, "index.html", map[string]any{
		"Stats":  stats,
		"Recent": s.withTags(recent),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	stage := r.URL.Query().Get("stage")

	var results []database.Insight
	if query != "" {
		var err error
		results, err = s.db.Search(query, 20, database.SearchFilters{Stage: stage})
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	s.render(w, "search.html", map[string]any{
		"Query":   query,
		"Stage":   stage,
		"Stages":  classify.Stages,
		"Results": s.withTags(results),
	})
}

func (s *Server) handleLeaders(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	minConf := database.DefaultLeaderConfidence
	if v := r.URL.Query().Get("min_confidence"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			minConf = f
		}
	}

	var results []database.Insight
	if query != "" {
		var err error
		results, err = s.db.SearchLeaders(query, 10, minConf)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	s.render(w, "leaders.html", map[string]any{
		"Query":         query,
		"MinConfidence": minConf,
		"Results":       s.withTags(results),
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Question": "",
		"Leaders":  false,
	}

	if r.Method == http.MethodPost {
		question := strings.TrimSpace(r.FormValue("question"))
		leaders := r.FormValue("mode") == "leaders"
		data["Question"] = question
		data["Leaders"] = leaders

		if question != "" {
			answer, err := s.coach.Ask(r.Context(), question, coach.AskOptions{Leaders: leaders})
			if err != nil {
				log.Printf("Ask failed: %v", err)
				data["Error"] = "Could not generate an answer. Check the server logs."
			} else {
				data["Answer"] = answer
			}
		}
	}

	s.render(w, "ask.html", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, c *coach.Coach, port int) error {
	srv, err := New(db, c)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
