package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// movieEntry is one title of a venue; the same times are served for any date.
type movieEntry struct {
	Title string   `json:"title"`
	Year  int      `json:"year"`
	Times []string `json:"times"`
}

type startsAt struct {
	StartsAt string `json:"startsAt"`
}

type pageResult struct {
	Movie struct {
		Title          string `json:"title"`
		ProductionYear int    `json:"productionYear,omitempty"`
	} `json:"movie"`
	Showtimes map[string][]startsAt `json:"showtimes"`
}

type page struct {
	Pagination struct {
		Page       int `json:"page"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
	Results []pageResult `json:"results"`
}

var venueTmpl = template.Must(template.New("venue").Parse(`<!DOCTYPE html><html><body>
{{range .}}<div class="movie-card-theater">
  <h2 class="meta-title"><a href="#">{{.Title}}</a></h2>
  {{range .Times}}<div class="showtimes-hour-item"><span class="showtimes-hour-item-value">{{.}}</span></div>
  {{end}}
</div>
{{end}}</body></html>`))

func main() {
	var (
		port     = flag.String("port", "9098", "port to listen on")
		data     = flag.String("data", "mock-allocine.json", "path to mock data file")
		pageSize = flag.Int("page-size", 2, "results per JSON page")
		logReqs  = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}

	var payload map[string][]movieEntry
	if err := json.Unmarshal(file, &payload); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	handler := newRouter(payload, *pageSize, *logReqs)

	addr := ":" + *port
	log.Printf("mock listings listening on %s (%d venues)", addr, len(payload))
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newRouter(payload map[string][]movieEntry, pageSize int, logReqs bool) http.Handler {
	if pageSize <= 0 {
		pageSize = 2
	}
	r := chi.NewRouter()
	if logReqs {
		r.Use(middleware.Logger)
	}

	r.Get("/_/showtimes/theater-{venue}/d-{date}/p-{page}", func(w http.ResponseWriter, r *http.Request) {
		entries, ok := payload[chi.URLParam(r, "venue")]
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		n, err := strconv.Atoi(chi.URLParam(r, "page"))
		if err != nil || n < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(buildPage(entries, chi.URLParam(r, "date"), n, pageSize)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	r.Get("/seance/{file}", func(w http.ResponseWriter, r *http.Request) {
		file := chi.URLParam(r, "file")
		id, ok := strings.CutPrefix(strings.TrimSuffix(file, ".html"), "salle_gen_csalle=")
		entries, found := payload[id]
		if !ok || !found {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := venueTmpl.Execute(w, entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return r
}

func buildPage(entries []movieEntry, date string, n, pageSize int) page {
	var p page
	p.Pagination.Page = n
	p.Pagination.TotalPages = max(1, (len(entries)+pageSize-1)/pageSize)
	p.Results = []pageResult{}

	start := (n - 1) * pageSize
	if start >= len(entries) {
		return p
	}
	end := min(start+pageSize, len(entries))
	for _, e := range entries[start:end] {
		var res pageResult
		res.Movie.Title = e.Title
		res.Movie.ProductionYear = e.Year
		slots := make([]startsAt, 0, len(e.Times))
		for _, t := range e.Times {
			slots = append(slots, startsAt{StartsAt: fmt.Sprintf("%sT%s:00", date, t)})
		}
		res.Showtimes = map[string][]startsAt{"original": slots}
		p.Results = append(p.Results, res)
	}
	return p
}
