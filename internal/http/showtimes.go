package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/seances/internal/domain"
	"github.com/Clark-Hu/seances/internal/showtimes"
)

type indexResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

type cinemasResponse struct {
	Cinemas []string       `json:"cinemas"`
	Venues  []domain.Venue `json:"venues"`
}

type showtimesResponse struct {
	Date      string           `json:"date"`
	Showtimes showtimes.Result `json:"showtimes"`
}

type cinemaResponse struct {
	Cinema    string                 `json:"cinema"`
	CinemaID  string                 `json:"cinema_id"`
	Showtimes []domain.EnrichedMovie `json:"showtimes"`
}

var indexEndpoints = [][2]string{
	{"/cinemas", "Liste des cinémas"},
	{"/showtimes?date=YYYY-MM-DD", "Horaires enrichis par cinéma"},
	{"/test-cinema/<cinema_name>", "Tester un seul cinéma"},
	{"/prefetch-letterboxd?date=YYYY-MM-DD&token=...", "Batch de cache Letterboxd"},
	{"/ratings?limit=&cursor=&token=...", "Notes Letterboxd en cache"},
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	endpoints := make(map[string]string, len(indexEndpoints))
	for _, e := range indexEndpoints {
		endpoints[e[0]] = e[1]
	}
	s.respondJSON(w, http.StatusOK, indexResponse{
		Message:   "API Séance(s) - Horaires de cinéma à Paris",
		Endpoints: endpoints,
	})
}

func (s *Server) handleCinemas(w http.ResponseWriter, r *http.Request) {
	venues := s.showtimes.Venues()
	names := make([]string, 0, len(venues))
	for _, v := range venues {
		names = append(names, v.Name)
	}
	s.respondJSON(w, http.StatusOK, cinemasResponse{Cinemas: names, Venues: venues})
}

func (s *Server) handleShowtimes(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "date must follow YYYY-MM-DD format")
		return
	}

	result, err := s.showtimes.Aggregate(r.Context(), date)
	if err != nil {
		if errors.Is(err, showtimes.ErrInvalidDate) {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "date must follow YYYY-MM-DD format")
			return
		}
		s.logger.Printf("aggregate showtimes error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load showtimes")
		return
	}
	s.respondJSON(w, http.StatusOK, showtimesResponse{Date: date, Showtimes: result})
}

func (s *Server) handleTestCinema(w http.ResponseWriter, r *http.Request) {
	name, err := decodeNameParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	venue, ok := s.showtimes.VenueByName(name)
	if !ok {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Cinéma "+name+" non trouvé")
		return
	}

	movies := s.showtimes.Venue(r.Context(), venue, s.showtimes.Today())
	if movies == nil {
		movies = []domain.EnrichedMovie{}
	}
	s.respondJSON(w, http.StatusOK, cinemaResponse{
		Cinema:    venue.Name,
		CinemaID:  venue.ID,
		Showtimes: movies,
	})
}

// dateParam returns the requested date key, today when absent.
func (s *Server) dateParam(query url.Values) (string, error) {
	val := strings.TrimSpace(query.Get("date"))
	if val == "" {
		return s.showtimes.Today(), nil
	}
	if _, err := showtimes.ParseDate(val); err != nil {
		return "", err
	}
	return val, nil
}

func decodeNameParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "name")
	if raw == "" {
		return "", errors.New("missing cinema name")
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", errors.New("invalid cinema name")
	}
	return name, nil
}
