package domain

// Sentinels used when enrichment is missing or partial.
const (
	UnknownTitle           = "Titre inconnu"
	UnknownDirector        = "Réalisateur inconnu"
	UnknownDuration        = "Durée inconnue"
	DefaultDurationMinutes = 120
	DefaultDurationLabel   = "2h00"
)

// Venue is one configured cinema, identified by its listings-provider id.
type Venue struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// RawListing is a scraped (title, start times) grouping for one venue and date.
type RawListing struct {
	VenueID    string
	Title      string
	StartTimes []string
	YearHint   int
}

// Candidate is a metadata-provider search result considered for matching.
type Candidate struct {
	ExternalID    int64
	Title         string
	OriginalTitle string
	ReleaseDate   string
}

// Session is one screening, formatted as HH:MM.
type Session struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// EnrichedMovie is the public record returned per title and venue.
type EnrichedMovie struct {
	ExternalID      *int64    `json:"tmdb_id"`
	Title           string    `json:"title"`
	Director        string    `json:"director"`
	Duration        string    `json:"duration"`
	DurationMinutes int       `json:"duration_minutes"`
	Sessions        []Session `json:"showtimes"`
	Actors          []string  `json:"actors"`
	PosterURL       *string   `json:"poster_url"`
	ReleaseDate     string    `json:"release_date"`
	Overview        string    `json:"overview"`
	VoteAverage     float64   `json:"vote_average"`
	RatingValue     *float64  `json:"letterboxd_rating"`
	RatingURL       *string   `json:"letterboxd_url"`
	Genres          []string  `json:"genres"`
}

// UnknownMovie builds the fallback record used when a title cannot be resolved.
func UnknownMovie(title string) EnrichedMovie {
	return EnrichedMovie{
		Title:           title,
		Director:        UnknownDirector,
		Duration:        DefaultDurationLabel,
		DurationMinutes: DefaultDurationMinutes,
		Sessions:        []Session{},
		Actors:          []string{},
		Genres:          []string{},
	}
}

// ScreeningMinutes is the duration used to compute session end times.
func (m EnrichedMovie) ScreeningMinutes() int {
	if m.DurationMinutes > 0 {
		return m.DurationMinutes
	}
	return DefaultDurationMinutes
}
