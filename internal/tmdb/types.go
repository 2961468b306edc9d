package tmdb

import (
	"strings"

	"github.com/Clark-Hu/seances/internal/domain"
)

type searchResponse struct {
	Page    int            `json:"page"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
}

func (r searchResponse) candidates() []domain.Candidate {
	out := make([]domain.Candidate, 0, len(r.Results))
	for _, res := range r.Results {
		title := strings.TrimSpace(res.Title)
		original := strings.TrimSpace(res.OriginalTitle)
		if res.ID <= 0 || (title == "" && original == "") {
			continue
		}
		out = append(out, domain.Candidate{
			ExternalID:    res.ID,
			Title:         title,
			OriginalTitle: original,
			ReleaseDate:   strings.TrimSpace(res.ReleaseDate),
		})
	}
	return out
}

// Details is the movie payload returned by /movie/{id} with credits and images.
type Details struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	OriginalLanguage string  `json:"original_language"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"`
	Runtime          int     `json:"runtime"`
	VoteAverage      float64 `json:"vote_average"`
	PosterPath       string  `json:"poster_path"`
	Genres           []Genre `json:"genres"`
	Credits          Credits `json:"credits"`
	Images           Images  `json:"images"`
}

// Genre is a named TMDB genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Credits lists cast and crew in billing order.
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// CastMember is one billed actor.
type CastMember struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// CrewMember is one crew credit.
type CrewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

// Images holds the alternative artwork of a movie.
type Images struct {
	Posters []Image `json:"posters"`
}

// Image is one artwork file. Language is nil for untagged images.
type Image struct {
	FilePath string  `json:"file_path"`
	Language *string `json:"iso_639_1"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}
