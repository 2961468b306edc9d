package titlematch

import (
	"log"
	"math"
	"strconv"

	"github.com/Clark-Hu/seances/internal/domain"
)

// Thresholds holds the empirically tuned matching constants.
type Thresholds struct {
	MinScore        float64
	ShortRatio      float64
	ShortFloor      int
	MinOverlap      float64
	YearWindow      int
	YearBoost       float64
	YearRejectGap   int
	YearRejectBelow float64
}

// DefaultThresholds returns the production matching constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinScore:        0.70,
		ShortRatio:      0.6,
		ShortFloor:      4,
		MinOverlap:      0.6,
		YearWindow:      1,
		YearBoost:       0.15,
		YearRejectGap:   6,
		YearRejectBelow: 0.95,
	}
}

// Reject reasons reported by Rank.
const (
	RejectTooShort     = "too_short"
	RejectLowOverlap   = "low_token_overlap"
	RejectYearMismatch = "year_mismatch"
)

// Scored is one ranked candidate.
type Scored struct {
	Candidate domain.Candidate
	Score     float64
	Rejected  string
}

// Scorer picks the best metadata candidate for a scraped title.
type Scorer struct {
	th     Thresholds
	logger *log.Logger
}

// NewScorer builds a scorer. Zero-valued thresholds fall back to defaults.
func NewScorer(th Thresholds, logger *log.Logger) *Scorer {
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scorer{th: th, logger: logger}
}

// Thresholds exposes the active constants.
func (s *Scorer) Thresholds() Thresholds {
	return s.th
}

// Rank scores every candidate against queryTitle in input order.
// A yearHint of zero disables the year adjustment.
func (s *Scorer) Rank(candidates []domain.Candidate, queryTitle string, yearHint int) []Scored {
	queryKey := Normalize(queryTitle)
	queryTokens := Tokens(queryKey)
	multiToken := len(queryTokens) >= 2
	minLen := s.th.ShortFloor
	if byRatio := int(math.Floor(s.th.ShortRatio * float64(len(queryKey)))); byRatio > minLen {
		minLen = byRatio
	}

	ranked := make([]Scored, 0, len(candidates))
	for _, cand := range candidates {
		titleKey := Normalize(cand.Title)
		origKey := Normalize(cand.OriginalTitle)
		entry := Scored{Candidate: cand}

		if multiToken {
			if len(titleKey) < minLen && len(origKey) < minLen {
				entry.Rejected = RejectTooShort
				ranked = append(ranked, entry)
				continue
			}
			overlap := math.Max(tokenOverlap(queryTokens, titleKey), tokenOverlap(queryTokens, origKey))
			if overlap < s.th.MinOverlap {
				entry.Rejected = RejectLowOverlap
				ranked = append(ranked, entry)
				continue
			}
		}

		score := 1.0
		if titleKey != queryKey && origKey != queryKey {
			score = math.Max(Similarity(queryKey, titleKey), Similarity(queryKey, origKey))
		}

		if yearHint > 0 {
			if year, ok := releaseYear(cand.ReleaseDate); ok {
				gap := year - yearHint
				if gap < 0 {
					gap = -gap
				}
				switch {
				case gap <= s.th.YearWindow:
					score += s.th.YearBoost
				case gap >= s.th.YearRejectGap && score < s.th.YearRejectBelow:
					entry.Score = score
					entry.Rejected = RejectYearMismatch
					ranked = append(ranked, entry)
					continue
				}
			}
		}

		entry.Score = score
		ranked = append(ranked, entry)
	}
	return ranked
}

// PickBest returns the highest scoring accepted candidate. Ties keep the
// earliest candidate; a best score below MinScore yields no match.
func (s *Scorer) PickBest(candidates []domain.Candidate, queryTitle string, yearHint int) (domain.Candidate, float64, bool) {
	if len(candidates) == 0 {
		return domain.Candidate{}, 0, false
	}

	var (
		best      domain.Candidate
		bestScore = -1.0
		found     bool
	)
	for _, entry := range s.Rank(candidates, queryTitle, yearHint) {
		if entry.Rejected != "" {
			continue
		}
		if entry.Score > bestScore {
			best, bestScore, found = entry.Candidate, entry.Score, true
		}
	}

	if !found || bestScore < s.th.MinScore {
		if found {
			s.logger.Printf("titlematch: no confident match for %q (best %q score=%.3f)", queryTitle, best.Title, bestScore)
		}
		return domain.Candidate{}, 0, false
	}
	return best, bestScore, true
}

func tokenOverlap(queryTokens []string, candKey string) float64 {
	candTokens := Tokens(candKey)
	if len(queryTokens) == 0 || len(candTokens) == 0 {
		return 0
	}
	query := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		query[t] = struct{}{}
	}
	cand := make(map[string]struct{}, len(candTokens))
	for _, t := range candTokens {
		cand[t] = struct{}{}
	}
	shared := 0
	for t := range query {
		if _, ok := cand[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(query))
}

func releaseYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}
