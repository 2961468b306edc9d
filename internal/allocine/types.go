package allocine

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/Clark-Hu/seances/internal/domain"
)

type showtimesPage struct {
	Pagination struct {
		TotalPages flexInt `json:"totalPages"`
	} `json:"pagination"`
	Results []showtimesResult `json:"results"`
}

type showtimesResult struct {
	Movie struct {
		Title          string  `json:"title"`
		ProductionYear flexInt `json:"productionYear"`
	} `json:"movie"`
	Showtimes map[string][]struct {
		StartsAt string `json:"startsAt"`
	} `json:"showtimes"`
}

// flexInt accepts numbers, numeric strings and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexInt(n)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	v, err := n.Float64()
	if err != nil {
		return err
	}
	*f = flexInt(int(v))
	return nil
}

// accumulator groups start times by exact title in first-seen order.
type accumulator struct {
	venueID string
	order   []string
	times   map[string]map[string]struct{}
	years   map[string]int
}

func newAccumulator(venueID string) *accumulator {
	return &accumulator{
		venueID: venueID,
		times:   make(map[string]map[string]struct{}),
		years:   make(map[string]int),
	}
}

func (a *accumulator) add(title, hhmm string, year int) {
	set, ok := a.times[title]
	if !ok {
		set = make(map[string]struct{})
		a.times[title] = set
		a.order = append(a.order, title)
	}
	set[hhmm] = struct{}{}
	if a.years[title] == 0 && year > 0 {
		a.years[title] = year
	}
}

func (a *accumulator) listings() []domain.RawListing {
	out := make([]domain.RawListing, 0, len(a.order))
	for _, title := range a.order {
		starts := make([]string, 0, len(a.times[title]))
		for hhmm := range a.times[title] {
			starts = append(starts, hhmm)
		}
		sort.Strings(starts)
		out = append(out, domain.RawListing{
			VenueID:    a.venueID,
			Title:      title,
			StartTimes: starts,
			YearHint:   a.years[title],
		})
	}
	return out
}
