package allocine

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gocolly/colly/v2"

	"github.com/Clark-Hu/seances/internal/domain"
)

var clockRe = regexp.MustCompile(`\b(\d{1,2})[:h](\d{2})\b`)

// FetchListingsHTML scrapes the venue page, which only lists today's
// sessions.
func (c *Client) FetchListingsHTML(ctx context.Context, venueID string) ([]domain.RawListing, error) {
	collector := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	)
	collector.SetRequestTimeout(c.timeout)

	acc := newAccumulator(venueID)
	cards := 0
	collector.OnHTML("div.movie-card-theater", func(e *colly.HTMLElement) {
		cards++
		title := strings.TrimSpace(e.DOM.Find("h2.meta-title a, a.meta-title-link").First().Text())
		if title == "" {
			title = domain.UnknownTitle
		}

		var found []string
		e.ForEach(".showtimes-hour-item-value", func(_ int, span *colly.HTMLElement) {
			if hhmm, ok := parseClock(span.Text); ok {
				found = append(found, hhmm)
			}
		})
		if len(found) == 0 {
			for _, m := range clockRe.FindAllStringSubmatch(e.Text, -1) {
				if hhmm, ok := clockFromParts(m[1], m[2]); ok {
					found = append(found, hhmm)
				}
			}
		}
		for _, hhmm := range found {
			acc.add(title, hhmm, 0)
		}
	})

	var visitErr error
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			visitErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		visitErr = err
	})

	target := fmt.Sprintf("%s/seance/salle_gen_csalle=%s.html", c.baseURL, url.PathEscape(venueID))
	if err := collector.Visit(target); err != nil {
		if visitErr != nil {
			return nil, fmt.Errorf("scrape %s: %w", venueID, visitErr)
		}
		return nil, fmt.Errorf("scrape %s: %w", venueID, err)
	}
	if cards == 0 {
		return nil, ErrNoListings
	}
	return acc.listings(), nil
}

func parseClock(text string) (string, bool) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return clockFromParts(m[1], m[2])
}

func clockFromParts(h, m string) (string, bool) {
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
