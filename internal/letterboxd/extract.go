package letterboxd

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	ldRatingRe       = regexp.MustCompile(`"ratingValue"\s*:\s*"?(\d+(?:\.\d+)?)"?`)
	fallbackPatterns = []*regexp.Regexp{
		regexp.MustCompile(`data-average-rating="(\d+(?:\.\d+)?)"`),
		regexp.MustCompile(`"averageRating"\s*:\s*"?(\d+(?:\.\d+)?)"?`),
		regexp.MustCompile(`average-rating[^>]*>\s*(\d+(?:\.\d+)?)\s*<`),
	}
)

// ExtractRating finds the average rating in a film page, preferring the
// embedded JSON-LD block over markup patterns.
func ExtractRating(page string) (float64, bool) {
	for _, block := range jsonLDBlocks(page) {
		if v, ok := firstFloat(ldRatingRe, block); ok {
			return v, true
		}
	}
	for _, re := range fallbackPatterns {
		if v, ok := firstFloat(re, page); ok {
			return v, true
		}
	}
	return 0, false
}

func firstFloat(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func jsonLDBlocks(page string) []string {
	var blocks []string
	z := html.NewTokenizer(strings.NewReader(page))
	inLD := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return blocks
		case html.StartTagToken:
			tok := z.Token()
			inLD = tok.Data == "script" && hasAttr(tok, "type", "application/ld+json")
		case html.TextToken:
			if inLD {
				blocks = append(blocks, string(z.Text()))
			}
		case html.EndTagToken:
			inLD = false
		}
	}
}

func hasAttr(tok html.Token, key, value string) bool {
	for _, attr := range tok.Attr {
		if attr.Key == key && strings.EqualFold(strings.TrimSpace(attr.Val), value) {
			return true
		}
	}
	return false
}
