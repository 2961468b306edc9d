package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/seances/internal/domain"
	"github.com/Clark-Hu/seances/internal/showtimes"
)

func newShowtimesCommand(ctx *commandContext) *cobra.Command {
	var date string
	var cinema string

	cmd := &cobra.Command{
		Use:   "showtimes",
		Short: "Fetch and enrich the listings of one date",
		Long: `Fetch listings for every configured cinema (or one with --cinema), resolve
each title against TMDB and print the enriched sessions.

Examples:
  seances showtimes                          # Today, all cinemas
  seances showtimes --date 2025-03-14
  seances showtimes --cinema "Le Champo"     # Single cinema, like /test-cinema`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if date != "" {
				if _, err := showtimes.ParseDate(date); err != nil {
					return err
				}
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if date == "" {
				date = a.Showtimes.Today()
			}

			var result showtimes.Result
			if cinema != "" {
				venue, ok := a.Showtimes.VenueByName(cinema)
				if !ok {
					return fmt.Errorf("unknown cinema %q (see `seances cinemas`)", cinema)
				}
				result = showtimes.Result{venue.Name: a.Showtimes.Venue(cmd.Context(), venue, date)}
			} else {
				result, err = a.Showtimes.Aggregate(cmd.Context(), date)
				if err != nil {
					return err
				}
			}

			if ctx.wantJSON() {
				return writeJSON(cmd, map[string]any{"date": date, "showtimes": result})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Showtimes for %s\n", date)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Cinema", "Title", "Director", "Duration", "Sessions", "TMDB", "Rating"},
				showtimeRows(result, venueOrder(a.Showtimes.Venues())),
				nil,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD (defaults to today)")
	cmd.Flags().StringVar(&cinema, "cinema", "", "Restrict to one configured cinema name")
	return cmd
}

func venueOrder(venues []domain.Venue) map[string]int {
	order := make(map[string]int, len(venues))
	for i, v := range venues {
		order[v.Name] = i
	}
	return order
}

func showtimeRows(result showtimes.Result, order map[string]int) [][]string {
	names := make([]string, 0, len(result))
	for name := range result {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool { return order[names[i]] < order[names[j]] })

	var rows [][]string
	for _, name := range names {
		for _, m := range result[name] {
			rows = append(rows, []string{
				name,
				m.Title,
				m.Director,
				m.Duration,
				formatSessions(m.Sessions),
				formatID(m.ExternalID),
				formatRating(m.RatingValue),
			})
		}
	}
	return rows
}

func formatSessions(sessions []domain.Session) string {
	parts := make([]string, 0, len(sessions))
	for _, s := range sessions {
		parts = append(parts, s.Start+"-"+s.End)
	}
	return strings.Join(parts, " ")
}

func formatID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func formatRating(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
