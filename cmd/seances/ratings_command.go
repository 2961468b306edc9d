package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/seances/internal/prefetch"
	"github.com/Clark-Hu/seances/internal/repository"
)

func newRatingsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var ratedOnly bool
	var cursor string

	cmd := &cobra.Command{
		Use:   "ratings",
		Short: "List cached Letterboxd ratings, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if a.RatingStore == nil {
				return errors.New("the memory rating store cannot be listed; set RATING_STORE_URL")
			}
			filters := repository.RatingListFilters{Limit: limit, RatedOnly: ratedOnly}
			if filters.Cursor, err = repository.DecodeCursor(cursor); err != nil {
				return err
			}
			res, err := a.RatingStore.List(cmd.Context(), filters)
			if err != nil {
				return fmt.Errorf("list ratings: %w", err)
			}
			if ctx.wantJSON() {
				return writeJSON(cmd, res)
			}

			rows := make([][]string, 0, len(res.Items))
			for _, e := range res.Items {
				url := "-"
				if e.URL != nil {
					url = *e.URL
				}
				rows = append(rows, []string{
					fmt.Sprint(e.MovieID),
					formatRating(e.Value),
					url,
					e.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"TMDB", "Rating", "URL", "Updated"}, rows, []columnAlignment{alignRight, alignRight}))
			if res.NextCursor != nil {
				fmt.Fprintf(out, "More: --cursor %s\n", *res.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Page size (max 100)")
	cmd.Flags().BoolVar(&ratedOnly, "rated", false, "Only entries that carry a rating")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue from a previous page")
	return cmd
}

func newPrefetchCommand(ctx *commandContext) *cobra.Command {
	var date string
	var maxMovies int
	var offset int
	var sleep time.Duration

	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Warm the rating cache for the titles showing on a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if date == "" {
				date = a.Showtimes.Today()
			}
			report, err := a.Prefetch.Run(cmd.Context(), prefetch.Request{
				Date:      date,
				MaxMovies: maxMovies,
				Offset:    offset,
				Sleep:     sleep,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, report)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD (defaults to today)")
	cmd.Flags().IntVar(&maxMovies, "max-movies", prefetch.DefaultMaxMovies, "Titles per batch")
	cmd.Flags().IntVar(&offset, "offset", 0, "Index of the first title in the batch")
	cmd.Flags().DurationVar(&sleep, "sleep", prefetch.DefaultSleep, "Pause between live fetches")
	return cmd
}
