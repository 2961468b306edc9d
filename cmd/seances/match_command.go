package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/seances/internal/titlematch"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "match <title>",
		Short: "Show how a listing title scores against TMDB search results",
		Long: `Run the title matcher for one listing title and print every candidate with
its score or rejection reason, followed by the record the resolver would return.

Examples:
  seances match "Oppenheimer"
  seances match "Le Mépris (version restaurée)" --year 1963`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			query, ranked, err := a.Resolver.Candidates(cmd.Context(), title, year)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			movie, err := a.Resolver.Resolve(cmd.Context(), title, year)
			if err != nil {
				return fmt.Errorf("resolve: %w", err)
			}

			if ctx.wantJSON() {
				return writeJSON(cmd, map[string]any{
					"query":      query,
					"candidates": ranked,
					"match":      movie,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Query: %q (year hint %d)\n", query, year)
			fmt.Fprintln(out, renderTable(
				[]string{"#", "TMDB", "Title", "Original title", "Release", "Score", "Verdict"},
				candidateRows(ranked),
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight},
			))
			if movie == nil || movie.ExternalID == nil {
				fmt.Fprintln(out, "No confident match.")
				return nil
			}
			fmt.Fprintf(out, "Match: %s (tmdb %d), %s, %s\n", movie.Title, *movie.ExternalID, movie.Director, movie.Duration)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Production year hint from the listing")
	return cmd
}

func candidateRows(ranked []titlematch.Scored) [][]string {
	rows := make([][]string, 0, len(ranked))
	for i, s := range ranked {
		verdict := "ok"
		if s.Rejected != "" {
			verdict = s.Rejected
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(s.Candidate.ExternalID, 10),
			s.Candidate.Title,
			s.Candidate.OriginalTitle,
			s.Candidate.ReleaseDate,
			strconv.FormatFloat(s.Score, 'f', 3, 64),
			verdict,
		})
	}
	return rows
}
