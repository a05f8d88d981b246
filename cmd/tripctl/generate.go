package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tripplanner/backend/internal/client"
	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/preview"
)

func newGenerateCmd(opts *options) *cobra.Command {
	var (
		days     int
		noStream bool
	)
	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate an itinerary from a natural-language request",
		Example: `  tripctl generate --days 3 京都賞楓
  tripctl generate --days 5 "5-day Kyoto trip" --no-stream`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			c := opts.client()

			var (
				res client.GenerateResult
				err error
			)
			if noStream {
				res, err = c.Generate(cmd.Context(), prompt, days)
			} else {
				res, err = c.GenerateStream(cmd.Context(), prompt, days, livePreview(cmd))
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(res.Title))
			fmt.Fprint(out, renderDays(res.Days, false))
			if res.ID == nil {
				fmt.Fprintln(out, errorStyle.Render("\nthe itinerary was generated but could not be saved"))
				return nil
			}
			fmt.Fprintln(out, mutedStyle.Render("\nsaved as "+res.ID.String()))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 3, "number of days (1-14)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the whole itinerary instead of previewing it live")
	return cmd
}

// livePreview prints a preview frame to stderr whenever the title or the
// number of stops changes.
func livePreview(cmd *cobra.Command) client.RenderFunc {
	var lastTitle string
	lastStops := -1
	return func(s preview.Snapshot) {
		stops := countStops(s.Days)
		if s.Title == lastTitle && stops == lastStops {
			return
		}
		lastTitle, lastStops = s.Title, stops
		fmt.Fprintln(cmd.ErrOrStderr(), renderSnapshot(s))
	}
}

func countStops(days []domain.Day) int {
	n := 0
	for _, d := range days {
		n += len(d.Stops)
	}
	return n
}
