package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newListCmd(opts *options) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved itineraries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := opts.client().List(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(p.Items) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("no itineraries"))
				return nil
			}
			for _, s := range p.Items {
				fmt.Fprintf(out, "%s  %s  %s\n",
					mutedStyle.Render(s.ID.String()),
					titleStyle.Render(s.Title),
					mutedStyle.Render(fmt.Sprintf("%d days · %s", s.TotalDays, s.CreatedAt.Format("2006-01-02"))))
			}
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("page %d · %d of %d", p.Page, len(p.Items), p.Total)))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number, starting at 1")
	cmd.Flags().IntVar(&limit, "limit", 0, "items per page (max 100)")
	return cmd
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <itinerary-id>",
		Short: "Show one itinerary with its day and stop ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			it, err := opts.client().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderItinerary(it))
			return nil
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <itinerary-id>",
		Short: "Export an itinerary as CSV or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			data, err := opts.client().Export(cmd.Context(), id, format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("itinerary id %q is not a UUID", s)
	}
	return id, nil
}
