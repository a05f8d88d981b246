package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/editor"
)

func newStopCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Edit, delete or move the stops of a saved itinerary",
	}
	cmd.AddCommand(newStopEditCmd(opts), newStopDeleteCmd(opts), newStopMoveCmd(opts))
	return cmd
}

// withController loads the itinerary, runs fn against an editor on it and
// prints the resulting working copy. A failure message set by the editor is
// printed before the error is returned.
func withController(cmd *cobra.Command, opts *options, rawID string, fn func(ctx context.Context, ed *editor.Controller) error) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	c := opts.client()
	it, err := c.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	ed := editor.New(c, it)
	if err := fn(cmd.Context(), ed); err != nil {
		if msg := ed.Message(); msg != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(msg))
		}
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderItinerary(ed.Itinerary()))
	return nil
}

func newStopEditCmd(opts *options) *cobra.Command {
	var (
		name, description string
		duration          int
	)
	cmd := &cobra.Command{
		Use:   "edit <itinerary-id> <stop-id>",
		Short: "Change a stop's name, description or duration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.StopPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("duration") {
				patch.DurationMinutes = &duration
			}
			if patch.Empty() {
				return errors.New("nothing to change: pass --name, --description or --duration")
			}
			return withController(cmd, opts, args[0], func(ctx context.Context, ed *editor.Controller) error {
				return ed.EditStop(ctx, args[1], patch)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().IntVar(&duration, "duration", 0, "new duration in minutes")
	return cmd
}

func newStopDeleteCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <itinerary-id> <stop-id>",
		Short: "Delete a stop; every day keeps at least one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm := func(stop domain.Stop) bool {
				if yes {
					return true
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s [y/N] ", editor.MsgConfirmDelete, stop.Name)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				answer = strings.ToLower(strings.TrimSpace(answer))
				return answer == "y" || answer == "yes"
			}
			return withController(cmd, opts, args[0], func(ctx context.Context, ed *editor.Controller) error {
				return ed.DeleteStop(ctx, args[1], confirm)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newStopMoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "move <itinerary-id> <stop-id> <target-stop-id>",
		Short: "Move a stop to another stop's position, in the same or another day",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd, opts, args[0], func(ctx context.Context, ed *editor.Controller) error {
				return ed.Move(ctx, args[1], args[2])
			})
		},
	}
}
