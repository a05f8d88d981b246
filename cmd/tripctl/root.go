package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tripplanner/backend/internal/client"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	server string
	token  string
}

func (o *options) client() *client.Client {
	var opts []client.Option
	if o.token != "" {
		opts = append(opts, client.WithToken(o.token))
	}
	return client.New(o.server, opts...)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "tripctl",
		Short: "Generate and edit travel itineraries from the terminal",
		Long: `tripctl talks to a trip planner API server.

Generate an itinerary with a live preview, list and show saved ones,
and edit, delete or move their stops.

The server defaults to $TRIPCTL_SERVER, then http://localhost:8080.
A bearer token may be passed with --token or $TRIPCTL_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("TRIPCTL_SERVER", "http://localhost:8080"), "API server base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("TRIPCTL_TOKEN"), "bearer token")

	root.AddCommand(
		newGenerateCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newExportCmd(opts),
		newStopCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
