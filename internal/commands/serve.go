package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kittclouds/bookshelf/internal/httpapi"
	"github.com/kittclouds/bookshelf/internal/metrics"
	"github.com/kittclouds/bookshelf/internal/runner/serve"
)

func addServe(topLevel *cobra.Command, ro *rootOptions) {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The server starts while the schema is still being created;
			// /readyz reports when it is usable.
			e, err := openEnv(ctx, cmd, ro, false)
			if err != nil {
				return err
			}
			defer e.close()

			addr := e.cfg.HTTPListen
			if listen != "" {
				addr = listen
			}
			m := metrics.NewCollector("bookshelf")

			r := serve.Serve{
				Addr: addr,
				Deps: httpapi.Deps{
					Store:          e.store,
					Importer:       e.importer(m),
					Metrics:        m,
					Version:        Version,
					RequestTimeout: e.cfg.HTTPRequestTimeout,
				},
				ShutdownTimeout: e.cfg.ShutdownTimeout,
				Log:             e.log,
			}
			return r.Do(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address, overrides http.listen.")
	topLevel.AddCommand(cmd)
}
