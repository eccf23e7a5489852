package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskboard-cli/internal/devserver"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr, dbPath, seedPath, token string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local task API backed by SQLite (development stand-in)",
		Long: strings.TrimSpace(`
Run a development copy of the task REST API. An empty database is seeded with demo data
(or with --seed <file.yaml>). Without --db the data lives in memory and is gone on exit.
`),
		Example: strings.TrimSpace(`
taskboard serve --addr 127.0.0.1:8001
taskboard serve --db ./tasks.db --seed ./fixtures.yaml --require-token secret
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := stderrLogger(cmd, "taskboard-api ")

			db, err := devserver.OpenDB(ctx, dbPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()

			projects, err := db.Projects(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			seeded := false
			if len(projects) == 0 {
				seed, err := devserver.DemoSeed()
				if p := strings.TrimSpace(seedPath); p != "" {
					seed, err = devserver.LoadSeedFile(p)
				}
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := seed.Apply(ctx, db, time.Now()); err != nil {
					return writeErr(cmd, fmt.Errorf("apply seed: %w", err))
				}
				seeded = true
			}

			ln, err := net.Listen("tcp", strings.TrimSpace(addr))
			if err != nil {
				return writeErr(cmd, err)
			}
			apiURL := "http://" + ln.Addr().String() + "/api"
			srv := &http.Server{
				Handler:           devserver.New(db, devserver.Options{Token: token, Logger: logger}).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			_ = writeOut(cmd, app, newResult(map[string]any{
				"addr":   ln.Addr().String(),
				"apiUrl": apiURL,
				"seeded": seeded,
				"db":     dbPath,
			}, func() string { return "task API listening on " + apiURL }, "taskboard --api-url "+apiURL+" board"))

			return serveUntilDone(ctx, srv, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8001", "Bind address (host:port or :port)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file (default: in memory)")
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML seed applied to an empty database (default: built-in demo data)")
	cmd.Flags().StringVar(&token, "require-token", envOr("TASKBOARD_SERVE_TOKEN", ""), "Require this bearer token on every request")
	return cmd
}

// serveUntilDone serves until ctx is cancelled, then shuts down gracefully.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
