package cli

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"taskboard-cli/internal/web"

	"github.com/spf13/cobra"
)

func newWebCmd(app *App) *cobra.Command {
	var addr, datastarURL string
	var open bool
	var poll time.Duration

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the board, timeline and critical path to a browser",
		Long: strings.TrimSpace(`
Serve a browser UI for the task API. Pages are rendered on the server; drag a card to move it.
Open pages are patched live over SSE when tasks change, through this server or elsewhere
(picked up by polling every --poll).
`),
		Example: strings.TrimSpace(`
# Serve the configured API on localhost
taskboard web --addr 127.0.0.1:3335

# Against a local dev server, project 1
taskboard --api-url http://127.0.0.1:8001/api --project 1 web --open=false
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("web: missing --addr"))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := web.NewServer(web.ServerConfig{
				Addr:         listenAddr,
				Backend:      app.client(),
				ProjectID:    pid,
				Logger:       stderrLogger(cmd, "taskboard-web "),
				PollInterval: poll,
				DatastarURL:  datastarURL,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer srv.Close()

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := fmt.Sprintf("http://%s/board?project=%d", actualAddr, pid)

			opened := false
			openErr := ""
			if open {
				if err := openURL(url); err != nil {
					openErr = err.Error()
				} else {
					opened = true
				}
			}
			hints := []string{}
			if !opened {
				hints = append(hints, "open "+url)
			}

			_ = writeOut(cmd, app, newResult(map[string]any{
				"addr":      actualAddr,
				"url":       url,
				"apiUrl":    app.apiURL(),
				"projectId": pid,
				"opened":    opened,
				"openError": openErr,
				"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
			}, func() string { return "taskboard web running at " + url }, hints...))

			fmt.Fprintf(cmd.ErrOrStderr(), "taskboard web running at %s (api=%s)\n", url, app.apiURL())
			if openErr != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to open browser: %s\n", openErr)
			}

			hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
			// Open event streams only end once the broadcaster stops.
			hs.RegisterOnShutdown(srv.Close)
			return serveUntilDone(ctx, hs, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3335", "Bind address (host:port or :port)")
	cmd.Flags().BoolVar(&open, "open", true, "Open the UI in your default browser")
	cmd.Flags().DurationVar(&poll, "poll", 5*time.Second, "How often open pages re-check the API for outside changes (0 disables)")
	cmd.Flags().StringVar(&datastarURL, "datastar-url", envOr("TASKBOARD_DATASTAR_URL", web.DefaultDatastarURL), "Where pages load the datastar client from")
	return cmd
}

func openURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Run()
	case "windows":
		return exec.Command("cmd", "/c", "start", "", url).Run()
	default:
		return exec.Command("xdg-open", url).Run()
	}
}
