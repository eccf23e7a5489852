package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/format"
	"taskboard-cli/internal/store"
	"taskboard-cli/internal/tui"

	"github.com/spf13/cobra"
)

const (
	defaultAPIURL  = "http://localhost:8001/api"
	requestTimeout = 30 * time.Second
)

type App struct {
	APIURL     string
	Token      string
	Project    string
	Format     string
	PrettyJSON bool
	LogFile    string

	cfg     *store.GlobalConfig
	logger  *log.Logger
	logFile *os.File
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskboard",
		Short:        "Task board client: Kanban board, timeline and critical path",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  taskboard

  # Run a local API with demo data, then point the client at it
  taskboard serve
  taskboard --api-url http://127.0.0.1:8001/api board --project 1

  # Move a task (column name or the id of a card to drop onto)
  taskboard tasks move 7 "In Progress"

  # Direct task lookup (shortcut for: taskboard tasks show <id>)
  taskboard 7
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := store.LoadConfig()
		if err != nil {
			return writeErr(cmd, err)
		}
		app.cfg = cfg
		return app.openLog()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		app.closeLog()
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", envOr("TASKBOARD_API_URL", ""), "Task API base URL (default: config apiUrl, then "+defaultAPIURL+")")
	cmd.PersistentFlags().StringVar(&app.Token, "token", envOr("TASKBOARD_TOKEN", ""), "Bearer token for the task API (default: config token)")
	cmd.PersistentFlags().StringVar(&app.Project, "project", envOr("TASKBOARD_PROJECT", ""), "Project id (default: config project; 0 means all projects)")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TASKBOARD_FORMAT", "json"), "Output format ("+strings.Join(format.Formats, "|")+")")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", envOr("TASKBOARD_LOG_FILE", ""), "Append client logs to this file")

	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newTimelineCmd(app))
	cmd.AddCommand(newCriticalPathCmd(app))
	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newWebCmd(app))

	return cmd
}

func runTUI(cmd *cobra.Command, app *App) error {
	pid, err := app.projectID()
	if err != nil {
		return writeErr(cmd, err)
	}
	st, err := store.Default()
	if err != nil {
		return writeErr(cmd, err)
	}
	state, err := st.LoadTUIState()
	if err != nil {
		// Saved UI state is a convenience; a broken file never blocks the TUI.
		app.logger.Printf("op=load-tui-state err=%v", err)
		state = &store.TUIState{Version: 1}
	}

	opts := tui.Options{
		Backend:        app.client(),
		Store:          st,
		Logger:         app.logger,
		ProjectID:      pid,
		View:           state.View,
		SelectedTaskID: state.SelectedTaskID,
	}
	if strings.TrimSpace(app.Project) == "" && state.ProjectID != 0 {
		opts.ProjectID = state.ProjectID
	}
	if t := app.cfg.TUI; t != nil {
		opts.Theme, opts.Glyphs = t.Theme, t.Glyphs
		if opts.View == "" {
			opts.View = t.DefaultView
		}
	}
	if err := tui.Run(opts); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}

// apiURL resolves flag/env, then the config file, then the default.
func (app *App) apiURL() string {
	if v := strings.TrimSpace(app.APIURL); v != "" {
		return v
	}
	if app.cfg != nil && app.cfg.APIURL != "" {
		return app.cfg.APIURL
	}
	return defaultAPIURL
}

func (app *App) token() string {
	if v := strings.TrimSpace(app.Token); v != "" {
		return v
	}
	if app.cfg != nil {
		return app.cfg.Token
	}
	return ""
}

func (app *App) projectID() (int64, error) {
	if v := strings.TrimSpace(app.Project); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 {
			return 0, fmt.Errorf("--project: expected a numeric id, got %q", v)
		}
		return id, nil
	}
	if app.cfg != nil {
		return app.cfg.CurrentProjectID, nil
	}
	return 0, nil
}

// requireProject is projectID for commands that make no sense across all projects.
func (app *App) requireProject() (int64, error) {
	id, err := app.projectID()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("no project selected; pass --project <id> or run `taskboard config set project <id>`")
	}
	return id, nil
}

func (app *App) client() *api.Client {
	return api.New(app.apiURL(), app.token(), api.WithLogger(app.logger))
}

func (app *App) openLog() error {
	app.logger = log.New(io.Discard, "", 0)
	path := strings.TrimSpace(app.LogFile)
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	app.logFile = f
	app.logger = log.New(f, "taskboard ", log.LstdFlags)
	return nil
}

func (app *App) closeLog() {
	if app.logFile != nil {
		_ = app.logFile.Close()
		app.logFile = nil
	}
}

// stderrLogger is used by the long-running servers, which do not own the terminal.
func stderrLogger(cmd *cobra.Command, prefix string) *log.Logger {
	return log.New(cmd.ErrOrStderr(), prefix, log.LstdFlags)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
