package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/workflow"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Task commands",
	}
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksTreeCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksUpdateCmd(app))
	cmd.AddCommand(newTasksDeleteCmd(app))
	return cmd
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("expected a task id, got %q", s)
	}
	return id, nil
}

// fetchTask maps the API's 404 onto the cli's notFoundError.
func fetchTask(ctx context.Context, c *api.Client, id int64) (model.Task, error) {
	t, err := c.FetchTask(ctx, id)
	if api.IsNotFound(err) {
		return model.Task{}, errNotFound("task", id)
	}
	return t, err
}

func newTasksListCmd(app *App) *cobra.Command {
	var status string
	var topLevel bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks of the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			tasks, err := app.client().FetchAllTasks(ctx, pid)
			if err != nil {
				return writeErr(cmd, err)
			}

			h := hierarchy.Build(tasks)
			src := h.Tasks()
			if topLevel {
				src = h.TopLevel()
			}
			out := make([]model.Task, 0, len(src))
			for _, t := range src {
				if status != "" && workflow.ColumnFor(t.Status) != workflow.ColumnID(status) {
					continue
				}
				out = append(out, t)
			}
			return writeOut(cmd, app, newResult(out, func() string {
				rows := make([][]string, 0, len(out))
				for _, t := range out {
					rows = append(rows, taskRow(t))
				}
				return table(taskHeader, rows)
			}))
		},
	}

	cmd.Flags().StringVar(&status, "status", "", `Only tasks in this column ("To Do", "In Progress", "Done", "Invalid Status")`)
	cmd.Flags().BoolVar(&topLevel, "top-level", false, "Omit subtasks")
	return cmd
}

type treeNode struct {
	Task     model.Task `json:"task"`
	Subtasks string     `json:"subtasks,omitempty"`
	Children []treeNode `json:"children,omitempty"`
}

func buildTree(h hierarchy.Hierarchy, t model.Task, seen map[int64]bool) treeNode {
	n := treeNode{Task: t}
	seen[t.ID] = true
	if st := h.SubtaskStats(t.ID); st.Total > 0 {
		n.Subtasks = fmt.Sprintf("%d/%d", st.Completed, st.Total)
	}
	for _, c := range h.ChildrenOf(t.ID) {
		if seen[c.ID] {
			continue
		}
		n.Children = append(n.Children, buildTree(h, c, seen))
	}
	return n
}

func renderTree(b *strings.Builder, nodes []treeNode, prefix string) {
	for i, n := range nodes {
		branch, next := "├─ ", "│  "
		if i == len(nodes)-1 {
			branch, next = "└─ ", "   "
		}
		mark := "[ ]"
		switch {
		case n.Task.Status == model.StatusDone:
			mark = "[x]"
		case n.Task.Status == model.StatusInProgress:
			mark = "[~]"
		case !n.Task.Status.Valid():
			mark = "[?]"
		}
		fmt.Fprintf(b, "%s%s%s #%d %s", prefix, branch, mark, n.Task.ID, n.Task.Title)
		if n.Subtasks != "" {
			fmt.Fprintf(b, " (%s)", n.Subtasks)
		}
		b.WriteByte('\n')
		renderTree(b, n.Children, prefix+next)
	}
}

func newTasksTreeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show tasks with their subtasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			tasks, err := app.client().FetchAllTasks(ctx, pid)
			if err != nil {
				return writeErr(cmd, err)
			}

			h := hierarchy.Build(tasks)
			seen := map[int64]bool{}
			nodes := []treeNode{}
			for _, t := range h.TopLevel() {
				nodes = append(nodes, buildTree(h, t, seen))
			}
			// Subtasks whose parent is not in the snapshot.
			var orphans []treeNode
			for _, t := range h.Tasks() {
				if !seen[t.ID] {
					orphans = append(orphans, buildTree(h, t, seen))
				}
			}
			return writeOut(cmd, app, newResult(map[string]any{"tasks": nodes, "orphans": orphans}, func() string {
				var b strings.Builder
				renderTree(&b, nodes, "")
				if len(orphans) > 0 {
					b.WriteString("\norphaned subtasks:\n")
					renderTree(&b, orphans, "")
				}
				return b.String()
			}))
		},
	}
	return cmd
}

type taskDetail struct {
	Task      model.Task      `json:"task"`
	Column    string          `json:"column"`
	Subtasks  hierarchy.Stats `json:"subtasks"`
	Children  []model.Task    `json:"children"`
	DependsOn []model.Task    `json:"dependsOn"`
}

func (d taskDetail) text() string {
	t := d.Task
	var b strings.Builder
	if t.TaskNumber != "" {
		fmt.Fprintf(&b, "%s ", t.TaskNumber)
	}
	fmt.Fprintf(&b, "#%d %s\n", t.ID, t.Title)
	fmt.Fprintf(&b, "status:    %s (%s)\n", t.Status.Label(), d.Column)
	fmt.Fprintf(&b, "schedule:  %s .. %s (%dd)\n", shortDate(t.StartDate), shortDate(t.EndDate()), t.DurationDays)
	fmt.Fprintf(&b, "progress:  %d%%\n", t.Progress)
	if !t.DueDate.IsZero() {
		fmt.Fprintf(&b, "due:       %s\n", shortDate(t.DueDate))
	}
	if t.Assignee != "" {
		fmt.Fprintf(&b, "assignee:  @%s\n", t.Assignee)
	}
	if t.ParentID != 0 {
		fmt.Fprintf(&b, "parent:    #%d\n", t.ParentID)
	}
	if d.Subtasks.Total > 0 {
		fmt.Fprintf(&b, "subtasks:  %d/%d done\n", d.Subtasks.Completed, d.Subtasks.Total)
		for _, c := range d.Children {
			fmt.Fprintf(&b, "  - #%d %s [%s]\n", c.ID, c.Title, c.Status.Label())
		}
	}
	for _, p := range d.DependsOn {
		fmt.Fprintf(&b, "after:     #%d %s\n", p.ID, p.Title)
	}
	if desc := strings.TrimSpace(t.Description); desc != "" {
		b.WriteString("\n" + desc + "\n")
	}
	return b.String()
}

func newTasksShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its subtasks and dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			c := app.client()
			t, err := fetchTask(ctx, c, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			tasks, err := c.FetchAllTasks(ctx, t.ProjectID)
			if err != nil {
				return writeErr(cmd, err)
			}

			h := hierarchy.Build(tasks)
			d := taskDetail{
				Task:      t,
				Column:    workflow.ColumnFor(t.Status).String(),
				Subtasks:  h.SubtaskStats(id),
				Children:  h.ChildrenOf(id),
				DependsOn: h.Predecessors(id),
			}
			return writeOut(cmd, app, newResult(d, d.text))
		},
	}
	return cmd
}

// statusAliases lets people type a column the way they say it.
var statusAliases = map[string]workflow.ColumnID{
	"todo":        workflow.ColumnToDo,
	"to-do":       workflow.ColumnToDo,
	"to do":       workflow.ColumnToDo,
	"in-progress": workflow.ColumnInProgress,
	"in progress": workflow.ColumnInProgress,
	"inprogress":  workflow.ColumnInProgress,
	"doing":       workflow.ColumnInProgress,
	"done":        workflow.ColumnDone,
}

func parseMoveTarget(s string) workflow.DropTarget {
	if col, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return workflow.ColumnTarget(col)
	}
	return workflow.ParseDropTarget(s)
}

func newTasksMoveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <task-id> <column|card-id>",
		Short: "Move a task to a column, or onto another card's column",
		Long: strings.TrimSpace(`
Move a task the way a board drag does. The target is a column ("To Do", "In Progress",
"Done"; todo/doing/done also work) or the id of another task, meaning "drop onto that card".
Moving into "Invalid Status" is refused. Moving to the task's current column is a no-op.
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			target := parseMoveTarget(args[1])

			ctx, cancel := requestContext(cmd)
			defer cancel()
			c := app.client()
			t, err := fetchTask(ctx, c, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			tasks, err := c.FetchAllTasks(ctx, t.ProjectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			refetch := workflow.RefetchFunc(func(ctx context.Context) ([]model.Task, error) {
				return c.FetchAllTasks(ctx, t.ProjectID)
			})
			out := workflow.Commit(ctx, c, refetch, hierarchy.Build(tasks), id, target)
			tr := out.Transition

			switch {
			case out.Err != nil && out.Updated:
				// The update landed; only the reload failed.
				app.logger.Printf("op=refetch-after-move task=%d err=%v", id, out.Err)
			case out.Err != nil:
				return writeErr(cmd, out.Err)
			case tr.Decision == workflow.DecisionUnresolved:
				if target.Kind == workflow.TargetTask {
					return writeErr(cmd, errNotFound("target task", target.TaskID))
				}
				return writeErr(cmd, errNotFound("task", id))
			case tr.Decision == workflow.DecisionRejected:
				return writeErr(cmd, moveRejectedError{taskID: id, to: string(tr.To)})
			}

			moved := t
			if out.Updated {
				moved = out.Task
			}
			data := map[string]any{
				"decision": tr.Decision.String(),
				"from":     tr.From,
				"to":       tr.To,
				"task":     moved,
			}
			var hints []string
			if tr.Decision == workflow.DecisionNoop {
				hints = append(hints, fmt.Sprintf("#%d is already %s", id, tr.To))
			}
			return writeOut(cmd, app, newResult(data, func() string {
				if tr.Decision == workflow.DecisionNoop {
					return fmt.Sprintf("#%d unchanged (%s)", id, tr.To)
				}
				return fmt.Sprintf("#%d %s → %s", id, tr.From.Label(), tr.To)
			}, hints...))
		},
	}
	return cmd
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var title, description, status, priority, start string
	var parent int64
	var duration int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task (or a subtask with --parent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			nt := model.NewTask{
				ParentID:     parent,
				Title:        strings.TrimSpace(title),
				Description:  description,
				Status:       model.Status(strings.TrimSpace(status)),
				Priority:     strings.TrimSpace(priority),
				DurationDays: duration,
			}
			if nt.Status != "" && !nt.Status.Valid() {
				if col, ok := statusAliases[strings.ToLower(string(nt.Status))]; ok {
					nt.Status = model.Status(col)
				} else {
					return writeErr(cmd, fmt.Errorf("--status: expected To Do|In Progress|Done, got %q", status))
				}
			}
			if s := strings.TrimSpace(start); s != "" {
				d, ok := model.ParseDate(s)
				if !ok {
					return writeErr(cmd, fmt.Errorf("--start: expected YYYY-MM-DD, got %q", start))
				}
				nt.StartDate = d
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()
			c := app.client()

			pid, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			nt.ProjectID = pid
			if parent != 0 {
				p, err := fetchTask(ctx, c, parent)
				if err != nil {
					return writeErr(cmd, err)
				}
				// Subtasks live in their parent's project.
				nt.ProjectID = p.ProjectID
			}
			if nt.ProjectID == 0 {
				return writeErr(cmd, errors.New("no project selected; pass --project <id> or --parent <task-id>"))
			}

			t, err := c.CreateTask(ctx, nt)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, newResult(t, func() string {
				return fmt.Sprintf("created #%d %s", t.ID, t.Title)
			}))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&description, "description", "", "Markdown description")
	cmd.Flags().StringVar(&status, "status", "", "Initial status (default To Do)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (Low|Medium|High)")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&duration, "duration", 1, "Duration in days")
	cmd.Flags().Int64Var(&parent, "parent", 0, "Parent task id (creates a subtask)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTasksUpdateCmd(app *App) *cobra.Command {
	var title, description, priority, start string
	var duration, progress int

	cmd := &cobra.Command{
		Use:     "update <task-id>",
		Aliases: []string{"edit"},
		Short:   "Edit a task's title, description, priority, dates or progress",
		Long: strings.TrimSpace(`
Edit the fields given as flags; everything else is left as it is. Status changes go through
"tasks move" so the workflow rules apply.
`),
		Example: strings.TrimSpace(`
taskboard tasks update 7 --title "Refresh press kit" --priority High
taskboard tasks update 7 --start 2025-04-01 --duration 5 --progress 20
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			flags := cmd.Flags()
			var p model.TaskPatch
			if flags.Changed("title") {
				t := strings.TrimSpace(title)
				if t == "" {
					return writeErr(cmd, errors.New("--title: cannot be empty"))
				}
				p.Title = &t
			}
			if flags.Changed("description") {
				p.Description = &description
			}
			if flags.Changed("priority") {
				pr := strings.TrimSpace(priority)
				p.Priority = &pr
			}
			if flags.Changed("start") {
				d, ok := model.ParseDate(start)
				if !ok {
					return writeErr(cmd, fmt.Errorf("--start: expected YYYY-MM-DD, got %q", start))
				}
				p.StartDate = &d
			}
			if flags.Changed("duration") {
				if duration < 1 {
					return writeErr(cmd, fmt.Errorf("--duration: expected at least 1 day, got %d", duration))
				}
				p.DurationDays = &duration
			}
			if flags.Changed("progress") {
				if progress < 0 || progress > 100 {
					return writeErr(cmd, fmt.Errorf("--progress: expected 0-100, got %d", progress))
				}
				p.Progress = &progress
			}
			if p.Empty() {
				return writeErr(cmd, errors.New("nothing to update; pass at least one of --title, --description, --priority, --start, --duration, --progress"))
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()
			c := app.client()
			if _, err := c.UpdateTask(ctx, id, p); err != nil {
				if api.IsNotFound(err) {
					err = errNotFound("task", id)
				}
				return writeErr(cmd, err)
			}
			// Report what the server stored, not what was sent.
			t, err := fetchTask(ctx, c, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, newResult(t, func() string {
				return fmt.Sprintf("updated #%d %s\n%s", t.ID, t.Title, table(taskHeader, [][]string{taskRow(t)}))
			}))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New markdown description (empty clears it)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (Low|Medium|High)")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD); the due date follows")
	cmd.Flags().IntVar(&duration, "duration", 1, "Duration in days")
	cmd.Flags().IntVar(&progress, "progress", 0, "Progress percent (0-100)")
	return cmd
}

func newTasksDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task (and its subtasks)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				return writeErr(cmd, fmt.Errorf("refusing to delete #%d without --yes", id))
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			if err := app.client().DeleteTask(ctx, id); err != nil {
				if api.IsNotFound(err) {
					err = errNotFound("task", id)
				}
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, newResult(map[string]any{"id": id, "deleted": true}, func() string {
				return fmt.Sprintf("deleted #%d", id)
			}))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}
