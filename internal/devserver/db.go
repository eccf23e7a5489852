package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taskboard-cli/internal/model"
)

var errNotFound = errors.New("not found")

// DB is the development server's task store.
type DB struct {
	sql *sql.DB
}

// OpenDB opens (and migrates) a SQLite database. An empty path or ":memory:" gives a private
// in-memory database.
func OpenDB(ctx context.Context, path string) (*DB, error) {
	memory := strings.TrimSpace(path) == "" || path == ":memory:"
	if memory {
		path = ":memory:"
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{"PRAGMA foreign_keys=ON;", "PRAGMA busy_timeout=5000;"}
	if memory {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	} else {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL DEFAULT 0,
			task_number TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'To Do',
			priority TEXT NOT NULL DEFAULT 'Medium',
			start_date TEXT NOT NULL DEFAULT '',
			due_date TEXT NOT NULL DEFAULT '',
			duration INTEGER NOT NULL DEFAULT 1,
			progress INTEGER NOT NULL DEFAULT 0,
			parent_id INTEGER NOT NULL DEFAULT 0,
			assignee TEXT NOT NULL DEFAULT '',
			is_critical INTEGER NOT NULL DEFAULT 0,
			total_float INTEGER,
			updated_at_unixms INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);`,
		`CREATE TABLE IF NOT EXISTS deps (
			task_id INTEGER NOT NULL,
			depends_on INTEGER NOT NULL,
			PRIMARY KEY(task_id, depends_on)
		);`,
		`CREATE TABLE IF NOT EXISTS reports (
			project_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			json TEXT NOT NULL,
			PRIMARY KEY(project_id, kind)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const taskColumns = `id, project_id, task_number, title, description, status, priority, start_date, due_date,
	duration, progress, parent_id, assignee, is_critical, total_float`

func scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var (
		t                  model.Task
		status, start, due string
		critical           int
		totalFloat         sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.TaskNumber, &t.Title, &t.Description, &status, &t.Priority,
		&start, &due, &t.DurationDays, &t.Progress, &t.ParentID, &t.Assignee, &critical, &totalFloat); err != nil {
		return model.Task{}, err
	}
	t.Status = model.Status(status)
	t.StartDate, _ = model.ParseDate(start)
	t.DueDate, _ = model.ParseDate(due)
	t.IsCritical = critical != 0
	if totalFloat.Valid {
		f := int(totalFloat.Int64)
		t.TotalFloat = &f
	}
	return t, nil
}

// Tasks lists tasks in id order, scoped to a project when projectID is non-zero.
func (d *DB) Tasks(ctx context.Context, projectID int64) ([]model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if projectID != 0 {
		q += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	q += ` ORDER BY id`
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := d.attachDeps(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) Task(ctx context.Context, id int64) (model.Task, error) {
	t, err := scanTask(d.sql.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, errNotFound
	}
	if err != nil {
		return model.Task{}, err
	}
	one := []model.Task{t}
	if err := d.attachDeps(ctx, one); err != nil {
		return model.Task{}, err
	}
	return one[0], nil
}

func (d *DB) attachDeps(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	idx := make(map[int64]int, len(tasks))
	for i, t := range tasks {
		idx[t.ID] = i
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT task_id, depends_on FROM deps ORDER BY task_id, depends_on`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var taskID, dep int64
		if err := rows.Scan(&taskID, &dep); err != nil {
			return err
		}
		if i, ok := idx[taskID]; ok {
			tasks[i].DependencyIDs = append(tasks[i].DependencyIDs, dep)
		}
	}
	return rows.Err()
}

// InsertTask stores t. A zero ID lets SQLite assign one.
func (d *DB) InsertTask(ctx context.Context, t model.Task) (model.Task, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var id any
	if t.ID != 0 {
		id = t.ID
	}
	var totalFloat any
	if t.TotalFloat != nil {
		totalFloat = *t.TotalFloat
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(id, project_id, task_number, title, description, status, priority,
		start_date, due_date, duration, progress, parent_id, assignee, is_critical, total_float, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, t.ProjectID, t.TaskNumber, t.Title, t.Description, string(t.Status), t.Priority,
		formatDate(t.StartDate), formatDate(t.DueDate), t.DurationDays, t.Progress, t.ParentID, t.Assignee,
		boolToInt(t.IsCritical), totalFloat, time.Now().UTC().UnixMilli())
	if err != nil {
		return model.Task{}, err
	}
	if t.ID == 0 {
		if t.ID, err = res.LastInsertId(); err != nil {
			return model.Task{}, err
		}
	}
	for _, dep := range t.DependencyIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO deps(task_id, depends_on) VALUES(?, ?)`, t.ID, dep); err != nil {
			return model.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// UpdateTask writes every editable field of t. Dependencies and hierarchy are left alone.
func (d *DB) UpdateTask(ctx context.Context, t model.Task) error {
	res, err := d.sql.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?,
		start_date = ?, due_date = ?, duration = ?, progress = ?, updated_at_unixms = ? WHERE id = ?`,
		t.Title, t.Description, string(t.Status), t.Priority, formatDate(t.StartDate), formatDate(t.DueDate),
		t.DurationDays, t.Progress, time.Now().UTC().UnixMilli(), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound
	}
	return nil
}

// DeleteTask removes a task, its subtasks and every dependency edge touching them.
func (d *DB) DeleteTask(ctx context.Context, id int64) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ids := []int64{id}
	for i := 0; i < len(ids); i++ {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE parent_id = ?`, ids[i])
		if err != nil {
			return err
		}
		for rows.Next() {
			var child int64
			if err := rows.Scan(&child); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, child)
		}
		rows.Close()
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound
	}
	for _, x := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, x); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM deps WHERE task_id = ? OR depends_on = ?`, x, x); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) Projects(ctx context.Context) ([]model.Project, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, name, description, status FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) UpsertProject(ctx context.Context, p model.Project) error {
	_, err := d.sql.ExecContext(ctx, `INSERT OR REPLACE INTO projects(id, name, description, status) VALUES(?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Status)
	return err
}

const (
	reportCriticalPath  = "critical_path"
	reportFloatAnalysis = "float_analysis"
)

// PutReport stores a precomputed document (critical path or float analysis) for a project.
func (d *DB) PutReport(ctx context.Context, projectID int64, kind string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `INSERT OR REPLACE INTO reports(project_id, kind, json) VALUES(?, ?, ?)`,
		projectID, kind, string(raw))
	return err
}

// Report decodes a stored document into v. It reports false when none is stored.
func (d *DB) Report(ctx context.Context, projectID int64, kind string, v any) (bool, error) {
	var raw string
	err := d.sql.QueryRowContext(ctx, `SELECT json FROM reports WHERE project_id = ? AND kind = ?`, projectID, kind).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, err
	}
	return true, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(model.DateLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
