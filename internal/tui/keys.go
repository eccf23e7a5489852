package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	NextView  key.Binding
	PrevView  key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Grab      key.Binding
	Drop      key.Binding
	Cancel    key.Binding
	Open      key.Binding
	Toggle    key.Binding
	Delete    key.Binding
	Edit      key.Binding
	Add       key.Binding
	AddChild  key.Binding
	Projects  key.Binding
	Reload    key.Binding
	Recalc    key.Binding
	Help      key.Binding
	ExpandAll key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		NextView:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
		PrevView:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev view")),
		Up:        key.NewBinding(key.WithKeys("k", "up", "ctrl+p"), key.WithHelp("k/j", "move")),
		Down:      key.NewBinding(key.WithKeys("j", "down", "ctrl+n")),
		Left:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/l", "column")),
		Right:     key.NewBinding(key.WithKeys("l", "right")),
		Grab:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "grab")),
		Drop:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Open:      key.NewBinding(key.WithKeys("enter", "o"), key.WithHelp("enter", "details")),
		Toggle:    key.NewBinding(key.WithKeys(" ", "z"), key.WithHelp("space", "expand/collapse")),
		Delete:    key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add task")),
		AddChild:  key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add subtask")),
		Projects:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "projects")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Recalc:    key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "recalculate")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		ExpandAll: key.NewBinding(key.WithKeys("Z"), key.WithHelp("Z", "expand all")),
	}
}

func (k keyMap) footer(v view, dragging bool) []key.Binding {
	if dragging {
		return []key.Binding{k.Left, k.Drop, k.Cancel}
	}
	switch v {
	case viewTimeline:
		return []key.Binding{k.Up, k.Toggle, k.Open, k.Edit, k.Add, k.AddChild, k.NextView, k.Projects, k.Help, k.Quit}
	case viewCritical:
		return []key.Binding{k.Up, k.Open, k.Recalc, k.NextView, k.Projects, k.Help, k.Quit}
	default:
		return []key.Binding{k.Up, k.Left, k.Grab, k.Open, k.Edit, k.Add, k.Delete, k.NextView, k.Projects, k.Help, k.Quit}
	}
}

// helpRows lists every binding for the help modal.
func (k keyMap) helpRows() [][2]string {
	rows := [][2]string{
		{"tab / shift+tab", "switch view (board, timeline, critical path)"},
		{"k/j, up/down", "move selection"},
		{"h/l, left/right", "move between columns (board)"},
		{"space", "grab card (board) / expand or collapse (timeline)"},
		{"enter", "drop grabbed card / open details"},
		{"esc", "cancel drag, close modal, dismiss notice"},
		{"mouse", "press a card, drag to a column or card, release to drop"},
		{"a / A", "add task / add subtask to the selected task"},
		{"e", "edit title, dates, duration, progress, priority"},
		{"d", "delete selected task (and its subtasks)"},
		{"Z", "expand every parent (timeline)"},
		{"R", "recalculate critical path"},
		{"p", "pick project"},
		{"r", "reload"},
		{"q", "quit"},
	}
	return rows
}
