// Package tasklist is the board of one project: its tasks in three status
// columns.
package tasklist

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui/forms"
)

// BackMsg asks the parent to return to the project list.
type BackMsg struct{}

// OpenTaskMsg asks the parent to open a task.
type OpenTaskMsg struct {
	Task model.Task
}

// CreateTaskMsg asks the parent to add a task to the board's project.
type CreateTaskMsg struct {
	ProjectID   string
	Title       string
	Description string
}

// MoveTaskMsg asks the parent to move a task to another column.
type MoveTaskMsg struct {
	Task   model.Task
	Status model.Status
}

type formBindings struct {
	title       string
	description string
}

// Model is the board view component.
type Model struct {
	keys    *keys.KeyMap
	project model.Project
	tasks   []model.Task
	cols    [][]model.Task
	loaded  bool
	col     int
	rows    []int
	form    *huh.Form
	fb      *formBindings
	width   int
	height  int
}

// New creates an empty board.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		keys:   k,
		cols:   columns(nil),
		rows:   make([]int, len(model.Statuses)),
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// SetProject switches the board to project and clears its tasks until the
// next SetTasks.
func (m *Model) SetProject(p model.Project) {
	m.project = p
	m.tasks = nil
	m.cols = columns(nil)
	m.loaded = false
	m.col = 0
	m.rows = make([]int, len(model.Statuses))
	m.form = nil
}

// Project returns the project shown.
func (m Model) Project() model.Project {
	return m.project
}

// SetTasks replaces the tasks, keeping the cursor on the same task when it
// is still in the same column.
func (m *Model) SetTasks(tasks []model.Task) {
	var selectedID string
	if t, ok := m.Selected(); ok {
		selectedID = t.ID
	}

	m.tasks = tasks
	m.cols = columns(tasks)
	m.loaded = true
	for c := range m.cols {
		for i, t := range m.cols[c] {
			if t.ID == selectedID && c == m.col {
				m.rows[c] = i
			}
		}
		if m.rows[c] >= len(m.cols[c]) {
			m.rows[c] = max(len(m.cols[c])-1, 0)
		}
	}
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	col := m.cols[m.col]
	row := m.rows[m.col]
	if row < 0 || row >= len(col) {
		return model.Task{}, false
	}
	return col[row], true
}

// Editing reports whether a form has keyboard focus.
func (m Model) Editing() bool {
	return m.form != nil
}

// Update handles messages for the board.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return BackMsg{} }

	case key.Matches(msg, m.keys.Left):
		m.col = (m.col + len(m.cols) - 1) % len(m.cols)

	case key.Matches(msg, m.keys.Right):
		m.col = (m.col + 1) % len(m.cols)

	case key.Matches(msg, m.keys.Down):
		if n := len(m.cols[m.col]); n > 0 {
			m.rows[m.col] = (m.rows[m.col] + 1) % n
		}

	case key.Matches(msg, m.keys.Up):
		if n := len(m.cols[m.col]); n > 0 {
			m.rows[m.col] = (m.rows[m.col] + n - 1) % n
		}

	case key.Matches(msg, m.keys.Select):
		if t, ok := m.Selected(); ok {
			return m, func() tea.Msg { return OpenTaskMsg{Task: t} }
		}

	case key.Matches(msg, m.keys.Advance):
		if t, ok := m.Selected(); ok {
			next := model.Statuses[(columnOf(t.Status)+1)%len(model.Statuses)]
			return m, func() tea.Msg { return MoveTaskMsg{Task: t, Status: next} }
		}

	case key.Matches(msg, m.keys.New):
		m.fb.title = ""
		m.fb.description = ""
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Title").
					Placeholder("What needs doing?").
					Value(&m.fb.title),
				huh.NewText().
					Title("Description").
					Placeholder("Optional description").
					Value(&m.fb.description),
			),
		).WithKeyMap(forms.KeyMap()).
			WithWidth(forms.Width(m.width)).
			WithHeight(forms.Height(m.height))
		return m, m.form.Init()
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	f, cmd, state := forms.Update(m.form, msg)
	m.form = f
	switch state {
	case huh.StateCompleted:
		m.form = nil
		out := CreateTaskMsg{
			ProjectID:   m.project.ID,
			Title:       m.fb.title,
			Description: m.fb.description,
		}
		return m, func() tea.Msg { return out }
	case huh.StateAborted:
		m.form = nil
		return m, nil
	}
	return m, cmd
}

// View renders the board.
func (m Model) View() string {
	if m.form != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
	}

	if !m.loaded {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Loading tasks...")
	}

	colWidth := max(m.width/len(m.cols)-2, 12)
	rendered := make([]string, len(m.cols))
	for c, tasks := range m.cols {
		rendered[c] = m.renderColumn(c, tasks, colWidth)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderColumn(c int, tasks []model.Task, width int) string {
	status := model.Statuses[c]
	var b strings.Builder
	b.WriteString(theme.StatusStyle(status).Render(fmt.Sprintf("%s (%d)", status.Label(), len(tasks))))
	b.WriteString("\n\n")

	if len(tasks) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true).Render("  No tasks"))
	}
	for i, t := range tasks {
		b.WriteString(renderCard(t, width, c == m.col && i == m.rows[c]))
		b.WriteString("\n")
	}

	style := theme.ColumnStyle
	if c == m.col {
		style = theme.FocusedColumnStyle
	}
	return style.Width(width).Height(max(m.height-2, 3)).Render(b.String())
}

// SetSize updates the board dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
