// Package detail is the task view: the task fields, its live comment thread
// and the edit, comment and delete actions.
package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui/forms"
)

// BackMsg asks the parent to return to the board.
type BackMsg struct{}

// SaveTaskMsg asks the parent to store edited task fields.
type SaveTaskMsg struct {
	ProjectID string
	TaskID    string
	Update    board.TaskUpdate
}

// PostCommentMsg asks the parent to add a comment to the task.
type PostCommentMsg struct {
	ProjectID string
	TaskID    string
	Text      string
}

// DeleteTaskMsg asks the parent to delete the task and its comments.
type DeleteTaskMsg struct {
	Task model.Task
}

type detailMode int

const (
	modeView detailMode = iota
	modeEdit
	modeComment
	modeConfirmDelete
)

type formBindings struct {
	title        string
	description  string
	status       model.Status
	assignedTo   string
	assigneeName string
	comment      string
	confirm      bool
}

// Model is the task view component.
type Model struct {
	mode           detailMode
	task           model.Task
	comments       []model.Comment
	commentsLoaded bool
	viewport       viewport.Model
	form           *huh.Form
	fb             *formBindings
	keys           *keys.KeyMap
	width          int
	height         int
}

// New creates a new task view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		fb:       &formBindings{},
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Open shows task with an empty comment thread until SetComments.
func (m *Model) Open(task model.Task) {
	m.mode = modeView
	m.form = nil
	m.task = task
	m.comments = nil
	m.commentsLoaded = false
	m.refresh()
	m.viewport.GotoTop()
}

// SetTask refreshes the fields of the open task.
func (m *Model) SetTask(task model.Task) {
	m.task = task
	m.refresh()
}

// SetComments replaces the comment thread. The view follows the newest
// comment when it was already scrolled to the bottom.
func (m *Model) SetComments(comments []model.Comment) {
	atBottom := m.viewport.AtBottom()
	m.comments = comments
	m.commentsLoaded = true
	m.refresh()
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// Task returns the open task.
func (m Model) Task() model.Task {
	return m.task
}

// Editing reports whether a form has keyboard focus.
func (m Model) Editing() bool {
	return m.mode != modeView
}

// Update handles messages for the task view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.mode != modeView {
		return m.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Edit):
			t := m.task
			m.fb.title = t.Title
			m.fb.description = t.Description
			m.fb.status = t.Status
			m.fb.assignedTo = deref(t.AssignedTo)
			m.fb.assigneeName = deref(t.AssignedToDisplayName)
			return m.startForm(modeEdit, m.buildEditForm())

		case key.Matches(msg, m.keys.Comment):
			m.fb.comment = ""
			return m.startForm(modeComment, m.buildCommentForm())

		case key.Matches(msg, m.keys.Delete):
			m.fb.confirm = false
			return m.startForm(modeConfirmDelete, m.buildConfirmForm())
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) startForm(mode detailMode, f *huh.Form) (Model, tea.Cmd) {
	m.mode = mode
	m.form = f
	return m, f.Init()
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	f, cmd, state := forms.Update(m.form, msg)
	m.form = f
	switch state {
	case huh.StateAborted:
		m.mode = modeView
		m.form = nil
		return m, nil
	case huh.StateCompleted:
		mode := m.mode
		m.mode = modeView
		m.form = nil
		return m, m.submit(mode)
	}
	return m, cmd
}

func (m Model) submit(mode detailMode) tea.Cmd {
	t := m.task
	fb := *m.fb
	switch mode {
	case modeEdit:
		return func() tea.Msg {
			return SaveTaskMsg{
				ProjectID: t.ProjectID,
				TaskID:    t.ID,
				Update: board.TaskUpdate{
					Title:                 fb.title,
					Description:           fb.description,
					Status:                fb.status,
					AssignedTo:            fb.assignedTo,
					AssignedToDisplayName: fb.assigneeName,
				},
			}
		}
	case modeComment:
		return func() tea.Msg {
			return PostCommentMsg{ProjectID: t.ProjectID, TaskID: t.ID, Text: fb.comment}
		}
	case modeConfirmDelete:
		if !fb.confirm {
			return nil
		}
		return func() tea.Msg { return DeleteTaskMsg{Task: t} }
	}
	return nil
}

func (m Model) buildEditForm() *huh.Form {
	options := make([]huh.Option[model.Status], 0, len(model.Statuses))
	for _, s := range model.Statuses {
		options = append(options, huh.NewOption(s.Label(), s))
	}

	return m.newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&m.fb.title),
			huh.NewText().
				Title("Description").
				Value(&m.fb.description),
			huh.NewSelect[model.Status]().
				Title("Status").
				Options(options...).
				Value(&m.fb.status),
			huh.NewInput().
				Title("Assignee ID").
				Placeholder("Leave empty for unassigned").
				Value(&m.fb.assignedTo),
			huh.NewInput().
				Title("Assignee name").
				Value(&m.fb.assigneeName),
		),
	)
}

func (m Model) buildCommentForm() *huh.Form {
	return m.newForm(
		huh.NewGroup(
			huh.NewText().
				Title(fmt.Sprintf("Comment on \"%s\"", m.task.Title)).
				Placeholder("Write a comment...").
				Value(&m.fb.comment),
		),
	)
}

func (m Model) buildConfirmForm() *huh.Form {
	return m.newForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete task \"%s\"?", m.task.Title)).
				Description("Its comments are deleted too.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	)
}

func (m Model) newForm(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).
		WithKeyMap(forms.KeyMap()).
		WithWidth(forms.Width(m.width)).
		WithHeight(forms.Height(m.height))
}

// View renders the task view.
func (m Model) View() string {
	if m.form != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
	}
	if m.task.ID == "" {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No task selected")
	}
	return m.viewport.View()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderContent())
}

// renderContent builds the full task content string for the viewport.
func (m Model) renderContent() string {
	task := m.task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(task.Title))
	sections = append(sections, theme.StatusStyle(task.Status).Render(task.Status.Label()))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	assignee := task.Assignee()
	if assignee == "" {
		assignee = "Unassigned"
	}
	sections = append(sections, fmt.Sprintf("%s  %s", metaStyle.Render("Assignee:"), valStyle.Render(assignee)))
	if !task.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf("%s   %s",
			metaStyle.Render("Created:"),
			valStyle.Render(task.CreatedAt.Time().Format("2006-01-02 15:04"))))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, headerStyle.Render("Description"))

	body := task.Description
	if body == "" {
		body = metaStyle.Italic(true).Render("No description")
	}
	sections = append(sections, body, "", separator, "")

	switch {
	case !m.commentsLoaded:
		sections = append(sections, headerStyle.Render("Comments"), metaStyle.Render("Loading comments..."))
	case len(m.comments) == 0:
		sections = append(sections, headerStyle.Render("Comments"), metaStyle.Italic(true).Render("No comments yet."))
	default:
		sections = append(sections, headerStyle.Render(fmt.Sprintf("Comments (%d)", len(m.comments))), "")

		authorStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
		for _, c := range m.comments {
			header := authorStyle.Render(c.Author())
			if !c.CreatedAt.IsZero() {
				header += "  " + metaStyle.Render(c.CreatedAt.Time().Format("2006-01-02 15:04"))
			}
			sections = append(sections, header, c.Text, "")
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the task view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.refresh()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
