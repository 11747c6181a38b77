// Package projectmgr is the project list view: pick a project, create one
// or delete one after confirmation.
package projectmgr

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

// OpenProjectMsg asks the parent to open a project board.
type OpenProjectMsg struct {
	Project model.Project
}

// CreateProjectMsg asks the parent to create a project.
type CreateProjectMsg struct {
	Name        string
	Description string
}

// DeleteProjectMsg asks the parent to delete a project and its tasks.
type DeleteProjectMsg struct {
	Project model.Project
}

type projectMode int

const (
	modeList projectMode = iota
	modeForm
	modeConfirmDelete
)

type formBindings struct {
	name        string
	description string
	confirm     bool
}

// Model is the Bubble Tea model for the project list.
type Model struct {
	mode        projectMode
	keys        *keys.KeyMap
	projects    []model.Project
	loaded      bool
	selectedIdx int
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	width       int
	height      int
}

// New creates a new project list model.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:   modeList,
		keys:   k,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// SetProjects replaces the listed projects, keeping the cursor on the same
// project when it is still present.
func (m *Model) SetProjects(projects []model.Project) {
	var selectedID string
	if p, ok := m.Selected(); ok {
		selectedID = p.ID
	}

	m.projects = projects
	m.loaded = true
	for i, p := range projects {
		if p.ID == selectedID {
			m.selectedIdx = i
			return
		}
	}
	if m.selectedIdx >= len(m.projects) {
		m.selectedIdx = max(len(m.projects)-1, 0)
	}
}

// Selected returns the project under the cursor.
func (m Model) Selected() (model.Project, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.projects) {
		return model.Project{}, false
	}
	return m.projects[m.selectedIdx], true
}

// Editing reports whether a form has keyboard focus.
func (m Model) Editing() bool {
	return m.mode != modeList
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeList {
			return m.handleListKey(msg)
		}
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if len(m.projects) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.projects)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.projects) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.projects) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		p, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return OpenProjectMsg{Project: p} }

	case key.Matches(msg, m.keys.New):
		m.fb.name = ""
		m.fb.description = ""
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Delete):
		if _, ok := m.Selected(); !ok {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

// buildForm leaves name validation to the board so an empty name is
// reported like every other rejected command.
func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Project name").
				Value(&m.fb.name),
			huh.NewText().
				Title("Description").
				Placeholder("Optional description").
				Value(&m.fb.description),
		),
	).WithKeyMap(forms.KeyMap()).
		WithWidth(forms.Width(m.width)).
		WithHeight(forms.Height(m.height))
}

func (m Model) buildConfirmForm() *huh.Form {
	p, _ := m.Selected()
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete project \"%s\"?", p.Name)).
				Description("All of its tasks and their comments are deleted too.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithKeyMap(forms.KeyMap()).
		WithWidth(forms.Width(m.width)).
		WithHeight(forms.Height(m.height))
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		f, cmd, state := forms.Update(m.form, msg)
		m.form = f
		switch state {
		case huh.StateCompleted:
			m.mode = modeList
			name, desc := m.fb.name, m.fb.description
			return m, func() tea.Msg { return CreateProjectMsg{Name: name, Description: desc} }
		case huh.StateAborted:
			m.mode = modeList
			return m, nil
		}
		return m, cmd

	case modeConfirmDelete:
		f, cmd, state := forms.Update(m.confirmForm, msg)
		m.confirmForm = f
		switch state {
		case huh.StateCompleted:
			m.mode = modeList
			p, ok := m.Selected()
			if !m.fb.confirm || !ok {
				return m, nil
			}
			return m, func() tea.Msg { return DeleteProjectMsg{Project: p} }
		case huh.StateAborted:
			m.mode = modeList
			return m, nil
		}
		return m, cmd
	}
	return m, nil
}

// View renders the project list or the active form.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Projects"))
	b.WriteString("\n\n")

	emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
	switch {
	case !m.loaded:
		b.WriteString(emptyStyle.Render("Loading projects..."))
	case len(m.projects) == 0:
		b.WriteString(emptyStyle.Render("No projects yet. Press 'n' to create one."))
	default:
		descStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
		for i, p := range m.projects {
			label := p.Name
			if p.Description != "" {
				label += "  " + descStyle.Render(firstLine(p.Description))
			}

			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(label))
			} else {
				b.WriteString(theme.ListItemStyle.Render(label))
			}
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
