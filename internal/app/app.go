// Package app is the root Bubble Tea model. It routes between the project
// list, the board of the selected project and the open task, runs board
// commands and shows their outcomes and comment notifications as toasts.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/docstore"
	"github.com/nhle/taskboard/internal/feed"
	"github.com/nhle/taskboard/internal/identity"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/notify"
	"github.com/nhle/taskboard/internal/ui"
	"github.com/nhle/taskboard/internal/ui/detail"
	helpview "github.com/nhle/taskboard/internal/ui/help"
	"github.com/nhle/taskboard/internal/ui/projectmgr"
	"github.com/nhle/taskboard/internal/ui/tasklist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewProjects ViewState = iota
	ViewBoard
	ViewTask
	ViewHelp
)

// toastExpiredMsg hides the toast with the given sequence number.
type toastExpiredMsg struct {
	seq int
}

// Config wires the TUI to the application.
type Config struct {
	Board    *board.Service
	Store    docstore.Subscriber
	Identity identity.Identity

	ToastDuration time.Duration

	// QueueSize bounds the notifications waiting to be shown.
	QueueSize int

	// Extra receives comment notifications next to the toasts, e.g. the
	// mailbox archive.
	Extra  notify.Sink
	Logger *slog.Logger
}

// Model is the root Bubble Tea model that manages view routing and layout.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	live         *live
	identity     identity.Identity

	projectView projectmgr.Model
	boardView   tasklist.Model
	taskView    detail.Model
	helpView    helpview.Model

	toast         *model.Notification
	toastSeq      int
	toastDuration time.Duration
	ready         bool
}

// New creates the root model and opens the live project list. Call Close
// when the program exits.
func New(cfg Config) (Model, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = 5 * time.Second
	}

	f := feed.New(cfg.QueueSize)
	var sink notify.Sink = f
	if cfg.Extra != nil {
		sink = notify.Fanout{f, cfg.Extra}
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &live{
		svc:  cfg.Board,
		feed: f,
		session: notify.NewSession(notify.SessionConfig{
			Store:  cfg.Store,
			Paths:  cfg.Board.Paths(),
			UserID: cfg.Identity.ID,
			Sink:   sink,
			Logger: log,
		}),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	if err := l.watchProjects(); err != nil {
		cancel()
		f.Close()
		return Model{}, err
	}

	k := keys.DefaultKeyMap()
	return Model{
		currentView:   ViewProjects,
		keys:          k,
		live:          l,
		identity:      cfg.Identity,
		projectView:   projectmgr.New(k, 80, 24),
		boardView:     tasklist.New(k, 80, 24),
		taskView:      detail.New(k, 80, 24),
		helpView:      helpview.New(k, cfg.Identity, 80, 24),
		toastDuration: cfg.ToastDuration,
	}, nil
}

// Close releases every live query. It is safe to call more than once.
func (m Model) Close() {
	m.live.close()
}

// Init starts listening for live updates.
func (m Model) Init() tea.Cmd {
	return m.live.feed.Wait()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.projectView.SetSize(w, h)
		m.boardView.SetSize(w, h)
		m.taskView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case projectsMsg:
		m.projectView.SetProjects(msg.items)
		if open := m.boardView.Project().ID; open != "" && m.inProject() && !hasProject(msg.items, open) {
			// The open project was deleted elsewhere.
			m.live.closeProject()
			m = m.leave(ViewProjects)
		}
		return m, m.live.feed.Wait()

	case tasksMsg:
		return m.onTasks(msg)

	case commentsMsg:
		if m.currentView == ViewTask && msg.taskID == m.taskView.Task().ID {
			m.taskView.SetComments(msg.items)
		}
		return m, m.live.feed.Wait()

	case feed.NotificationMsg:
		next, cmd := m.showToast(msg.Notification)
		return next, tea.Batch(cmd, m.live.feed.Wait())

	case outcomeMsg:
		if msg.err != nil && !board.IsValidation(msg.err) {
			m.live.log.Error("board command failed", "op", msg.op, "error", msg.err)
		}
		if n, ok := board.Describe(msg.op, msg.err); ok {
			return m.showToast(n)
		}
		return m, nil

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case projectmgr.OpenProjectMsg:
		return m.openProject(msg.Project)

	case projectmgr.CreateProjectMsg:
		return m, m.createProject(msg)

	case projectmgr.DeleteProjectMsg:
		return m, m.deleteProject(msg)

	case tasklist.BackMsg:
		m.live.closeProject()
		m.currentView = ViewProjects
		return m, nil

	case tasklist.OpenTaskMsg:
		if err := m.live.openTask(msg.Task.ProjectID, msg.Task.ID); err != nil {
			m.live.log.Error("opening task", "task", msg.Task.ID, "error", err)
			return m.showToast(model.Alert(model.SeverityError, "Error loading comments."))
		}
		m.taskView.Open(msg.Task)
		m.currentView = ViewTask
		return m, nil

	case tasklist.CreateTaskMsg:
		return m, m.createTask(msg)

	case tasklist.MoveTaskMsg:
		return m, m.moveTask(msg)

	case detail.BackMsg:
		m.live.closeTask()
		m.currentView = ViewBoard
		return m, nil

	case detail.SaveTaskMsg:
		return m, m.saveTask(msg)

	case detail.PostCommentMsg:
		return m, m.postComment(msg)

	case detail.DeleteTaskMsg:
		return m, m.deleteTask(msg)

	case tea.KeyMsg:
		// Global keys that work regardless of current view
		switch msg.String() {
		case "ctrl+c":
			m.live.close()
			return m, tea.Quit

		case "q":
			if m.currentView == ViewProjects && !m.projectView.Editing() {
				m.live.close()
				return m, tea.Quit
			}

		case "?":
			if m.editing() {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case "esc":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

func (m Model) openProject(p model.Project) (tea.Model, tea.Cmd) {
	m.boardView.SetProject(p)
	if err := m.live.openProject(p.ID); err != nil {
		m.live.log.Error("opening project", "project", p.ID, "error", err)
		m.live.closeProject()
		return m.showToast(model.Alert(model.SeverityError, "Error loading tasks."))
	}
	m.currentView = ViewBoard
	return m, nil
}

func (m Model) onTasks(msg tasksMsg) (tea.Model, tea.Cmd) {
	wait := m.live.feed.Wait()
	if msg.projectID != m.boardView.Project().ID {
		return m, wait
	}
	m.boardView.SetTasks(msg.items)

	if m.currentView == ViewTask || (m.currentView == ViewHelp && m.previousView == ViewTask) {
		t, ok := findTask(msg.items, m.taskView.Task().ID)
		if !ok {
			// The open task was deleted.
			m.live.closeTask()
			m = m.leave(ViewBoard)
			return m, wait
		}
		m.taskView.SetTask(t)
	}
	return m, wait
}

// leave switches to view, keeping the help overlay open if it is shown.
func (m Model) leave(view ViewState) Model {
	if m.currentView == ViewHelp {
		m.previousView = view
	} else {
		m.currentView = view
	}
	return m
}

func (m Model) inProject() bool {
	view := m.currentView
	if view == ViewHelp {
		view = m.previousView
	}
	return view == ViewBoard || view == ViewTask
}

func hasProject(projects []model.Project, id string) bool {
	for _, p := range projects {
		if p.ID == id {
			return true
		}
	}
	return false
}

// showToast replaces the current toast with n and schedules its removal.
func (m Model) showToast(n model.Notification) (Model, tea.Cmd) {
	m.toastSeq++
	m.toast = &n
	seq := m.toastSeq
	return m, tea.Tick(m.toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

func (m Model) editing() bool {
	switch m.currentView {
	case ViewProjects:
		return m.projectView.Editing()
	case ViewBoard:
		return m.boardView.Editing()
	case ViewTask:
		return m.taskView.Editing()
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewProjects:
		m.projectView, cmd = m.projectView.Update(msg)
	case ViewBoard:
		m.boardView, cmd = m.boardView.Update(msg)
	case ViewTask:
		m.taskView, cmd = m.taskView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.userLabel())
	content := m.renderContent()

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	if m.toast != nil {
		statusBar = m.layout.RenderToast(*m.toast)
	}

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewProjects:
		return m.projectView.View()
	case ViewBoard:
		return m.boardView.View()
	case ViewTask:
		return m.taskView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

func (m Model) title() string {
	view := m.currentView
	if view == ViewHelp {
		view = m.previousView
	}
	switch view {
	case ViewBoard:
		return fmt.Sprintf("Taskboard › %s", m.boardView.Project().Name)
	case ViewTask:
		return fmt.Sprintf("Taskboard › %s › %s", m.boardView.Project().Name, m.taskView.Task().Title)
	default:
		return "Taskboard"
	}
}

func (m Model) userLabel() string {
	if m.identity.Anonymous {
		return m.identity.Name() + " (guest)"
	}
	return m.identity.Name()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.editing() {
		return "enter submit | esc cancel"
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewBoard:
		return "h/l column | j/k task | enter open | n new | m move | esc projects"
	case ViewTask:
		return "e edit | c comment | d delete | j/k scroll | esc board"
	default:
		return "enter open | n new | d delete | ? help | q quit"
	}
}
