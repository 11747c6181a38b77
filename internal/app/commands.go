package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/ui/detail"
	"github.com/nhle/taskboard/internal/ui/projectmgr"
	"github.com/nhle/taskboard/internal/ui/tasklist"
)

// outcomeMsg reports the result of a board command.
type outcomeMsg struct {
	op  board.Op
	err error
}

func (m Model) createProject(msg projectmgr.CreateProjectMsg) tea.Cmd {
	l, who := m.live, m.identity
	return func() tea.Msg {
		_, err := l.svc.CreateProject(l.ctx, who, msg.Name, msg.Description)
		return outcomeMsg{op: board.OpCreateProject, err: err}
	}
}

func (m Model) deleteProject(msg projectmgr.DeleteProjectMsg) tea.Cmd {
	l := m.live
	return func() tea.Msg {
		err := l.svc.DeleteProject(l.ctx, msg.Project.ID)
		return outcomeMsg{op: board.OpDeleteProject, err: err}
	}
}

func (m Model) createTask(msg tasklist.CreateTaskMsg) tea.Cmd {
	l, who := m.live, m.identity
	return func() tea.Msg {
		_, err := l.svc.CreateTask(l.ctx, who, msg.ProjectID, msg.Title, msg.Description)
		return outcomeMsg{op: board.OpCreateTask, err: err}
	}
}

func (m Model) moveTask(msg tasklist.MoveTaskMsg) tea.Cmd {
	l := m.live
	t := msg.Task
	return func() tea.Msg {
		err := l.svc.UpdateTask(l.ctx, t.ProjectID, t.ID, board.TaskUpdate{
			Title:                 t.Title,
			Description:           t.Description,
			Status:                msg.Status,
			AssignedTo:            deref(t.AssignedTo),
			AssignedToDisplayName: deref(t.AssignedToDisplayName),
		})
		return outcomeMsg{op: board.OpUpdateTask, err: err}
	}
}

func (m Model) saveTask(msg detail.SaveTaskMsg) tea.Cmd {
	l := m.live
	return func() tea.Msg {
		err := l.svc.UpdateTask(l.ctx, msg.ProjectID, msg.TaskID, msg.Update)
		return outcomeMsg{op: board.OpUpdateTask, err: err}
	}
}

func (m Model) postComment(msg detail.PostCommentMsg) tea.Cmd {
	l, who := m.live, m.identity
	return func() tea.Msg {
		_, err := l.svc.PostComment(l.ctx, who, msg.ProjectID, msg.TaskID, msg.Text)
		return outcomeMsg{op: board.OpPostComment, err: err}
	}
}

func (m Model) deleteTask(msg detail.DeleteTaskMsg) tea.Cmd {
	l := m.live
	t := msg.Task
	return func() tea.Msg {
		err := l.svc.DeleteTask(l.ctx, t.ProjectID, t.ID)
		return outcomeMsg{op: board.OpDeleteTask, err: err}
	}
}

func findTask(tasks []model.Task, id string) (model.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
