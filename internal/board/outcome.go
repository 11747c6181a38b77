package board

import (
	"errors"

	"github.com/nhle/taskboard/internal/model"
)

// Op names a board command for alert wording.
type Op string

const (
	OpCreateProject Op = "create-project"
	OpDeleteProject Op = "delete-project"
	OpCreateTask    Op = "create-task"
	OpUpdateTask    Op = "update-task"
	OpDeleteTask    Op = "delete-task"
	OpPostComment   Op = "post-comment"
)

var successText = map[Op]string{
	OpCreateProject: "Project created successfully!",
	OpDeleteProject: "Project deleted successfully!",
	OpCreateTask:    "Task added successfully!",
	OpUpdateTask:    "Task updated successfully!",
	OpDeleteTask:    "Task deleted successfully!",
}

var failureText = map[Op]string{
	OpCreateProject: "Error creating project.",
	OpDeleteProject: "Error deleting project.",
	OpCreateTask:    "Error adding task.",
	OpUpdateTask:    "Error updating task.",
	OpDeleteTask:    "Error deleting task.",
	OpPostComment:   "Error adding comment.",
}

var validationText = []struct {
	err  error
	text string
}{
	{ErrEmptyProjectName, "Project name cannot be empty."},
	{ErrEmptyTaskTitle, "Task title cannot be empty."},
	{ErrEmptyComment, "Comment cannot be empty."},
	{ErrInvalidStatus, "Unknown task status."},
}

// Describe turns the outcome of op into the alert shown to the user. It
// reports false when the outcome is not announced, as for a posted comment.
func Describe(op Op, err error) (model.Notification, bool) {
	if err == nil {
		text, ok := successText[op]
		if !ok {
			return model.Notification{}, false
		}
		return model.Alert(model.SeveritySuccess, text), true
	}

	for _, v := range validationText {
		if errors.Is(err, v.err) {
			return model.Alert(model.SeverityInfo, v.text), true
		}
	}

	text, ok := failureText[op]
	if !ok {
		text = "Something went wrong."
	}
	return model.Alert(model.SeverityError, text), true
}

// IsValidation reports whether err is an input validation error.
func IsValidation(err error) bool {
	for _, v := range validationText {
		if errors.Is(err, v.err) {
			return true
		}
	}
	return false
}
