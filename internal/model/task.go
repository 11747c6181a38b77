package model

import "fmt"

// Status is the board column of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Label returns the column heading for s.
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// ParseStatus converts a user supplied string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Task is a unit of work on a project board.
type Task struct {
	ID string `json:"id"`

	// ProjectID duplicates the parent path segment for convenience.
	ProjectID   string `json:"projectId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`

	// AssignedTo and AssignedToDisplayName are nil when unassigned.
	AssignedTo            *string `json:"assignedTo"`
	AssignedToDisplayName *string `json:"assignedToDisplayName"`

	CreatedAt Timestamp `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
}

// Assignee returns the name to show for the assignee, or "" when unassigned.
func (t Task) Assignee() string {
	if t.AssignedToDisplayName != nil && *t.AssignedToDisplayName != "" {
		return *t.AssignedToDisplayName
	}
	if t.AssignedTo != nil {
		return *t.AssignedTo
	}
	return ""
}
