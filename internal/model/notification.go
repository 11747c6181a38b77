package model

import "fmt"

// Severity classifies a notification for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a transient alert surfaced to the user.
type Notification struct {
	// TaskID, TaskTitle, Author and CreatedAt are set for comment
	// notifications only.
	TaskID    string    `json:"taskId,omitempty"`
	TaskTitle string    `json:"taskTitle,omitempty"`
	Author    string    `json:"author,omitempty"`
	CreatedAt Timestamp `json:"createdAt,omitempty"`

	// Message is the human-readable notification text.
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// CommentNotification builds the alert for a new comment on a task.
func CommentNotification(taskID, taskTitle, author string, at Timestamp) Notification {
	name := author
	if name == "" {
		name = "Someone"
	}
	return Notification{
		TaskID:    taskID,
		TaskTitle: taskTitle,
		Author:    author,
		CreatedAt: at,
		Message:   fmt.Sprintf("New comment on task \"%s\" by %s", taskTitle, name),
		Severity:  SeverityInfo,
	}
}

// Alert builds a plain notification.
func Alert(sev Severity, msg string) Notification {
	return Notification{Message: msg, Severity: sev}
}
