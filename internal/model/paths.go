package model

import "path"

// Paths builds the store paths of one application's board data.
type Paths struct {
	AppID string
}

func (p Paths) root() string {
	return path.Join("artifacts", p.AppID, "public", "data")
}

// Projects returns the project collection path.
func (p Paths) Projects() string {
	return path.Join(p.root(), "projects")
}

// Project returns the path of a project document.
func (p Paths) Project(projectID string) string {
	return path.Join(p.Projects(), projectID)
}

// Tasks returns the task collection path of a project.
func (p Paths) Tasks(projectID string) string {
	return path.Join(p.Project(projectID), "tasks")
}

// Task returns the path of a task document.
func (p Paths) Task(projectID, taskID string) string {
	return path.Join(p.Tasks(projectID), taskID)
}

// Comments returns the comment collection path of a task.
func (p Paths) Comments(projectID, taskID string) string {
	return path.Join(p.Task(projectID, taskID), "comments")
}

// Comment returns the path of a comment document.
func (p Paths) Comment(projectID, taskID, commentID string) string {
	return path.Join(p.Comments(projectID, taskID), commentID)
}
