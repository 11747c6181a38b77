package model

import (
	"path"

	"github.com/nhle/taskboard/internal/docstore"
)

// DecodeProject converts a store document into a Project.
func DecodeProject(d docstore.Document) (Project, error) {
	var p Project
	if err := d.DataTo(&p); err != nil {
		return Project{}, err
	}
	p.ID = d.ID
	return p, nil
}

// DecodeTask converts a store document into a Task. Tasks written without a
// status land in the first column.
func DecodeTask(d docstore.Document) (Task, error) {
	var t Task
	if err := d.DataTo(&t); err != nil {
		return Task{}, err
	}
	t.ID = d.ID
	if t.Status == "" {
		t.Status = StatusTodo
	}
	return t, nil
}

// DecodeComment converts a store document into a Comment. The task ID is
// read from the document path.
func DecodeComment(d docstore.Document) (Comment, error) {
	var c Comment
	if err := d.DataTo(&c); err != nil {
		return Comment{}, err
	}
	c.ID = d.ID
	c.TaskID = path.Base(path.Dir(d.Collection()))
	return c, nil
}
