package model

// Comment is an entry in a task's discussion thread. Comments are never
// edited; they go away only when their task does.
type Comment struct {
	ID string `json:"id"`

	// TaskID is taken from the document path and is not stored.
	TaskID string `json:"-"`

	Text      string    `json:"text"`
	CreatedAt Timestamp `json:"createdAt"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
}

// Author returns the name shown next to the comment.
func (c Comment) Author() string {
	if c.UserName == "" {
		return "Anonymous"
	}
	return c.UserName
}
