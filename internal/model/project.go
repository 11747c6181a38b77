package model

// Project is a grouping container for tasks.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   Timestamp `json:"createdAt"`
	CreatedBy   string    `json:"createdBy"`

	// Members holds the identifiers of the users that share the project.
	// The creator is the default and only member.
	Members []string `json:"members"`
}
