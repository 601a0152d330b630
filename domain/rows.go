package domain

import "time"

// Remote table names.
const (
	TableTasks    = "tasks"
	TableProjects = "projects"
	TableProfiles = "profiles"
	TableMembers  = "project_members"
)

// Row is a write payload in the remote store's column naming.
type Row map[string]any

// TaskRow is the remote shape of a task.
type TaskRow struct {
	ID                    string    `json:"id"`
	Title                 string    `json:"title"`
	Description           *string   `json:"description"`
	ColumnID              string    `json:"column_id"`
	Priority              string    `json:"priority"`
	AssigneeID            *string   `json:"assignee_id"`
	ProjectID             string    `json:"project_id"`
	DueDate               *string   `json:"due_date"`
	Tags                  []string  `json:"tags"`
	GoogleCalendarEventID *string   `json:"google_calendar_event_id"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ProjectRow is the remote shape of a project.
type ProjectRow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileRow is the remote shape of a user profile.
type ProfileRow struct {
	ID        string  `json:"id"`
	FullName  *string `json:"full_name"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatar_url"`
	Role      *string `json:"role"`
}

// MemberRow links a user to a project.
type MemberRow struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}
