package domain

import "time"

// ColumnID identifies a board column. A task's status is always one of Columns.
type ColumnID string

const (
	ColumnTodo       ColumnID = "todo"
	ColumnInProgress ColumnID = "in-progress"
	ColumnReview     ColumnID = "review"
	ColumnDone       ColumnID = "done"
)

// Column describes a board column in display order.
type Column struct {
	ID    ColumnID `json:"id"`
	Title string   `json:"title"`
}

// Columns lists the board columns left to right.
var Columns = []Column{
	{ID: ColumnTodo, Title: "To Do"},
	{ID: ColumnInProgress, Title: "In Progress"},
	{ID: ColumnReview, Title: "Review"},
	{ID: ColumnDone, Title: "Done"},
}

// Valid reports whether c is a known column.
func (c ColumnID) Valid() bool {
	for _, col := range Columns {
		if col.ID == c {
			return true
		}
	}
	return false
}

// Priority is one of four ranked levels.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities is ordered from the highest rank to the lowest.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Rank returns 0 for the most urgent level and -1 for unknown values.
func (p Priority) Rank() int {
	for i, v := range Priorities {
		if v == p {
			return i
		}
	}
	return -1
}

// Task is a board card as held by the client mirror.
type Task struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ColumnID    ColumnID    `json:"columnId"`
	Priority    Priority    `json:"priority"`
	Assignee    *TeamMember `json:"assignee,omitempty"`
	AssigneeID  string      `json:"assigneeId,omitempty"`
	ProjectID   string      `json:"projectId"`
	DueDate     string      `json:"dueDate,omitempty"`
	Tags        []string    `json:"tags"`
	CalendarID  string      `json:"googleCalendarEventId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// TaskDraft carries the caller supplied fields of a new task.
type TaskDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ColumnID    ColumnID `json:"columnId"`
	Priority    Priority `json:"priority"`
	AssigneeID  string   `json:"assigneeId"`
	DueDate     string   `json:"dueDate"`
	Tags        []string `json:"tags"`
}

// Validate checks the draft before any remote call is made.
func (d TaskDraft) Validate() error {
	if d.Title == "" {
		return ErrInvalidArgs
	}
	if !d.ColumnID.Valid() {
		return ErrUnknownColumn
	}
	if !d.Priority.Valid() {
		return ErrUnknownPriority
	}
	return nil
}

// TaskPatch is a partial update. Nil fields are left untouched; an empty
// AssigneeID or DueDate clears the value.
type TaskPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	ColumnID    *ColumnID `json:"columnId,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	AssigneeID  *string   `json:"assigneeId,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ColumnID == nil &&
		p.Priority == nil && p.AssigneeID == nil && p.DueDate == nil && p.Tags == nil
}

func (p TaskPatch) Validate() error {
	if p.Empty() {
		return ErrInvalidArgs
	}
	if p.ColumnID != nil && !p.ColumnID.Valid() {
		return ErrUnknownColumn
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return ErrUnknownPriority
	}
	if p.Title != nil && *p.Title == "" {
		return ErrInvalidArgs
	}
	return nil
}
