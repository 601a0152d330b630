package domain

import "strings"

// Unassigned is the assignee filter value matching tasks without an assignee.
const Unassigned = "unassigned"

// Filters narrows the task list on the client. Each empty category allows
// everything; categories are intersected.
type Filters struct {
	Priorities []Priority `json:"priorities"`
	Assignees  []string   `json:"assignees"`
	Columns    []ColumnID `json:"columns"`
}

// ActiveCount is the number of selected values across all categories.
func (f Filters) ActiveCount() int {
	return len(f.Priorities) + len(f.Assignees) + len(f.Columns)
}

// Match reports whether t passes every active category.
func (f Filters) Match(t Task) bool {
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if len(f.Columns) > 0 && !contains(f.Columns, t.ColumnID) {
		return false
	}
	if len(f.Assignees) > 0 {
		id := t.AssigneeID
		if id == "" {
			id = Unassigned
		}
		if !contains(f.Assignees, id) {
			return false
		}
	}
	return true
}

// MatchSearch is a case-insensitive substring match on title, description or
// any tag. An empty query matches everything.
func MatchSearch(t Task, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// FilterTasks returns the tasks passing both the search and the filters, in
// their original order. The result is always a subset of tasks.
func FilterTasks(tasks []Task, f Filters, query string) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if MatchSearch(t, query) && f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// TasksInColumn projects tasks onto a single column.
func TasksInColumn(tasks []Task, c ColumnID) []Task {
	out := []Task{}
	for _, t := range tasks {
		if t.ColumnID == c {
			out = append(out, t)
		}
	}
	return out
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
