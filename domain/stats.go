package domain

import (
	"sort"
	"time"
)

// ColumnCount is the number of tasks in one column.
type ColumnCount struct {
	Column
	Count int `json:"count"`
}

// Dashboard summarises the tasks of the active project.
type Dashboard struct {
	Columns        []ColumnCount `json:"columns"`
	Total          int           `json:"total"`
	Completed      int           `json:"completed"`
	InProgress     int           `json:"inProgress"`
	HighPriority   int           `json:"highPriority"`
	CompletionRate int           `json:"completionRate"`
}

// Summarize computes dashboard counters for tasks.
func Summarize(tasks []Task) Dashboard {
	d := Dashboard{Total: len(tasks)}
	for _, col := range Columns {
		d.Columns = append(d.Columns, ColumnCount{Column: col, Count: len(TasksInColumn(tasks, col.ID))})
	}
	for _, t := range tasks {
		switch t.ColumnID {
		case ColumnDone:
			d.Completed++
		case ColumnInProgress:
			d.InProgress++
		}
		if t.Priority == PriorityHigh {
			d.HighPriority++
		}
	}
	if d.Total > 0 {
		d.CompletionRate = d.Completed * 100 / d.Total
	}
	return d
}

// Timeline groups tasks by due date.
type Timeline struct {
	Day      string   `json:"day"`
	DueOnDay []Task   `json:"dueOnDay"`
	Dates    []string `json:"dates"`
	Upcoming []Task   `json:"upcoming"`
}

const dayLayout = "2006-01-02"

// ParseDueDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDueDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if d, err := time.Parse(dayLayout, s); err == nil {
		return d, true
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, true
	}
	return time.Time{}, false
}

// BuildTimeline lists tasks due on day, the distinct due dates and every task
// with a parseable due date ordered by that date.
func BuildTimeline(tasks []Task, day time.Time) Timeline {
	tl := Timeline{Day: day.Format(dayLayout), DueOnDay: []Task{}, Dates: []string{}, Upcoming: []Task{}}
	seen := map[string]struct{}{}
	type dated struct {
		task Task
		due  time.Time
	}
	var withDue []dated
	for _, t := range tasks {
		due, ok := ParseDueDate(t.DueDate)
		if !ok {
			continue
		}
		withDue = append(withDue, dated{task: t, due: due})
		key := due.Format(dayLayout)
		if key == tl.Day {
			tl.DueOnDay = append(tl.DueOnDay, t)
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			tl.Dates = append(tl.Dates, key)
		}
	}
	sort.SliceStable(withDue, func(i, j int) bool { return withDue[i].due.Before(withDue[j].due) })
	for _, d := range withDue {
		tl.Upcoming = append(tl.Upcoming, d.task)
	}
	sort.Strings(tl.Dates)
	return tl
}
