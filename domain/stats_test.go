package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	d := Summarize(sampleTasks())
	if d.Total != 4 || d.Completed != 1 || d.InProgress != 1 || d.HighPriority != 1 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if d.CompletionRate != 25 {
		t.Fatalf("expected 25%% completion, got %d", d.CompletionRate)
	}
	if len(d.Columns) != len(Columns) {
		t.Fatalf("expected %d column counts, got %d", len(Columns), len(d.Columns))
	}
	for _, c := range d.Columns {
		if c.Count != 1 {
			t.Fatalf("expected one task in %s, got %d", c.ID, c.Count)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	d := Summarize(nil)
	if d.Total != 0 || d.CompletionRate != 0 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

func TestBuildTimeline(t *testing.T) {
	tasks := []Task{
		{ID: "a", DueDate: "2024-06-03"},
		{ID: "b", DueDate: "2024-06-01T09:00:00Z"},
		{ID: "c"},
		{ID: "d", DueDate: "2024-06-03"},
		{ID: "e", DueDate: "not a date"},
	}
	day := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	tl := BuildTimeline(tasks, day)
	if tl.Day != "2024-06-03" {
		t.Fatalf("unexpected day %s", tl.Day)
	}
	if !reflect.DeepEqual(ids(tl.DueOnDay), []string{"a", "d"}) {
		t.Fatalf("unexpected due on day %v", ids(tl.DueOnDay))
	}
	if !reflect.DeepEqual(tl.Dates, []string{"2024-06-01", "2024-06-03"}) {
		t.Fatalf("unexpected dates %v", tl.Dates)
	}
	if !reflect.DeepEqual(ids(tl.Upcoming), []string{"b", "a", "d"}) {
		t.Fatalf("unexpected upcoming order %v", ids(tl.Upcoming))
	}
}
