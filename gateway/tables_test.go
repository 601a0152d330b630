package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/bytedance/sonic"
)

func TestTableFilter(t *testing.T) {
	tasks := tableClient{spec: DefaultTables()["tasks"]}
	members := tableClient{spec: DefaultTables()["project_members"]}
	tests := []struct {
		name string
		tc   tableClient
		q    Query
		want string
	}{
		{name: "empty", tc: tasks, q: Query{}, want: ""},
		{name: "partition", tc: tasks, q: Where("project_id", "p1"), want: "PartitionKey eq 'p1'"},
		{name: "key and column", tc: tasks, q: Where("id", "t1").And("column_id", "done"), want: "RowKey eq 't1' and column_id eq 'done'"},
		{name: "quoted", tc: tasks, q: Where("title", "it's"), want: "title eq 'it''s'"},
		{name: "in", tc: members, q: In("user_id", []string{"a", "b"}), want: "(RowKey eq 'a' or RowKey eq 'b')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tc.filter(tt.q); got != tt.want {
				t.Fatalf("filter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTableEntityLayout(t *testing.T) {
	tc := tableClient{spec: DefaultTables()["tasks"]}
	row := map[string]any{"id": "t1", "project_id": "p1", "title": "x", "tags": []any{"a"}, "assignee_id": nil}
	raw, payload, err := tc.entity(row)
	if err != nil {
		t.Fatalf("entity: %v", err)
	}
	var ent map[string]any
	if err := sonic.Unmarshal(payload, &ent); err != nil {
		t.Fatalf("decode entity: %v", err)
	}
	if ent["PartitionKey"] != "p1" || ent["RowKey"] != "t1" || ent["title"] != "x" {
		t.Fatalf("unexpected entity %v", ent)
	}
	if _, ok := ent["tags"]; ok {
		t.Fatalf("non scalar columns must only live in the row payload")
	}
	if ent[rowProperty] != string(raw) {
		t.Fatalf("row payload mismatch")
	}

	projects := tableClient{spec: DefaultTables()["projects"]}
	_, payload, _ = projects.entity(map[string]any{"id": "p1"})
	_ = sonic.Unmarshal(payload, &ent)
	if ent["PartitionKey"] != fixedPartition {
		t.Fatalf("expected fixed partition, got %v", ent["PartitionKey"])
	}
}

func TestClassify(t *testing.T) {
	conflict := fmt.Errorf("add: %w", &azcore.ResponseError{StatusCode: http.StatusConflict})
	if !errors.Is(classify(conflict), ErrConflict) {
		t.Fatalf("expected conflict")
	}
	missing := &azcore.ResponseError{StatusCode: http.StatusNotFound}
	if !errors.Is(classify(missing), ErrNotFound) {
		t.Fatalf("expected not found")
	}
	other := errors.New("boom")
	if classify(other) != other {
		t.Fatalf("unexpected wrap of unrelated error")
	}
}
