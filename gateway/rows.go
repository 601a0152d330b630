package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// RowStore persists rows. Writes report the rows they touched so that the
// caller can publish change events.
type RowStore interface {
	Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error)
	Insert(ctx context.Context, table string, row map[string]any) (json.RawMessage, error)
	Update(ctx context.Context, table string, q Query, partial map[string]any) ([]Change, error)
	Delete(ctx context.Context, table string, q Query) ([]json.RawMessage, error)
}

// Change is a row before and after an update.
type Change struct {
	Old json.RawMessage
	New json.RawMessage
}

// TableSpec maps a logical table onto physical storage. Rows are partitioned
// by PartitionColumn (a fixed partition when empty) and are unique by
// KeyColumn within a partition.
type TableSpec struct {
	Name            string
	PartitionColumn string
	KeyColumn       string
}

const fixedPartition = "all"

// timestampLayout is RFC 3339 with fixed precision so that stored timestamps
// sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// DefaultTables returns the layout of the board tables.
func DefaultTables() map[string]TableSpec {
	return map[string]TableSpec{
		"tasks":           {Name: "tasks", PartitionColumn: "project_id", KeyColumn: "id"},
		"projects":        {Name: "projects", KeyColumn: "id"},
		"profiles":        {Name: "profiles", KeyColumn: "id"},
		"project_members": {Name: "projectmembers", PartitionColumn: "project_id", KeyColumn: "user_id"},
	}
}

func (s TableSpec) partition(row map[string]any) string {
	if s.PartitionColumn == "" {
		return fixedPartition
	}
	return stringValue(row[s.PartitionColumn])
}

func (s TableSpec) key(row map[string]any) string {
	return stringValue(row[s.KeyColumn])
}

// prepareInsert copies row and fills in id and timestamps when absent.
func prepareInsert(row map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(row)+3)
	for k, v := range row {
		out[k] = v
	}
	if stringValue(out["id"]) == "" {
		out["id"] = uuid.NewString()
	}
	ts := now.UTC().Format(timestampLayout)
	if out["created_at"] == nil {
		out["created_at"] = ts
	}
	if out["updated_at"] == nil {
		out["updated_at"] = ts
	}
	return out
}

// prepareUpdate copies partial and stamps updated_at.
func prepareUpdate(partial map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(partial)+1)
	for k, v := range partial {
		out[k] = v
	}
	out["updated_at"] = now.UTC().Format(timestampLayout)
	return out
}

func mergeRow(old, partial map[string]any) map[string]any {
	out := make(map[string]any, len(old)+len(partial))
	for k, v := range old {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

func checkPartition(spec TableSpec, old, partial map[string]any) error {
	if spec.PartitionColumn == "" {
		return nil
	}
	if v, ok := partial[spec.PartitionColumn]; ok && stringValue(v) != stringValue(old[spec.PartitionColumn]) {
		return fmt.Errorf("%s: column %s cannot be changed", spec.Name, spec.PartitionColumn)
	}
	return nil
}

func decodeRow(raw []byte) (map[string]any, error) {
	var row map[string]any
	if err := sonic.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func encodeRow(row map[string]any) (json.RawMessage, error) {
	data, err := sonic.Marshal(row)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// sortRows orders decoded rows in place. Values compare as strings, which
// holds for ids and for timestamps written with timestampLayout.
func sortRows(rows []map[string]any, order *Order) {
	if order == nil {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := stringValue(rows[i][order.Column]), stringValue(rows[j][order.Column])
		if order.Desc {
			return a > b
		}
		return a < b
	})
}
