package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

// TableStore keeps rows in Azure Tables. Each entity carries the full row as
// JSON in rowProperty plus every scalar column as a property for filtering.
type TableStore struct {
	tables map[string]tableClient
}

type tableClient struct {
	spec   TableSpec
	client *aztables.Client
}

const rowProperty = "Row"

var reservedProperties = map[string]bool{
	"PartitionKey": true,
	"RowKey":       true,
	"Timestamp":    true,
	rowProperty:    true,
}

type rowEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Row          string `json:"Row"`
}

// NewTableStore creates a TableStore from the given connection string.
func NewTableStore(connStr string, specs map[string]TableSpec) (*TableStore, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	s := &TableStore{tables: make(map[string]tableClient, len(specs))}
	for name, spec := range specs {
		s.tables[name] = tableClient{spec: spec, client: svc.NewClient(spec.Name)}
	}
	return s, nil
}

func (s *TableStore) table(name string) (tableClient, error) {
	tc, ok := s.tables[name]
	if !ok {
		return tableClient{}, fmt.Errorf("unknown table %q", name)
	}
	return tc, nil
}

func (s *TableStore) Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	tc, err := s.table(table)
	if err != nil {
		return nil, err
	}
	ents, err := tc.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	rows := make([]map[string]any, 0, len(ents))
	for _, e := range ents {
		row, err := decodeRow([]byte(e.Row))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	sortRows(rows, q.OrderBy)
	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		raw, err := encodeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (s *TableStore) Insert(ctx context.Context, table string, row map[string]any) (json.RawMessage, error) {
	tc, err := s.table(table)
	if err != nil {
		return nil, err
	}
	raw, payload, err := tc.entity(row)
	if err != nil {
		return nil, err
	}
	if _, err := tc.client.AddEntity(ctx, payload, nil); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, classify(err))
	}
	return raw, nil
}

func (s *TableStore) Update(ctx context.Context, table string, q Query, partial map[string]any) ([]Change, error) {
	tc, err := s.table(table)
	if err != nil {
		return nil, err
	}
	ents, err := tc.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	if len(ents) == 0 {
		return nil, fmt.Errorf("update %s: %w", table, ErrNotFound)
	}
	changes := make([]Change, 0, len(ents))
	for _, e := range ents {
		old, err := decodeRow([]byte(e.Row))
		if err != nil {
			return nil, err
		}
		if err := checkPartition(tc.spec, old, partial); err != nil {
			return nil, err
		}
		raw, payload, err := tc.entity(mergeRow(old, partial))
		if err != nil {
			return nil, err
		}
		et := azcore.ETagAny
		if _, err := tc.client.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace}); err != nil {
			return nil, fmt.Errorf("update %s: %w", table, classify(err))
		}
		changes = append(changes, Change{Old: json.RawMessage(e.Row), New: raw})
	}
	return changes, nil
}

func (s *TableStore) Delete(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	tc, err := s.table(table)
	if err != nil {
		return nil, err
	}
	ents, err := tc.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", table, err)
	}
	if len(ents) == 0 {
		return nil, fmt.Errorf("delete %s: %w", table, ErrNotFound)
	}
	removed := make([]json.RawMessage, 0, len(ents))
	for _, e := range ents {
		if _, err := tc.client.DeleteEntity(ctx, e.PartitionKey, e.RowKey, nil); err != nil {
			if errors.Is(classify(err), ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("delete %s: %w", table, classify(err))
		}
		removed = append(removed, json.RawMessage(e.Row))
	}
	return removed, nil
}

func (tc tableClient) list(ctx context.Context, q Query) ([]rowEntity, error) {
	if q.InCol != "" && len(q.InVals) == 0 {
		return nil, nil
	}
	filter := tc.filter(q)
	var opts *aztables.ListEntitiesOptions
	if filter != "" {
		opts = &aztables.ListEntitiesOptions{Filter: &filter}
	}
	pager := tc.client.NewListEntitiesPager(opts)
	var out []rowEntity
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err)
		}
		for _, raw := range resp.Entities {
			var e rowEntity
			if err := sonic.Unmarshal(raw, &e); err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// filter translates q into an OData expression. The partition and key
// columns are addressed through PartitionKey and RowKey.
func (tc tableClient) filter(q Query) string {
	var clauses []string
	for _, c := range q.Eq {
		clauses = append(clauses, tc.property(c.Column)+" eq "+quote(c.Value))
	}
	if q.InCol != "" {
		ors := make([]string, 0, len(q.InVals))
		for _, v := range q.InVals {
			ors = append(ors, tc.property(q.InCol)+" eq "+quote(v))
		}
		clauses = append(clauses, "("+strings.Join(ors, " or ")+")")
	}
	return strings.Join(clauses, " and ")
}

func (tc tableClient) property(column string) string {
	switch column {
	case tc.spec.PartitionColumn:
		return "PartitionKey"
	case tc.spec.KeyColumn:
		return "RowKey"
	}
	return column
}

// entity builds the stored entity for row and returns the row JSON with it.
func (tc tableClient) entity(row map[string]any) (json.RawMessage, []byte, error) {
	raw, err := encodeRow(row)
	if err != nil {
		return nil, nil, err
	}
	ent := map[string]any{
		"PartitionKey": tc.spec.partition(row),
		"RowKey":       tc.spec.key(row),
		rowProperty:    string(raw),
	}
	for k, v := range row {
		if reservedProperties[k] {
			continue
		}
		switch v.(type) {
		case string, bool, float64, int, int64:
			ent[k] = v
		}
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return nil, nil, err
	}
	return raw, payload, nil
}

func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// classify maps storage status codes onto the gateway errors.
func classify(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 404:
			return errors.Join(ErrNotFound, err)
		case 409:
			return errors.Join(ErrConflict, err)
		}
	}
	return err
}
