package board

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/uramazingdanc/flowboardeai/domain"
)

func decodeRows[T any](raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := sonic.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeRow[T any](raw json.RawMessage) (T, error) {
	var v T
	err := sonic.Unmarshal(raw, &v)
	return v, err
}

func remoteErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrRemote, err)
}
