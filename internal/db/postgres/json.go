package postgres

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// ToJSON encodes v for a jsonb column. Nil slices are stored as [].
func ToJSON[T any](v []T) (datatypes.JSON, error) {
	if v == nil {
		v = []T{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return datatypes.JSON(data), nil
}

// ToJSONObject encodes a map or struct for a jsonb column.
func ToJSONObject(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return datatypes.JSON(data), nil
}

// FromJSON decodes a jsonb column into dst. Empty columns leave dst untouched.
func FromJSON(j datatypes.JSON, dst any) error {
	if len(j) == 0 || string(j) == "null" {
		return nil
	}
	if err := json.Unmarshal(j, dst); err != nil {
		return fmt.Errorf("unmarshal json column: %w", err)
	}
	return nil
}
