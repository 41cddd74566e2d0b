package postgres

import (
	"database/sql"
	"fmt"

	sonic "github.com/bytedance/sonic"
)

func isNotFound(err error) bool {
	return err == sql.ErrNoRows
}

func encodeJSONMap(m map[string]float64) (string, error) {
	if m == nil {
		m = map[string]float64{}
	}
	raw, err := sonic.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode json map: %w", err)
	}
	return string(raw), nil
}

func decodeJSONMap(raw string) (map[string]float64, error) {
	if raw == "" {
		return map[string]float64{}, nil
	}
	var out map[string]float64
	if err := sonic.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode json map: %w", err)
	}
	return out, nil
}

func encodeStringSlice(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	raw, err := sonic.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode string slice: %w", err)
	}
	return string(raw), nil
}

func decodeStringSlice(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := sonic.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode string slice: %w", err)
	}
	return out, nil
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullableFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullFloatToPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func nullIntToPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}
