package util

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Int64ArrayAsJSON is stored as a JSON array but used as a []int64.
type Int64ArrayAsJSON []int64

func (a Int64ArrayAsJSON) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a Int64ArrayAsJSON) Slice() []int64 {
	return []int64(a)
}

func (a *Int64ArrayAsJSON) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		return json.Unmarshal(src, &a)
	case string:
		return json.Unmarshal([]byte(src), &a)
	default:
		return fmt.Errorf("expected []byte or string, got %T", src)
	}
}

type NullInt64ArrayAsJSON struct {
	Array Int64ArrayAsJSON
	Valid bool // Valid is true if Array is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullInt64ArrayAsJSON) Scan(value interface{}) error {
	if value == nil {
		ns.Array, ns.Valid = nil, false
		return nil
	}

	ns.Valid = true

	return ns.Array.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullInt64ArrayAsJSON) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}

	return ns.Array.Value()
}
