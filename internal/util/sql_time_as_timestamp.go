package util

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// TimeAsTimestamp is a time.Time persisted as a plain UNIX timestamp, which
// keeps date columns comparable and sortable with bare integer SQL.
type TimeAsTimestamp time.Time

func (t TimeAsTimestamp) Value() (driver.Value, error) {
	return driver.Value(time.Time(t).Unix()), nil
}

func (t TimeAsTimestamp) Time() time.Time {
	return time.Time(t)
}

// Scan accepts both int64 and []byte, SQLite hands back either depending on
// how the column was declared.
func (t *TimeAsTimestamp) Scan(src interface{}) error {
	switch src := src.(type) {
	case int64:
		*t = TimeAsTimestamp(time.Unix(src, 0))
	case []byte:
		stamp, err := strconv.ParseInt(string(src), 10, 64)
		if err != nil {
			return fmt.Errorf("unable to parse timestamp: %w", err)
		}

		*t = TimeAsTimestamp(time.Unix(stamp, 0))
	default:
		return fmt.Errorf("expected int64 or []byte, got %T", src)
	}

	return nil
}

// NullTimeAsTimestamp is the nullable variant, mirroring database/sql.
type NullTimeAsTimestamp struct {
	Time  TimeAsTimestamp
	Valid bool
}

// NewNullTimeAsTimestamp maps the zero time to NULL.
func NewNullTimeAsTimestamp(t time.Time) NullTimeAsTimestamp {
	return NullTimeAsTimestamp{
		Time:  TimeAsTimestamp(t),
		Valid: !t.IsZero(),
	}
}

func (ns *NullTimeAsTimestamp) Scan(value interface{}) error {
	if value == nil {
		ns.Time, ns.Valid = TimeAsTimestamp{}, false
		return nil
	}

	ns.Valid = true

	return ns.Time.Scan(value)
}

func (ns NullTimeAsTimestamp) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}

	return ns.Time.Value()
}
