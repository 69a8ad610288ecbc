package types

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// IntArray maps a Postgres integer[] column onto a Go slice. Reminder
// thresholds are stored this way so a preference row stays a single record.
type IntArray []int

// Value implements driver.Valuer.
func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = strconv.Itoa(v)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// Scan implements sql.Scanner.
func (a *IntArray) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}

	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported int array source %T", src)
	}

	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if raw == "" {
		*a = IntArray{}
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make(IntArray, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("parsing int array element %q: %w", part, err)
		}
		out = append(out, n)
	}
	*a = out
	return nil
}

// GormDataType tells GORM which column type to use.
func (IntArray) GormDataType() string {
	return "integer[]"
}
