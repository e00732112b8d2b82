package sqlbridge

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// mapRow converts the current row into a Document. NULL columns are left out.
func mapRow(rows *sqlx.Rows) (*Document, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	raw := make(map[string]any, len(cols))
	if err := rows.MapScan(raw); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	doc := NewDocument()
	for _, col := range cols {
		v := raw[col]
		if v == nil {
			continue
		}
		doc.Set(col, stringify(v))
	}
	return doc, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
