package mysql

import (
	"database/sql"
	"encoding/json"
	"time"
)

// nullTime maps *time.Time ke kolom nullable
func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// metaJSON marshals metadata for the JSON column; empty map becomes "{}"
// so the column constraint holds.
func metaJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func metaFromJSON(s sql.NullString) map[string]any {
	if !s.Valid || s.String == "" || s.String == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil
	}
	return m
}
