package store

import "strings"

// Where accumulates AND-ed conditions for a SELECT.
type Where struct {
	conditions []string
	args       []any
}

// Add appends cond with its placeholder arguments.
func (w *Where) Add(cond string, args ...any) {
	w.conditions = append(w.conditions, cond)
	w.args = append(w.args, args...)
}

// EqString adds "col = ?" when v is non-empty.
func (w *Where) EqString(col, v string) {
	if v != "" {
		w.Add(col+" = ?", v)
	}
}

// EqID adds "col = ?" when v is non-zero.
func (w *Where) EqID(col string, v int64) {
	if v != 0 {
		w.Add(col+" = ?", v)
	}
}

// SQL returns the WHERE clause (with a leading space) and its arguments.
// It returns an empty string when there are no conditions.
func (w *Where) SQL() (string, []any) {
	if len(w.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.conditions, " AND "), w.args
}
