package store

import (
	"encoding/json"
	"strings"
)

// placeholderList returns "(?,?,?)" groups for n rows of width columns.
func placeholderList(n, width int) string {
	if n <= 0 || width <= 0 {
		return ""
	}
	row := "(" + strings.Repeat("?,", width-1) + "?)"
	return strings.Repeat(row+",", n-1) + row
}

// marshalPaths converts []string to JSON text for storage.
func marshalPaths(paths []string) string {
	if len(paths) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(paths)
	return string(b)
}

// unmarshalPaths converts JSON text back to []string.
func unmarshalPaths(s string) ([]string, error) {
	if s == "" || s == "null" {
		return nil, nil
	}
	var paths []string
	if err := json.Unmarshal([]byte(s), &paths); err != nil {
		return nil, err
	}
	return paths, nil
}
