package ormkit

import "strings"

// truncateSQL shortens a statement kept on an error
func truncateSQL(query string, n int) string {
	query = strings.TrimSpace(query)
	if len(query) > n {
		return query[:n] + "..."
	}
	return query
}

// placeholders returns n comma separated portable placeholders
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
