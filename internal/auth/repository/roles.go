// Package repository contains the SQL persistence for login sessions.
package repository

import "strings"

// Roles are stored as a comma-joined text column so the same schema works on
// PostgreSQL and MySQL. Role names never contain commas.

func joinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func splitRoles(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}
