// Package db provides embedded database schema and migration files.
package db

import _ "embed"

// Schema contains the DDL statements for all tables, indexes and the
// immutability triggers on orders and order items.
//
//go:embed migrations/001_schema.sql
var Schema string
