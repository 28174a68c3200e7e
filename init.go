package main

import "github.com/jmoiron/sqlx"

func init() { // nolint:gochecknoinits
	// Struct fields and SQL columns share the exact same name, grepping one
	// finds the other. No case conversion.
	sqlx.NameMapper = func(v string) string { return v }
}
