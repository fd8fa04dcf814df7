package db

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL for the credential store tables.
func Schema() string {
	return schemaSQL
}

// Migrate applies the credential store schema. Every statement is
// IF NOT EXISTS, so it runs on each startup.
func Migrate(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("platform/db: migrate: %w", err)
	}
	return nil
}
