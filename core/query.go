package core

import (
	"context"
)

// Transport defines the capabilities the explorer needs from a backend.
type Transport interface {
	// ListTables returns the queryable table names
	ListTables(ctx context.Context) ([]string, error)

	// GetTableState returns schema and stats for a table
	GetTableState(ctx context.Context, table string) (*TableSchema, error)

	// RunQuery executes a compiled request
	RunQuery(ctx context.Context, req *Request) (*Response, error)

	// Close releases resources
	Close() error
}
