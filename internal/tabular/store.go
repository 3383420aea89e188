// Package tabular talks to the remote tabular data store holding clientes,
// empleados and ordenes. The store is treated as a remote document store
// with create/update/find-by-field operations; business schema stays out of
// this package.
package tabular

import (
	"context"
	"errors"
)

// ErrNotFound marks a lookup that reached the store but matched no record.
// Wrapped by implementations so callers branch with errors.Is.
var ErrNotFound = errors.New("record not found")

// Table names in the remote base.
const (
	TableOrdenes   = "Ordenes"
	TableClientes  = "Clientes"
	TableEmpleados = "Empleados"
)

// Record is a single remote record.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// String returns the string value of a field, or "" when absent.
func (r *Record) String(field string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	s, _ := r.Fields[field].(string)
	return s
}

// Store is the interface the pipeline depends on. Implemented by the REST
// client and by the in-memory mock.
type Store interface {
	// CreateRecord creates a record and returns it with its assigned ID.
	CreateRecord(ctx context.Context, table string, fields map[string]any) (*Record, error)
	// UpdateRecord patches fields of an existing record.
	UpdateRecord(ctx context.Context, table, id string, fields map[string]any) error
	// GetRecord fetches a record by ID. Returns (nil, nil) when missing.
	GetRecord(ctx context.Context, table, id string) (*Record, error)
	// FindFirst returns the first record whose field equals value, or
	// (nil, nil) when none matches.
	FindFirst(ctx context.Context, table, field, value string) (*Record, error)
	// ListRecent returns up to limit records, most recently created first.
	ListRecent(ctx context.Context, table string, limit int) ([]*Record, error)
	// UploadAttachment stores binary content into an attachment field of a
	// record and returns the reference URL the store assigned.
	UploadAttachment(ctx context.Context, table, recordID, field, filename, contentType string, data []byte) (string, error)
}
