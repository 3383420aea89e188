package tabular

import (
	"context"
	"fmt"
	"sync"
)

// Mock is an in-memory Store used when MOCK_MODE is enabled and as the test
// double for the pipeline.
type Mock struct {
	mu     sync.Mutex
	tables map[string][]*Record
	nextID int
}

// NewMock creates an empty in-memory store.
func NewMock() *Mock {
	return &Mock{tables: make(map[string][]*Record)}
}

// NewSeededMock creates a mock pre-loaded with demo técnicos and clientes,
// mirroring the fixtures the backend serves in mock mode.
func NewSeededMock() *Mock {
	m := NewMock()
	ctx := context.Background()
	tecnicos := []map[string]any{
		{"ID": "1", "Nombre": "Carlos Méndez", "Email": "carlos.mendez@condor.cl", "Pin Acceso": "1234", "Telefono": "+56 9 1111 1111", "Especialidad": "Hidrojet", "Estado": "Activo"},
		{"ID": "2", "Nombre": "Laura Torres", "Email": "laura.torres@condor.cl", "Pin Acceso": "1234", "Telefono": "+56 9 2222 2222", "Especialidad": "Varillaje", "Estado": "Activo"},
		{"ID": "3", "Nombre": "Diego Silva", "Email": "diego.silva@condor.cl", "Pin Acceso": "1234", "Telefono": "+56 9 3333 3333", "Especialidad": "Evacuación", "Estado": "Activo"},
	}
	for _, t := range tecnicos {
		_, _ = m.CreateRecord(ctx, TableEmpleados, t)
	}
	clientes := []map[string]any{
		{"RUT": "12.345.678-9", "Nombre": "Condominio Vista Hermosa", "Email": "admin@vistahermosa.cl", "Telefono": "+56 2 1234 5678", "Direccion": "Av. Principal 1000, Providencia", "Comuna": "Providencia"},
		{"RUT": "9.876.543-2", "Nombre": "Restaurant El Buen Sabor", "Email": "contacto@buensabor.cl", "Telefono": "+56 2 8765 4321", "Direccion": "Calle Comercio 456, Santiago", "Comuna": "Santiago"},
	}
	for _, c := range clientes {
		_, _ = m.CreateRecord(ctx, TableClientes, c)
	}
	return m
}

// CreateRecord appends a record and assigns it a synthetic ID.
func (m *Mock) CreateRecord(_ context.Context, table string, fields map[string]any) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec := &Record{
		ID:     fmt.Sprintf("rec_mock_%03d", m.nextID),
		Fields: copyFields(fields),
	}
	m.tables[table] = append(m.tables[table], rec)
	return &Record{ID: rec.ID, Fields: copyFields(rec.Fields)}, nil
}

// UpdateRecord patches an existing record in place.
func (m *Mock) UpdateRecord(_ context.Context, table, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.tables[table] {
		if rec.ID == id {
			for k, v := range fields {
				rec.Fields[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s in %s", ErrNotFound, id, table)
}

// GetRecord returns a copy of the record, or (nil, nil) when missing.
func (m *Mock) GetRecord(_ context.Context, table, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.tables[table] {
		if rec.ID == id {
			return &Record{ID: rec.ID, Fields: copyFields(rec.Fields)}, nil
		}
	}
	return nil, nil
}

// FindFirst scans the table in insertion order for a string field match.
func (m *Mock) FindFirst(_ context.Context, table, field, value string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.tables[table] {
		if s, ok := rec.Fields[field].(string); ok && s == value {
			return &Record{ID: rec.ID, Fields: copyFields(rec.Fields)}, nil
		}
	}
	return nil, nil
}

// ListRecent returns up to limit records, newest first.
func (m *Mock) ListRecent(_ context.Context, table string, limit int) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.tables[table]
	var out []*Record
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, &Record{ID: recs[i].ID, Fields: copyFields(recs[i].Fields)})
	}
	return out, nil
}

// UploadAttachment records the attachment name and returns a synthetic URL.
func (m *Mock) UploadAttachment(_ context.Context, table, recordID, field, filename, _ string, _ []byte) (string, error) {
	url := fmt.Sprintf("mock://attachments/%s/%s/%s", recordID, field, filename)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.tables[table] {
		if rec.ID == recordID {
			refs, _ := rec.Fields[field].([]string)
			rec.Fields[field] = append(refs, url)
			return url, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNotFound, recordID, table)
}

// Records returns the live records of a table for test assertions.
func (m *Mock) Records(table string) []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, 0, len(m.tables[table]))
	for _, rec := range m.tables[table] {
		out = append(out, &Record{ID: rec.ID, Fields: copyFields(rec.Fields)})
	}
	return out
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
