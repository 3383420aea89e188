// Package order defines the work-order wire types shared by the agent and
// the backend. Field names follow the JSON contract the clients already
// speak; the record and webhook field names live with the pipeline.
package order

import "encoding/json"

// Trabajo is one job line of a work order.
type Trabajo struct {
	Nombre   string  `json:"nombre"`
	Cantidad float64 `json:"cantidad"`
}

// Payload is a full work-order submission as posted by a client.
type Payload struct {
	Fecha           string    `json:"fecha"`
	ClienteRecordID string    `json:"clienteRecordId,omitempty"`
	ClienteNombre   string    `json:"clienteNombre"`
	ClienteRut      string    `json:"clienteRut"`
	ClienteEmail    string    `json:"clienteEmail,omitempty"`
	ClienteTelefono string    `json:"clienteTelefono,omitempty"`
	Direccion       string    `json:"direccion,omitempty"`
	Comuna          string    `json:"comuna,omitempty"`
	OrdenCompra     string    `json:"ordenCompra,omitempty"`
	Supervisor      string    `json:"supervisor,omitempty"`
	HoraInicio      string    `json:"horaInicio,omitempty"`
	HoraTermino     string    `json:"horaTermino,omitempty"`
	Trabajos        []Trabajo `json:"trabajos,omitempty"`
	Descripcion     string    `json:"descripcionTrabajo,omitempty"`
	Observaciones   string    `json:"observaciones,omitempty"`
	Personal        []string  `json:"personal,omitempty"`
	PatenteVehiculo string    `json:"patenteVehiculo,omitempty"`
	Total           float64   `json:"total,omitempty"`
	MetodoPago      string    `json:"metodoPago,omitempty"`
	Garantia        string    `json:"garantia,omitempty"`
	RequiereFactura bool      `json:"requiereFactura,omitempty"`

	// Media arrives base64-encoded (optionally as data: URLs) and is
	// converted to store attachments server-side.
	FirmaBase64  string   `json:"firmaBase64,omitempty"`
	FotosAntes   []string `json:"fotosAntes,omitempty"`
	FotosDespues []string `json:"fotosDespues,omitempty"`

	// IdempotencyKey is generated client-side before the first send attempt
	// and survives queueing, so replays of the same logical submission are
	// recognizable server-side.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// ActiveTrabajos returns the job lines with a positive quantity. Clients send
// the full catalog with zeroed rows for the jobs not performed.
func (p *Payload) ActiveTrabajos() []Trabajo {
	out := []Trabajo{}
	for _, t := range p.Trabajos {
		if t.Cantidad > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Result is the composite outcome of a submission. RecordCreated marks the
// durability point; everything after it degrades the result instead of
// failing it.
type Result struct {
	RecordCreated bool            `json:"recordCreated"`
	RecordID      string          `json:"recordId,omitempty"`
	RelayOk       bool            `json:"relayOk"`
	RelayError    string          `json:"relayError,omitempty"`
	RelayData     json.RawMessage `json:"relayData,omitempty"`
	Duplicate     bool            `json:"duplicate,omitempty"`
	Offline       bool            `json:"offline,omitempty"`
}
