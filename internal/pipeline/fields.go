package pipeline

import (
	"encoding/json"

	"github.com/condorhq/fieldops/internal/order"
)

// Field names of the remote order table. The tabular store is schemaless
// from our side; these are the denormalized columns downstream tooling
// reads.
const (
	fieldFecha          = "Fecha"
	fieldEstado         = "Estado"
	fieldClienteNombre  = "Cliente nombre"
	fieldClienteRut     = "Cliente RUT"
	fieldClienteEmail   = "Cliente email"
	fieldClienteFono    = "Cliente telefono"
	fieldDireccion      = "Direccion"
	fieldComuna         = "Comuna"
	fieldOrdenCompra    = "Orden compra"
	fieldSupervisor     = "Supervisor"
	fieldHoraInicio     = "Hora inicio"
	fieldHoraTermino    = "Hora termino"
	fieldTrabajos       = "Trabajos realizados"
	fieldDescripcion    = "Descripcion trabajo"
	fieldObservaciones  = "Observaciones"
	fieldPersonal       = "Personal"
	fieldPatente        = "Patente vehiculo"
	fieldTotal          = "Total"
	fieldMetodoPago     = "Metodo pago"
	fieldGarantia       = "Garantia"
	fieldFactura        = "Requiere factura"
	fieldClienteRecord  = "Cliente record"
	fieldIdempotencyKey = "Idempotency Key"

	fieldFotosAntes   = "Fotos Antes"
	fieldFotosDespues = "Fotos Despues"
	fieldFirma        = "Firma"
)

// recordFields builds the order record write from a submission payload.
// Job lines and crew are stored serialized, matching how the dashboards
// read them back.
func recordFields(p *order.Payload, clienteRecordID string) map[string]any {
	trabajos, _ := json.Marshal(p.ActiveTrabajos())
	personal, _ := json.Marshal(p.Personal)

	fields := map[string]any{
		fieldFecha:         p.Fecha,
		fieldEstado:        "Completada",
		fieldClienteNombre: p.ClienteNombre,
		fieldClienteRut:    p.ClienteRut,
		fieldClienteEmail:  p.ClienteEmail,
		fieldClienteFono:   p.ClienteTelefono,
		fieldDireccion:     p.Direccion,
		fieldComuna:        p.Comuna,
		fieldOrdenCompra:   p.OrdenCompra,
		fieldSupervisor:    p.Supervisor,
		fieldHoraInicio:    p.HoraInicio,
		fieldHoraTermino:   p.HoraTermino,
		fieldTrabajos:      string(trabajos),
		fieldDescripcion:   p.Descripcion,
		fieldObservaciones: p.Observaciones,
		fieldPersonal:      string(personal),
		fieldPatente:       p.PatenteVehiculo,
		fieldTotal:         p.Total,
		fieldMetodoPago:    p.MetodoPago,
		fieldGarantia:      p.Garantia,
		fieldFactura:       p.RequiereFactura,
	}
	if clienteRecordID != "" {
		fields[fieldClienteRecord] = clienteRecordID
	}
	if p.IdempotencyKey != "" {
		fields[fieldIdempotencyKey] = p.IdempotencyKey
	}
	return fields
}

// Summary is one row of the order listing, denormalized for display.
type Summary struct {
	ID            string  `json:"id"`
	Fecha         string  `json:"fecha"`
	Estado        string  `json:"estado"`
	ClienteNombre string  `json:"clienteNombre"`
	ClienteRut    string  `json:"clienteRut"`
	Direccion     string  `json:"direccion"`
	Comuna        string  `json:"comuna"`
	Total         float64 `json:"total"`
}
