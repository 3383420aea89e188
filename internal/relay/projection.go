package relay

import (
	"time"

	"github.com/condorhq/fieldops/internal/order"
)

// AttachmentRefs are the store-assigned references to persisted media,
// passed to the sink in place of the raw bytes.
type AttachmentRefs struct {
	FotosAntes   []string
	FotosDespues []string
	Firma        string
}

// Projection builds the sanitized webhook payload: an explicit whitelist of
// structured fields plus attachment references. Base64 image payloads never
// cross this boundary. Pure transform, the input payload is not mutated.
func Projection(p *order.Payload, refs AttachmentRefs, sentAt time.Time) map[string]any {
	return map[string]any{
		"Fecha":               p.Fecha,
		"Estado":              "Completada",
		"Cliente":             p.ClienteNombre,
		"Cliente RUT":         p.ClienteRut,
		"Cliente Email":       p.ClienteEmail,
		"Cliente Telefono":    p.ClienteTelefono,
		"Cliente Direccion":   p.Direccion,
		"Cliente Comuna":      p.Comuna,
		"Orden de Compra":     p.OrdenCompra,
		"Supervisor":          p.Supervisor,
		"Hora Inicio":         p.HoraInicio,
		"Hora Termino":        p.HoraTermino,
		"Trabajos Realizados": p.ActiveTrabajos(),
		"Descripcion Trabajo": p.Descripcion,
		"Observaciones":       p.Observaciones,
		"Personal":            p.Personal,
		"Patente Vehiculo":    p.PatenteVehiculo,
		"Total":               p.Total,
		"Metodo Pago":         p.MetodoPago,
		"Garantia":            p.Garantia,
		"Requiere Factura":    p.RequiereFactura,
		"Firma Supervisor":    refs.Firma,
		"Fotos Antes":         emptyIfNil(refs.FotosAntes),
		"Fotos Despues":       emptyIfNil(refs.FotosDespues),
		"Fecha Envio":         sentAt.UTC().Format(time.RFC3339),
	}
}

func emptyIfNil(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}
