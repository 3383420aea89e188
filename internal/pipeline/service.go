// Package pipeline orchestrates the multi-step order write: idempotency
// check, cliente resolution, order record creation, attachment persistence
// and webhook relay. Record creation is the durability point; every later
// step degrades the outcome instead of rolling it back.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/condorhq/fieldops/internal/idem"
	"github.com/condorhq/fieldops/internal/order"
	"github.com/condorhq/fieldops/internal/relay"
	"github.com/condorhq/fieldops/internal/tabular"
	"go.uber.org/zap"
)

// ErrRecordNotFound is returned by Resend and Update for an unknown record id.
var ErrRecordNotFound = errors.New("order record not found")

// Service is the order submission orchestrator.
type Service struct {
	store  tabular.Store
	relay  *relay.Relay
	guard  *idem.Guard
	logger *zap.Logger
}

// NewService creates the orchestrator.
func NewService(store tabular.Store, r *relay.Relay, guard *idem.Guard, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		relay:  r,
		guard:  guard,
		logger: logger,
	}
}

// Create runs the full submission sequence for a new order. At most one
// record is created per idempotency key, even under retries and concurrent
// duplicates; requests without a key are always treated as novel.
func (s *Service) Create(ctx context.Context, p *order.Payload) (*order.Result, error) {
	release, inflight := s.guard.Begin(p.IdempotencyKey)
	defer release()
	if inflight {
		s.logger.Info("duplicate submission caught in flight", zap.String("key", p.IdempotencyKey))
		return &order.Result{Duplicate: true}, nil
	}

	if p.IdempotencyKey != "" {
		existing, err := s.store.FindFirst(ctx, tabular.TableOrdenes, fieldIdempotencyKey, p.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			s.logger.Info("duplicate submission matched existing record",
				zap.String("key", p.IdempotencyKey),
				zap.String("record", existing.ID))
			return &order.Result{
				RecordCreated: true,
				RecordID:      existing.ID,
				Duplicate:     true,
			}, nil
		}
	}

	// Cliente resolution is non-fatal: a lost linkage is recoverable, a
	// lost order is not.
	clienteID := s.resolveCliente(ctx, p)

	rec, err := s.store.CreateRecord(ctx, tabular.TableOrdenes, recordFields(p, clienteID))
	if err != nil {
		return nil, fmt.Errorf("create order record: %w", err)
	}
	s.logger.Info("order record created", zap.String("record", rec.ID))

	refs := s.persistAttachments(ctx, rec.ID, p)

	result := &order.Result{
		RecordCreated: true,
		RecordID:      rec.ID,
	}
	s.sendRelay(ctx, relay.Projection(p, refs, time.Now()), result)
	return result, nil
}

// Resend re-reads a stored order and re-invokes only the relay step with its
// current fields. The record itself is not touched.
func (s *Service) Resend(ctx context.Context, recordID string) (*order.Result, error) {
	rec, err := s.store.GetRecord(ctx, tabular.TableOrdenes, recordID)
	if err != nil {
		return nil, fmt.Errorf("read order record: %w", err)
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}

	p := payloadFromRecord(rec)
	refs := relay.AttachmentRefs{
		FotosAntes:   attachmentURLs(rec.Fields[fieldFotosAntes]),
		FotosDespues: attachmentURLs(rec.Fields[fieldFotosDespues]),
	}
	if firmas := attachmentURLs(rec.Fields[fieldFirma]); len(firmas) > 0 {
		refs.Firma = firmas[len(firmas)-1]
	}

	result := &order.Result{
		RecordCreated: true,
		RecordID:      recordID,
	}
	s.sendRelay(ctx, relay.Projection(p, refs, time.Now()), result)
	return result, nil
}

// Update re-runs record write, attachments and relay against an existing
// record. Edits are explicit and user-initiated, so no idempotency check
// applies here.
func (s *Service) Update(ctx context.Context, recordID string, p *order.Payload) (*order.Result, error) {
	rec, err := s.store.GetRecord(ctx, tabular.TableOrdenes, recordID)
	if err != nil {
		return nil, fmt.Errorf("read order record: %w", err)
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}

	clienteID := s.resolveCliente(ctx, p)
	if err := s.store.UpdateRecord(ctx, tabular.TableOrdenes, recordID, recordFields(p, clienteID)); err != nil {
		return nil, fmt.Errorf("update order record: %w", err)
	}

	refs := s.persistAttachments(ctx, recordID, p)

	result := &order.Result{
		RecordCreated: true,
		RecordID:      recordID,
	}
	s.sendRelay(ctx, relay.Projection(p, refs, time.Now()), result)
	return result, nil
}

// List returns the most recent orders, denormalized for dashboard display.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	recs, err := s.store.ListRecent(ctx, tabular.TableOrdenes, 50)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Summary{
			ID:            rec.ID,
			Fecha:         rec.String(fieldFecha),
			Estado:        rec.String(fieldEstado),
			ClienteNombre: rec.String(fieldClienteNombre),
			ClienteRut:    rec.String(fieldClienteRut),
			Direccion:     rec.String(fieldDireccion),
			Comuna:        rec.String(fieldComuna),
			Total:         floatField(rec.Fields[fieldTotal]),
		})
	}
	return out, nil
}

// sendRelay runs the relay step and folds its outcome into the result.
// Relay failure is a degraded success, never an error.
func (s *Service) sendRelay(ctx context.Context, projection map[string]any, result *order.Result) {
	data, err := s.relay.Send(ctx, projection)
	if err != nil {
		s.logger.Warn("webhook relay failed (order recorded)",
			zap.String("record", result.RecordID),
			zap.Error(err))
		result.RelayOk = false
		result.RelayError = err.Error()
		return
	}
	result.RelayOk = true
	result.RelayData = data
}

// resolveCliente returns the cliente record id for the payload: the explicit
// reference when present, an existing record matched by RUT, or a newly
// created record. Failures are logged and resolve to no linkage.
func (s *Service) resolveCliente(ctx context.Context, p *order.Payload) string {
	if p.ClienteRecordID != "" {
		return p.ClienteRecordID
	}
	if p.ClienteRut == "" {
		return ""
	}

	existing, err := s.store.FindFirst(ctx, tabular.TableClientes, "RUT", p.ClienteRut)
	if err != nil {
		s.logger.Warn("cliente lookup failed, continuing without linkage", zap.Error(err))
		return ""
	}
	if existing != nil {
		return existing.ID
	}

	rec, err := s.store.CreateRecord(ctx, tabular.TableClientes, map[string]any{
		"RUT":       p.ClienteRut,
		"Nombre":    p.ClienteNombre,
		"Email":     p.ClienteEmail,
		"Telefono":  p.ClienteTelefono,
		"Direccion": p.Direccion,
		"Comuna":    p.Comuna,
	})
	if err != nil {
		s.logger.Warn("cliente creation failed, continuing without linkage", zap.Error(err))
		return ""
	}
	s.logger.Info("cliente record created", zap.String("record", rec.ID))
	return rec.ID
}

// payloadFromRecord reconstructs the relay-relevant payload fields from a
// stored order record.
func payloadFromRecord(rec *tabular.Record) *order.Payload {
	p := &order.Payload{
		Fecha:           rec.String(fieldFecha),
		ClienteNombre:   rec.String(fieldClienteNombre),
		ClienteRut:      rec.String(fieldClienteRut),
		ClienteEmail:    rec.String(fieldClienteEmail),
		ClienteTelefono: rec.String(fieldClienteFono),
		Direccion:       rec.String(fieldDireccion),
		Comuna:          rec.String(fieldComuna),
		OrdenCompra:     rec.String(fieldOrdenCompra),
		Supervisor:      rec.String(fieldSupervisor),
		HoraInicio:      rec.String(fieldHoraInicio),
		HoraTermino:     rec.String(fieldHoraTermino),
		Descripcion:     rec.String(fieldDescripcion),
		Observaciones:   rec.String(fieldObservaciones),
		PatenteVehiculo: rec.String(fieldPatente),
		MetodoPago:      rec.String(fieldMetodoPago),
		Garantia:        rec.String(fieldGarantia),
		Total:           floatField(rec.Fields[fieldTotal]),
	}
	if raw := rec.String(fieldTrabajos); raw != "" {
		_ = json.Unmarshal([]byte(raw), &p.Trabajos)
	}
	if raw := rec.String(fieldPersonal); raw != "" {
		_ = json.Unmarshal([]byte(raw), &p.Personal)
	}
	if b, ok := rec.Fields[fieldFactura].(bool); ok {
		p.RequiereFactura = b
	}
	return p
}

func floatField(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	}
	return 0
}
