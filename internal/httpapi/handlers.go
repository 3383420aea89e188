// Package httpapi exposes the backend REST surface consumed by the
// technician clients. Every response uses the {success, data, error}
// envelope.
package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/condorhq/fieldops/internal/auth"
	"github.com/condorhq/fieldops/internal/config"
	"github.com/condorhq/fieldops/internal/order"
	"github.com/condorhq/fieldops/internal/pipeline"
	"github.com/condorhq/fieldops/internal/tabular"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers bundles the route handlers and their dependencies.
type Handlers struct {
	svc    *pipeline.Service
	store  tabular.Store
	cfg    *config.Server
	logger *zap.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(svc *pipeline.Service, store tabular.Store, cfg *config.Server, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, store: store, cfg: cfg, logger: logger}
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondErr(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// Health reports liveness; the agents' connectivity probe hits this.
func (h *Handlers) Health(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"status":    "ok",
		"mock":      h.cfg.MockMode,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type loginRequest struct {
	Email string `json:"email"`
	Pin   string `json:"pin"`
}

type userInfo struct {
	ID           string `json:"id"`
	RecordID     string `json:"recordId,omitempty"`
	Nombre       string `json:"nombre"`
	Email        string `json:"email"`
	Especialidad string `json:"especialidad,omitempty"`
}

// Login authenticates a technician by email + PIN and issues a session token.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Pin == "" {
		respondErr(c, http.StatusBadRequest, "Email y PIN son requeridos")
		return
	}

	rec, err := h.store.FindFirst(c.Request.Context(), tabular.TableEmpleados, "Email", req.Email)
	if err != nil {
		h.logger.Error("tecnico lookup failed", zap.Error(err))
		respondErr(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}
	if rec == nil {
		respondErr(c, http.StatusUnauthorized, "Credenciales incorrectas")
		return
	}
	if rec.String("Estado") != "Activo" {
		respondErr(c, http.StatusForbidden, "Usuario inactivo. Contacte al administrador.")
		return
	}
	if rec.String("Pin Acceso") != req.Pin {
		respondErr(c, http.StatusUnauthorized, "Credenciales incorrectas")
		return
	}

	user := userInfo{
		ID:           rec.String("ID"),
		RecordID:     rec.ID,
		Nombre:       rec.String("Nombre"),
		Email:        rec.String("Email"),
		Especialidad: rec.String("Especialidad"),
	}
	if user.ID == "" {
		user.ID = rec.ID
	}

	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, user.Email, user.Nombre)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		respondErr(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	respond(c, http.StatusOK, gin.H{"user": user, "token": token})
}

type clienteInfo struct {
	RecordID  string `json:"recordId"`
	Rut       string `json:"rut"`
	Nombre    string `json:"nombre"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono"`
	Direccion string `json:"direccion"`
	Comuna    string `json:"comuna"`
}

// BuscarClientes searches cliente records by RUT or name fragment.
func (h *Handlers) BuscarClientes(c *gin.Context) {
	q := c.Query("q")
	if len(q) < 2 {
		respond(c, http.StatusOK, []clienteInfo{})
		return
	}

	recs, err := h.store.ListRecent(c.Request.Context(), tabular.TableClientes, 100)
	if err != nil {
		h.logger.Error("cliente search failed", zap.Error(err))
		respondErr(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	needle := normalizeRut(q)
	results := []clienteInfo{}
	for _, rec := range recs {
		rut := normalizeRut(rec.String("RUT"))
		nombre := strings.ToLower(rec.String("Nombre"))
		if !strings.Contains(rut, needle) && !strings.Contains(nombre, strings.ToLower(q)) {
			continue
		}
		results = append(results, clienteInfo{
			RecordID:  rec.ID,
			Rut:       rec.String("RUT"),
			Nombre:    rec.String("Nombre"),
			Email:     rec.String("Email"),
			Telefono:  rec.String("Telefono"),
			Direccion: rec.String("Direccion"),
			Comuna:    rec.String("Comuna"),
		})
	}
	respond(c, http.StatusOK, results)
}

func normalizeRut(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToLower(s)
}

// Tecnicos lists active technicians (without their PINs).
func (h *Handlers) Tecnicos(c *gin.Context) {
	recs, err := h.store.ListRecent(c.Request.Context(), tabular.TableEmpleados, 100)
	if err != nil {
		h.logger.Error("tecnico listing failed", zap.Error(err))
		respondErr(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}
	out := []userInfo{}
	for _, rec := range recs {
		if rec.String("Estado") != "Activo" {
			continue
		}
		id := rec.String("ID")
		if id == "" {
			id = rec.ID
		}
		out = append(out, userInfo{
			ID:           id,
			Nombre:       rec.String("Nombre"),
			Email:        rec.String("Email"),
			Especialidad: rec.String("Especialidad"),
		})
	}
	respond(c, http.StatusOK, out)
}

// CrearOrden is the order submission endpoint.
func (h *Handlers) CrearOrden(c *gin.Context) {
	var p order.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		respondErr(c, http.StatusBadRequest, "Cuerpo de la orden inválido")
		return
	}

	result, err := h.svc.Create(c.Request.Context(), &p)
	if err != nil {
		h.logger.Error("order creation failed", zap.Error(err))
		respondErr(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusCreated, result)
}

// ReenviarOrden re-invokes only the webhook relay for a stored order.
func (h *Handlers) ReenviarOrden(c *gin.Context) {
	result, err := h.svc.Resend(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pipeline.ErrRecordNotFound) {
			respondErr(c, http.StatusNotFound, "Orden no encontrada")
			return
		}
		h.logger.Error("order resend failed", zap.Error(err))
		respondErr(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusOK, result)
}

// ActualizarOrden re-runs the write sequence against an existing record.
func (h *Handlers) ActualizarOrden(c *gin.Context) {
	var p order.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		respondErr(c, http.StatusBadRequest, "Cuerpo de la orden inválido")
		return
	}

	result, err := h.svc.Update(c.Request.Context(), c.Param("id"), &p)
	if err != nil {
		if errors.Is(err, pipeline.ErrRecordNotFound) {
			respondErr(c, http.StatusNotFound, "Orden no encontrada")
			return
		}
		h.logger.Error("order update failed", zap.Error(err))
		respondErr(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusOK, result)
}

// ListarOrdenes returns recent orders for the dashboard.
func (h *Handlers) ListarOrdenes(c *gin.Context) {
	out, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("order listing failed", zap.Error(err))
		respondErr(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusOK, out)
}
