package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/condorhq/fieldops/internal/order"
	"go.uber.org/zap"
)

func TestSendPostsPayloadAndReturnsBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"numeroOrden":"OT-1042"}`))
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	r := New(srv.URL, logger)

	data, err := r.Send(context.Background(), map[string]any{"Cliente": "Andes"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got["Cliente"] != "Andes" {
		t.Errorf("sink received %v", got)
	}
	if string(data) != `{"numeroOrden":"OT-1042"}` {
		t.Errorf("data = %s", data)
	}
}

func TestSendNotConfigured(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	r := New("", logger)

	_, err := r.Send(context.Background(), map[string]any{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestSendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	r := New(srv.URL, logger)

	if _, err := r.Send(context.Background(), map[string]any{}); err == nil {
		t.Error("Send() should fail on status 500")
	}
}

func TestSendWrapsNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Workflow was started"))
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	r := New(srv.URL, logger)

	data, err := r.Send(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Errorf("data is not valid JSON: %s", data)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s != "Workflow was started" {
		t.Errorf("data = %s", data)
	}
}

func TestProjectionWhitelistsAndSwapsMediaForRefs(t *testing.T) {
	p := &order.Payload{
		Fecha:         "2026-08-30",
		ClienteNombre: "Comercial Andes Ltda.",
		ClienteRut:    "76.543.210-K",
		OrdenCompra:   "OC-7781",
		Personal:      []string{"Carlos Méndez", "Diego Silva"},
		Trabajos: []order.Trabajo{
			{Nombre: "Mantención preventiva", Cantidad: 1},
			{Nombre: "Cambio de filtro", Cantidad: 0},
		},
		FirmaBase64: "data:image/png;base64,AAAA",
		FotosAntes:  []string{"data:image/jpeg;base64,BBBB"},
	}
	refs := AttachmentRefs{
		FotosAntes: []string{"https://cdn.example.com/antes-0.jpg"},
		Firma:      "https://cdn.example.com/firma.png",
	}
	sentAt := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)

	out := Projection(p, refs, sentAt)

	if out["Firma Supervisor"] != "https://cdn.example.com/firma.png" {
		t.Errorf("Firma Supervisor = %v", out["Firma Supervisor"])
	}
	antes, ok := out["Fotos Antes"].([]string)
	if !ok || len(antes) != 1 || antes[0] != refs.FotosAntes[0] {
		t.Errorf("Fotos Antes = %v", out["Fotos Antes"])
	}
	if out["Fecha Envio"] != "2026-08-30T18:00:00Z" {
		t.Errorf("Fecha Envio = %v", out["Fecha Envio"])
	}

	trabajos, ok := out["Trabajos Realizados"].([]order.Trabajo)
	if !ok || len(trabajos) != 1 || trabajos[0].Nombre != "Mantención preventiva" {
		t.Errorf("Trabajos Realizados = %v", out["Trabajos Realizados"])
	}

	// Raw base64 must never reach the sink.
	raw, _ := json.Marshal(out)
	for _, b64 := range []string{"AAAA", "BBBB"} {
		if strings.Contains(string(raw), b64) {
			t.Errorf("projection leaked base64 fragment %q", b64)
		}
	}

	despues, ok := out["Fotos Despues"].([]string)
	if !ok || despues == nil || len(despues) != 0 {
		t.Errorf("Fotos Despues = %v, want empty non-nil slice", out["Fotos Despues"])
	}
}
