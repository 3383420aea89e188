package tabular

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", "appBASE", WithEndpoints(srv.URL, srv.URL))
}

func TestCreateRecordSendsTypecast(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(Record{ID: "rec001", Fields: map[string]any{"Nombre": "X"}})
	}))

	rec, err := c.CreateRecord(context.Background(), TableClientes, map[string]any{"Nombre": "X"})
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if rec.ID != "rec001" {
		t.Errorf("ID = %q", rec.ID)
	}
	if gotPath != "/appBASE/Clientes" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["typecast"] != true {
		t.Error("typecast flag missing")
	}
}

func TestGetRecordMissingIsNilNil(t *testing.T) {
	c := testClient(t, http.NotFoundHandler())

	rec, err := c.GetRecord(context.Background(), TableOrdenes, "rec_missing")
	if err != nil {
		t.Fatalf("GetRecord() error = %v, want nil for 404", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil", rec)
	}
}

func TestMissingRecordErrorsWrapErrNotFound(t *testing.T) {
	c := testClient(t, http.NotFoundHandler())

	err := c.UpdateRecord(context.Background(), TableOrdenes, "rec_missing", map[string]any{"Estado": "Completada"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("client error = %v, want ErrNotFound", err)
	}

	m := NewMock()
	err = m.UpdateRecord(context.Background(), TableOrdenes, "rec_missing", map[string]any{"Estado": "Completada"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("mock error = %v, want ErrNotFound", err)
	}
}

func TestFindFirstBuildsFormula(t *testing.T) {
	var gotFormula string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []Record{{ID: "rec002", Fields: map[string]any{"RUT": "12.345.678-9"}}},
		})
	}))

	rec, err := c.FindFirst(context.Background(), TableClientes, "RUT", "12.345.678-9")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.ID != "rec002" {
		t.Fatalf("rec = %+v", rec)
	}
	if gotFormula != "{RUT} = '12.345.678-9'" {
		t.Errorf("formula = %q", gotFormula)
	}
}

func TestFindFirstEscapesQuotes(t *testing.T) {
	var gotFormula string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		_ = json.NewEncoder(w).Encode(map[string]any{"records": []Record{}})
	}))

	rec, err := c.FindFirst(context.Background(), TableClientes, "Nombre", "D'Angelo")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil for no match", rec)
	}
	if gotFormula != `{Nombre} = 'D\'Angelo'` {
		t.Errorf("formula = %q", gotFormula)
	}
}

func TestUploadAttachmentReturnsAssignedURL(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, err := base64.StdEncoding.DecodeString(body["file"].(string)); err != nil {
			t.Errorf("file is not base64: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "rec003",
			"fields": map[string]any{
				"Firma": []map[string]string{
					{"url": "https://dl.example.com/old.png"},
					{"url": "https://dl.example.com/firma.png"},
				},
			},
		})
	}))

	url, err := c.UploadAttachment(context.Background(), TableOrdenes, "rec003", "Firma", "firma.png", "image/png", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("UploadAttachment() error = %v", err)
	}
	if url != "https://dl.example.com/firma.png" {
		t.Errorf("url = %q, want the last attachment's URL", url)
	}
}
