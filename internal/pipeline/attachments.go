package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/condorhq/fieldops/internal/order"
	"github.com/condorhq/fieldops/internal/relay"
	"github.com/condorhq/fieldops/internal/tabular"
	"go.uber.org/zap"
)

// decodeImage decodes a base64 image, with or without a data URL prefix.
// Returns the raw bytes and a content type (default image/png).
func decodeImage(s string) ([]byte, string, error) {
	contentType := "image/png"
	if strings.HasPrefix(s, "data:") {
		semi := strings.Index(s, ";base64,")
		if semi < 0 {
			return nil, "", fmt.Errorf("unsupported data URL encoding")
		}
		contentType = s[len("data:"):semi]
		s = s[semi+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64 image: %w", err)
	}
	return data, contentType, nil
}

// persistAttachments decodes and stores the before/after photos and the
// signature, returning the references assigned by the store. Each failure is
// logged and skipped; attachments degrade the outcome but never abort the
// already-created order.
func (s *Service) persistAttachments(ctx context.Context, recordID string, p *order.Payload) relay.AttachmentRefs {
	var refs relay.AttachmentRefs

	upload := func(field, filename, img string) string {
		data, contentType, err := decodeImage(img)
		if err != nil {
			s.logger.Warn("skipping attachment", zap.String("field", field), zap.Error(err))
			return ""
		}
		url, err := s.store.UploadAttachment(ctx, tabular.TableOrdenes, recordID, field, filename, contentType, data)
		if err != nil {
			s.logger.Warn("attachment upload failed", zap.String("field", field), zap.Error(err))
			return ""
		}
		return url
	}

	for i, img := range p.FotosAntes {
		if url := upload(fieldFotosAntes, fmt.Sprintf("antes_%02d.png", i+1), img); url != "" {
			refs.FotosAntes = append(refs.FotosAntes, url)
		}
	}
	for i, img := range p.FotosDespues {
		if url := upload(fieldFotosDespues, fmt.Sprintf("despues_%02d.png", i+1), img); url != "" {
			refs.FotosDespues = append(refs.FotosDespues, url)
		}
	}
	if p.FirmaBase64 != "" {
		refs.Firma = upload(fieldFirma, "firma.png", p.FirmaBase64)
	}
	return refs
}

// attachmentURLs extracts reference URLs from a stored attachment field,
// which comes back as a list of {url: ...} objects from the REST store or a
// list of strings from the mock.
func attachmentURLs(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	var out []string
	for _, item := range items {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			if url, ok := t["url"].(string); ok {
				out = append(out, url)
			}
		}
	}
	return out
}
