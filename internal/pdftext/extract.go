package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/ledongthuc/pdf"

	"renovix-backend/internal/shared/telemetry"
)

const (
	// Direct extraction stops after this many pages.
	maxDirectPages = 20
	// Below this many characters the PDF is treated as scanned.
	minDirectChars = 50
	// OCR rasterizes at most this many pages.
	maxOCRPages = 3
	// Render scale for OCR input, relative to the PDF's 72 dpi baseline.
	ocrScale = 1.5
	// Character budget for the downstream analysis request.
	maxChars = 20000
)

// ErrUnreadable indicates no text could be recovered from the PDF, with
// or without OCR. Callers must not submit such files for analysis.
var ErrUnreadable = errors.New("pdf text unreadable")

// Recognizer runs optical character recognition over a rendered page.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Extractor pulls the embedded text layer from a PDF and falls back to
// OCR for scanned documents.
type Extractor struct {
	ocr Recognizer

	// Seams for tests; production uses the pdf and fitz backed defaults.
	readPages   func(data []byte, maxPages int) ([]string, error)
	renderPages func(data []byte, maxPages int, scale float64) ([]image.Image, error)
}

// New builds an Extractor. A nil recognizer disables the OCR fallback.
func New(ocr Recognizer) *Extractor {
	return &Extractor{
		ocr:         ocr,
		readPages:   readPDFPages,
		renderPages: renderPDFPages,
	}
}

// Extract returns the concatenated page text of the PDF, truncated to
// the downstream character budget. Pages carry "Page N:" headers; OCR
// sections carry "Page N OCR:" headers.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrUnreadable
	}

	var b strings.Builder
	pages, err := e.readPages(data, maxDirectPages)
	if err != nil {
		telemetry.Info("pdftext.direct.failed", map[string]any{"err": err.Error()})
	}
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "Page %d:\n%s\n\n", i+1, strings.TrimSpace(text))
	}

	if charCount(b.String()) < minDirectChars {
		if err := e.appendOCR(ctx, data, &b); err != nil {
			telemetry.Info("pdftext.ocr.failed", map[string]any{"err": err.Error()})
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrUnreadable
	}
	return truncate(out, maxChars), nil
}

func (e *Extractor) appendOCR(ctx context.Context, data []byte, b *strings.Builder) error {
	if e.ocr == nil {
		return errors.New("no ocr recognizer configured")
	}
	images, err := e.renderPages(data, maxOCRPages, ocrScale)
	if err != nil {
		return fmt.Errorf("render pages: %w", err)
	}
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := e.ocr.Recognize(ctx, img)
		if err != nil {
			telemetry.Info("pdftext.ocr.page_failed", map[string]any{"page": i + 1, "err": err.Error()})
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(b, "Page %d OCR:\n%s\n\n", i+1, strings.TrimSpace(text))
	}
	return nil
}

func charCount(s string) int {
	return len(strings.TrimSpace(s))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Cut on a rune boundary so the tail is valid UTF-8.
	cut := limit
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func readPDFPages(data []byte, maxPages int) ([]string, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("new pdf reader: %w", err)
	}

	total := doc.NumPage()
	if total > maxPages {
		total = maxPages
	}

	pages := make([]string, 0, total)
	for n := 1; n <= total; n++ {
		p := doc.Page(n)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, content)
	}
	return pages, nil
}
