package pdftext

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Rendering happens at 72 dpi times the requested scale.
const baseDPI = 72

func renderPDFPages(data []byte, maxPages int, scale float64) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total > maxPages {
		total = maxPages
	}

	images := make([]image.Image, 0, total)
	for n := 0; n < total; n++ {
		img, err := doc.ImageDPI(n, baseDPI*scale)
		if err != nil {
			return images, fmt.Errorf("render page %d: %w", n+1, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// TesseractRecognizer shells out to the tesseract binary for OCR. Pages
// are handed over as temporary PNG files because the CLI reads from
// disk.
type TesseractRecognizer struct {
	Binary   string
	Language string
}

// NewTesseract returns a recognizer using the given binary path, or
// "tesseract" from PATH when empty. Language defaults to English.
func NewTesseract(binary string) *TesseractRecognizer {
	if binary == "" {
		binary = "tesseract"
	}
	return &TesseractRecognizer{Binary: binary, Language: "eng"}
}

// Recognize writes the image to a temp file and runs tesseract over it.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	dir, err := os.MkdirTemp("", "ocr-page-")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "page.png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("encode page: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	lang := t.Language
	if lang == "" {
		lang = "eng"
	}
	cmd := exec.CommandContext(ctx, t.Binary, path, "stdout", "-l", lang)
	var out strings.Builder
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return out.String(), nil
}
