package filecheck

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// MaxSizeBytes is the upload size cap shared by client and server checks.
const MaxSizeBytes = 10 << 20

// HeaderLen is how many leading bytes Check needs to see.
const HeaderLen = 4

var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidType       = errors.New("invalid file type")
	ErrSignatureMismatch = errors.New("file signature mismatch")
)

// FileMeta describes a candidate upload.
type FileMeta struct {
	Name      string
	MimeType  string
	SizeBytes int64
}

var signatures = map[string][]byte{
	"image/jpeg":      {0xFF, 0xD8, 0xFF},
	"image/png":       {0x89, 0x50, 0x4E, 0x47},
	"application/pdf": {0x25, 0x50, 0x44, 0x46},
}

var acceptedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/jpg":  {},
	// DICOM is accepted on the declared type alone; there is no magic
	// check for it, so a renamed file with a dicom MIME passes. Kept as
	// the upstream policy rather than silently tightened.
	"application/dicom": {},
	"application/pdf":   {},
}

// Check applies the shared upload policy: size cap, declared MIME
// allow-list, and a magic-byte match on the first bytes of the payload.
// The same policy runs client-side before upload and server-side after
// download; the client result is advisory only.
func Check(meta FileMeta, head []byte) error {
	if meta.SizeBytes > MaxSizeBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, meta.SizeBytes, int64(MaxSizeBytes))
	}

	mime := normalizeMime(meta.MimeType)
	if _, ok := acceptedTypes[mime]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidType, meta.MimeType)
	}

	sig, ok := signatures[canonicalMime(mime)]
	if !ok {
		return nil
	}
	if len(head) < len(sig) || !bytes.Equal(head[:len(sig)], sig) {
		return fmt.Errorf("%w: declared %s", ErrSignatureMismatch, meta.MimeType)
	}
	return nil
}

func normalizeMime(raw string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(raw, ";")[0]))
}

func canonicalMime(mime string) string {
	if mime == "image/jpg" {
		return "image/jpeg"
	}
	return mime
}
