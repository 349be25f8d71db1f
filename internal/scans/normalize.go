package scans

import (
	"fmt"
	"image/png"
	"mime"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"

	pkgerrors "github.com/docuflat/docuflat-backend/pkg/errors"
)

const (
	// canonicalExt is the raster encoding every pipeline stage downstream of
	// normalization can assume.
	canonicalExt = ".png"

	// pdfRenderDPI renders PDF pages at 2x the PDF point grid (72 dpi) so
	// boundary detection keeps enough resolution to score edges.
	pdfRenderDPI = 144
)

var allowedMimeTypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/jpg":       {},
	"application/pdf": {},
}

// Normalizer converts a staged upload into a single canonical raster file.
// Image payloads are relocated as-is; PDFs have their first page rendered.
// Multi-page PDFs are deliberately reduced to page 1.
type Normalizer struct {
	maxBytes int64
}

func NewNormalizer(maxBytes int64) (*Normalizer, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	return &Normalizer{maxBytes: maxBytes}, nil
}

// Normalize consumes the staged file and leaves the canonical raster at
// dstPath. On failure the staged file is removed so callers never inherit a
// half-consumed temp file.
func (n *Normalizer) Normalize(stagedPath, declaredType, dstPath string) error {
	cleanupStaged := true
	defer func() {
		if cleanupStaged {
			_ = os.Remove(stagedPath)
		}
	}()

	info, err := os.Stat(stagedPath)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inspect staged file")
	}
	if info.Size() == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "uploaded file is empty")
	}
	if info.Size() > n.maxBytes {
		return pkgerrors.New(pkgerrors.CodePayloadTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", n.maxBytes))
	}

	declared, err := parseDeclaredType(declaredType)
	if err != nil {
		return err
	}

	// The declared type is attacker-controlled; confirm it against the bytes.
	sniffed, err := mimetype.DetectFile(stagedPath)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sniff staged file")
	}
	if !typesAgree(declared, sniffed.String()) {
		return pkgerrors.New(pkgerrors.CodeUnsupportedMedia,
			fmt.Sprintf("file content is %s, not %s", sniffed.String(), declared))
	}

	if declared == "application/pdf" {
		if err := renderFirstPage(stagedPath, dstPath); err != nil {
			return err
		}
		return nil
	}

	if err := os.Rename(stagedPath, dstPath); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "relocate staged file")
	}
	cleanupStaged = false
	return nil
}

func parseDeclaredType(declaredType string) (string, error) {
	clean := strings.TrimSpace(declaredType)
	if clean == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnsupportedMedia, "content type is required")
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnsupportedMedia, err, "content type invalid")
	}
	mediaType = strings.ToLower(mediaType)
	if _, ok := allowedMimeTypes[mediaType]; !ok {
		return "", pkgerrors.New(pkgerrors.CodeUnsupportedMedia,
			fmt.Sprintf("content type %s not allowed; use PNG, JPEG, or PDF", mediaType))
	}
	return mediaType, nil
}

// typesAgree tolerates the image/jpg alias but otherwise requires the sniffed
// type to match the declaration.
func typesAgree(declared, sniffed string) bool {
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	return declared == sniffed
}

// renderFirstPage rasterizes page 1 of the PDF into a PNG. Further pages are
// ignored.
func renderFirstPage(pdfPath, dstPath string) error {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open pdf")
	}
	defer func() { _ = doc.Close() }()

	if doc.NumPage() == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "pdf has no pages")
	}

	img, err := doc.ImageDPI(0, pdfRenderDPI)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "render pdf page")
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create raster file")
	}
	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		_ = os.Remove(dstPath)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode raster")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dstPath)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close raster file")
	}
	return nil
}
