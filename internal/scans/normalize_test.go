package scans

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gen2brain/go-fitz"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/docuflat/docuflat-backend/pkg/errors"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func stageBytes(t *testing.T, dir string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, "staged")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestNormalizeRelocatesPNG(t *testing.T) {
	dir := t.TempDir()
	staged := stageBytes(t, dir, encodePNG(t))
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(1 << 20)
	require.NoError(t, err)
	require.NoError(t, n.Normalize(staged, "image/png", dst))

	_, err = os.Stat(dst)
	require.NoError(t, err)
	_, err = os.Stat(staged)
	require.True(t, os.IsNotExist(err), "staged file must be consumed")
}

func TestNormalizeAcceptsJPGAlias(t *testing.T) {
	dir := t.TempDir()
	staged := stageBytes(t, dir, encodeJPEG(t))
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(1 << 20)
	require.NoError(t, err)
	require.NoError(t, n.Normalize(staged, "image/jpg", dst))

	_, err = os.Stat(dst)
	require.NoError(t, err)
}

func TestNormalizeRejectsDisallowedType(t *testing.T) {
	dir := t.TempDir()
	staged := stageBytes(t, dir, []byte("GIF89a..."))
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(1 << 20)
	require.NoError(t, err)

	err = n.Normalize(staged, "image/gif", dst)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnsupportedMedia))
	_, statErr := os.Stat(staged)
	require.True(t, os.IsNotExist(statErr), "staged file must be cleaned up on failure")
}

func TestNormalizeRejectsMismatchedContent(t *testing.T) {
	dir := t.TempDir()
	staged := stageBytes(t, dir, encodeJPEG(t))
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(1 << 20)
	require.NoError(t, err)

	err = n.Normalize(staged, "image/png", dst)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnsupportedMedia))
}

func TestNormalizeRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	staged := stageBytes(t, dir, encodePNG(t))
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(16)
	require.NoError(t, err)

	err = n.Normalize(staged, "image/png", dst)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodePayloadTooLarge))
}

func TestNormalizeRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	staged := stageBytes(t, dir, nil)
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(1 << 20)
	require.NoError(t, err)

	err = n.Normalize(staged, "image/png", dst)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestNormalizeRequiresContentType(t *testing.T) {
	dir := t.TempDir()
	staged := stageBytes(t, dir, encodePNG(t))
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(1 << 20)
	require.NoError(t, err)

	err = n.Normalize(staged, "", dst)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnsupportedMedia))
}

// buildPDF assembles a minimal PDF with one empty page per media box, with a
// correct xref table so the renderer does not have to repair it.
func buildPDF(t *testing.T, pageBoxes [][2]int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, 0, len(pageBoxes))
	for i := range pageBoxes {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i))
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageBoxes)),
	}
	for _, box := range pageBoxes {
		objects = append(objects, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] >>", box[0], box[1]))
	}

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)
	return buf.Bytes()
}

func requirePDFRenderer(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF(t, [][2]int{{72, 72}}), 0o644))
	doc, err := fitz.New(path)
	if err != nil {
		t.Skipf("pdf renderer unavailable: %v", err)
	}
	_ = doc.Close()
}

func decodeRaster(t *testing.T, path string) image.Image {
	t.Helper()
	out, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = out.Close() }()
	img, err := png.Decode(out)
	require.NoError(t, err)
	return img
}

func TestNormalizeRendersPDFAtDoubleResolution(t *testing.T) {
	requirePDFRenderer(t)
	dir := t.TempDir()
	staged := stageBytes(t, dir, buildPDF(t, [][2]int{{72, 36}}))
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(1 << 20)
	require.NoError(t, err)
	require.NoError(t, n.Normalize(staged, "application/pdf", dst))

	// A 72x36 point page at 144 dpi is exactly twice the point grid.
	img := decodeRaster(t, dst)
	require.Equal(t, 144, img.Bounds().Dx())
	require.Equal(t, 72, img.Bounds().Dy())

	_, err = os.Stat(staged)
	require.True(t, os.IsNotExist(err), "staged pdf must be consumed")
}

func TestNormalizeRendersOnlyFirstPDFPage(t *testing.T) {
	requirePDFRenderer(t)
	dir := t.TempDir()

	// Page 2 is a different size; the output dimensions reveal which page
	// was rendered.
	staged := stageBytes(t, dir, buildPDF(t, [][2]int{{72, 36}, {288, 288}}))
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(1 << 20)
	require.NoError(t, err)
	require.NoError(t, n.Normalize(staged, "application/pdf", dst))

	img := decodeRaster(t, dst)
	require.Equal(t, 144, img.Bounds().Dx())
	require.Equal(t, 72, img.Bounds().Dy())
}

func TestNormalizeRejectsBytesMasqueradingAsPDF(t *testing.T) {
	dir := t.TempDir()
	staged := stageBytes(t, dir, encodePNG(t))
	dst := filepath.Join(dir, "out.png")

	n, err := NewNormalizer(1 << 20)
	require.NoError(t, err)

	err = n.Normalize(staged, "application/pdf", dst)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnsupportedMedia))
}

func TestParseDeclaredTypeStripsParameters(t *testing.T) {
	mediaType, err := parseDeclaredType("image/PNG; charset=binary")
	require.NoError(t, err)
	require.Equal(t, "image/png", mediaType)
}
