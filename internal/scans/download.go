package scans

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/docuflat/docuflat-backend/pkg/errors"
)

// ArtifactKind selects which stored raster a download serves.
type ArtifactKind string

const (
	ArtifactOriginal  ArtifactKind = "original"
	ArtifactProcessed ArtifactKind = "processed"
)

// ParseArtifactKind validates a user-supplied kind segment.
func ParseArtifactKind(value string) (ArtifactKind, error) {
	switch ArtifactKind(strings.ToLower(strings.TrimSpace(value))) {
	case ArtifactOriginal:
		return ArtifactOriginal, nil
	case ArtifactProcessed:
		return ArtifactProcessed, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("artifact kind must be %q or %q", ArtifactOriginal, ArtifactProcessed))
	}
}

// OpenArtifact streams the requested artifact for an owned document and
// returns the filename the response should suggest, derived from the name the
// file was uploaded under.
func (s *service) OpenArtifact(ctx context.Context, ownerID, docID uuid.UUID, kind ArtifactKind) (io.ReadCloser, string, error) {
	upload, err := s.findOwned(ctx, ownerID, docID)
	if err != nil {
		return nil, "", err
	}

	key := upload.OriginalKey
	if kind == ArtifactProcessed {
		key = upload.ProcessedKey
	}

	rc, err := s.store.Open(ctx, key)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open stored artifact")
	}
	return rc, downloadName(upload.FileName, kind), nil
}

// downloadName builds "<original basename>-<kind>.png", stripping the upload
// extension and anything path-like the client sent.
func downloadName(fileName string, kind ArtifactKind) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "document"
	}
	return fmt.Sprintf("%s-%s%s", base, kind, canonicalExt)
}
