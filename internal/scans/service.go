package scans

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/docuflat/docuflat-backend/internal/geometry"
	"github.com/docuflat/docuflat-backend/pkg/db/models"
	pkgerrors "github.com/docuflat/docuflat-backend/pkg/errors"
	"github.com/docuflat/docuflat-backend/pkg/logger"
	"github.com/docuflat/docuflat-backend/pkg/metrics"
	"github.com/docuflat/docuflat-backend/pkg/pubsub"
	"github.com/docuflat/docuflat-backend/pkg/storage"
)

// Service is the correction pipeline surface the HTTP layer talks to.
type Service interface {
	ProcessUpload(ctx context.Context, ownerID uuid.UUID, fileName, declaredType string, src io.Reader) (*models.Upload, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Upload, error)
	Delete(ctx context.Context, ownerID, docID uuid.UUID) error
	OpenArtifact(ctx context.Context, ownerID, docID uuid.UUID, kind ArtifactKind) (io.ReadCloser, string, error)
}

type service struct {
	repo       Repository
	store      storage.Store
	engine     geometry.Engine
	normalizer *Normalizer
	metrics    *metrics.PipelineMetrics
	events     pubsub.EventPublisher
	logg       *logger.Logger
	tempDir    string
	maxBytes   int64
}

// Config carries the service dependencies. Metrics and Events may be nil.
type Config struct {
	Repo       Repository
	Store      storage.Store
	Engine     geometry.Engine
	Normalizer *Normalizer
	Metrics    *metrics.PipelineMetrics
	Events     pubsub.EventPublisher
	Logger     *logger.Logger
	TempDir    string
	MaxBytes   int64
}

func NewService(cfg Config) (Service, error) {
	if cfg.Repo == nil || cfg.Store == nil || cfg.Engine == nil || cfg.Normalizer == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("repo, store, engine, normalizer, and logger are required")
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	return &service{
		repo:       cfg.Repo,
		store:      cfg.Store,
		engine:     cfg.Engine,
		normalizer: cfg.Normalizer,
		metrics:    cfg.Metrics,
		events:     cfg.Events,
		logg:       cfg.Logger,
		tempDir:    tempDir,
		maxBytes:   cfg.MaxBytes,
	}, nil
}

// ProcessUpload drives one upload through the full pipeline: stage the bytes,
// normalize to a canonical raster, detect and rectify the document boundary,
// then commit artifacts and the database record together. When detection or
// rectification cannot produce a corrected raster the original is copied
// through unchanged and the record is flagged with a warning. Every exit path
// removes the working files.
func (s *service) ProcessUpload(ctx context.Context, ownerID uuid.UUID, fileName, declaredType string, src io.Reader) (*models.Upload, error) {
	generationID := uuid.New()
	ctx = s.logg.WithUploadID(ctx, generationID.String())

	originalPath := filepath.Join(s.tempDir, generationID.String()+"-original"+canonicalExt)
	processedPath := filepath.Join(s.tempDir, generationID.String()+"-processed"+canonicalExt)
	defer func() {
		_ = os.Remove(originalPath)
		_ = os.Remove(processedPath)
	}()

	stagedPath, err := s.stage(generationID, src)
	if err != nil {
		s.metrics.IncCompleted(metrics.OutcomeAborted)
		return nil, err
	}

	start := time.Now()
	if err := s.normalizer.Normalize(stagedPath, declaredType, originalPath); err != nil {
		s.metrics.IncCompleted(metrics.OutcomeAborted)
		return nil, err
	}
	s.metrics.ObserveStage("normalize", time.Since(start))

	warning := s.correct(ctx, originalPath, processedPath)
	if warning {
		if err := copyFile(originalPath, processedPath); err != nil {
			s.metrics.IncCompleted(metrics.OutcomeAborted)
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fallback copy")
		}
	}

	start = time.Now()
	upload, err := s.commit(ctx, generationID, ownerID, fileName, originalPath, processedPath, warning)
	s.metrics.ObserveStage("commit", time.Since(start))
	if err != nil {
		s.metrics.IncCompleted(metrics.OutcomeAborted)
		return nil, err
	}

	if warning {
		s.metrics.IncCompleted(metrics.OutcomeFallback)
	} else {
		s.metrics.IncCompleted(metrics.OutcomeRectified)
	}

	s.publishEvent(ctx, pubsub.DocumentEvent{
		Event:   pubsub.EventDocumentProcessed,
		DocID:   upload.ID.String(),
		OwnerID: ownerID.String(),
		Warning: warning,
	})

	s.logg.Info(ctx, "upload processed")
	return upload, nil
}

// stage spools the request body into the working directory, enforcing the
// byte ceiling as it reads so an oversized body never lands in full.
func (s *service) stage(generationID uuid.UUID, src io.Reader) (string, error) {
	stagedPath := filepath.Join(s.tempDir, generationID.String()+"-staged")
	dst, err := os.Create(stagedPath)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stage upload")
	}

	written, err := io.Copy(dst, io.LimitReader(src, s.maxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(stagedPath)
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stage upload")
	}
	if written > s.maxBytes {
		_ = os.Remove(stagedPath)
		return "", pkgerrors.New(pkgerrors.CodePayloadTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes))
	}
	return stagedPath, nil
}

// correct runs detection and rectification, reporting true when the pipeline
// must fall back to the uncorrected raster. Engine failures degrade to a
// fallback rather than aborting the upload; the user still gets their file.
func (s *service) correct(ctx context.Context, originalPath, processedPath string) bool {
	start := time.Now()
	polygon, err := s.engine.DetectBoundary(ctx, originalPath)
	s.metrics.ObserveStage("detect", time.Since(start))
	if err != nil {
		s.logg.Warn(ctx, "boundary detection failed: "+err.Error())
		return true
	}
	if polygon == nil {
		s.logg.Info(ctx, "no document boundary found")
		return true
	}

	start = time.Now()
	err = s.engine.Rectify(ctx, originalPath, *polygon, processedPath)
	s.metrics.ObserveStage("rectify", time.Since(start))
	if err != nil {
		s.logg.Warn(ctx, "rectification failed: "+err.Error())
		return true
	}
	return false
}

// commit uploads both artifacts and then creates the record. The record is
// written last so a stored object without a row is the worst partial state;
// on any failure the already-stored objects are removed. Commit runs detached
// from request cancellation so a client disconnect cannot strand artifacts.
func (s *service) commit(ctx context.Context, generationID, ownerID uuid.UUID, fileName, originalPath, processedPath string, warning bool) (*models.Upload, error) {
	ctx = context.WithoutCancel(ctx)

	originalKey := generationID.String() + "-original" + canonicalExt
	processedKey := generationID.String() + "-processed" + canonicalExt

	var stored []string
	rollback := func() {
		for _, key := range stored {
			if err := s.store.Delete(ctx, key); err != nil {
				s.logg.Error(ctx, "rollback delete failed for "+key, err)
			}
		}
	}

	for _, artifact := range []struct {
		key  string
		path string
	}{
		{originalKey, originalPath},
		{processedKey, processedPath},
	} {
		if err := s.saveArtifact(ctx, artifact.key, artifact.path); err != nil {
			rollback()
			return nil, err
		}
		stored = append(stored, artifact.key)
	}

	upload := &models.Upload{
		ID:           uuid.New(),
		GenerationID: generationID,
		OwnerID:      ownerID,
		FileName:     fileName,
		OriginalURL:  s.store.URL(originalKey),
		ProcessedURL: s.store.URL(processedKey),
		OriginalKey:  originalKey,
		ProcessedKey: processedKey,
		Warning:      warning,
	}
	if err := s.repo.Create(ctx, upload); err != nil {
		rollback()
		return nil, err
	}
	return upload, nil
}

func (s *service) saveArtifact(ctx context.Context, key, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open artifact")
	}
	defer func() { _ = src.Close() }()

	if err := s.store.Save(ctx, key, "image/png", src); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store artifact")
	}
	return nil
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID) ([]models.Upload, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Delete removes the record first, then the stored artifacts. A repeat delete
// of the same document reports NotFound. Artifact deletion failures are logged
// but do not resurrect the record.
func (s *service) Delete(ctx context.Context, ownerID, docID uuid.UUID) error {
	upload, err := s.findOwned(ctx, ownerID, docID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, docID); err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	for _, key := range []string{upload.OriginalKey, upload.ProcessedKey} {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logg.Error(ctx, "artifact delete failed for "+key, err)
		}
	}

	s.publishEvent(ctx, pubsub.DocumentEvent{
		Event:   pubsub.EventDocumentDeleted,
		DocID:   docID.String(),
		OwnerID: ownerID.String(),
	})
	return nil
}

// findOwned loads the record and enforces ownership. Forbidden acknowledges
// the document exists under another owner; NotFound stays reserved for rows
// that are truly gone.
func (s *service) findOwned(ctx context.Context, ownerID, docID uuid.UUID) (*models.Upload, error) {
	upload, err := s.repo.FindByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if upload.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "document belongs to another user")
	}
	return upload, nil
}

func (s *service) publishEvent(ctx context.Context, event pubsub.DocumentEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishDocumentEvent(ctx, event); err != nil {
		s.logg.Warn(ctx, "event publish failed: "+err.Error())
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
