package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docuflat/docuflat-backend/api/middleware"
	"github.com/docuflat/docuflat-backend/api/responses"
	"github.com/docuflat/docuflat-backend/api/validators"
	"github.com/docuflat/docuflat-backend/internal/scans"
	"github.com/docuflat/docuflat-backend/pkg/db/models"
	pkgerrors "github.com/docuflat/docuflat-backend/pkg/errors"
	"github.com/docuflat/docuflat-backend/pkg/logger"
)

const uploadFormField = "file"

type scanResponse struct {
	ID           string    `json:"id"`
	GenerationID string    `json:"generation_id"`
	FileName     string    `json:"file_name"`
	OriginalURL  string    `json:"original_url"`
	ProcessedURL string    `json:"processed_url"`
	Warning      bool      `json:"warning"`
	CreatedAt    time.Time `json:"created_at"`
}

type uploadMetadata struct {
	FileName string `json:"file_name" validate:"required,max=255"`
}

func toScanResponse(upload models.Upload) scanResponse {
	return scanResponse{
		ID:           upload.ID.String(),
		GenerationID: upload.GenerationID.String(),
		FileName:     upload.FileName,
		OriginalURL:  upload.OriginalURL,
		ProcessedURL: upload.ProcessedURL,
		Warning:      upload.Warning,
		CreatedAt:    upload.CreatedAt,
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func docIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "docID"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document id")
	}
	return id, nil
}

// ScanUpload accepts a multipart upload and runs it through the correction
// pipeline. The multipart part's declared content type decides the branch;
// the bytes are verified against it downstream.
func ScanUpload(svc scans.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Generous slack for multipart framing; the service enforces the
		// exact file ceiling.
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
		file, header, err := r.FormFile(uploadFormField)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodePayloadTooLarge,
					fmt.Sprintf("request exceeds the %d byte limit", maxBytes)))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file field is required"))
			return
		}
		defer func() { _ = file.Close() }()

		meta := uploadMetadata{FileName: validators.SanitizeString(header.Filename, 255)}
		if err := validators.ValidateStruct(meta); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		upload, err := svc.ProcessUpload(r.Context(), ownerID, meta.FileName, header.Header.Get("Content-Type"), file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toScanResponse(*upload))
	}
}

// ScanList returns the caller's documents, newest first.
func ScanList(svc scans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		uploads, err := svc.List(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]scanResponse, 0, len(uploads))
		for _, upload := range uploads {
			out = append(out, toScanResponse(upload))
		}
		responses.WriteSuccess(w, out)
	}
}

// ScanDownload streams a stored artifact back to its owner as an attachment.
func ScanDownload(svc scans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		docID, err := docIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := scans.ParseArtifactKind(chi.URLParam(r, "kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rc, name, err := svc.OpenArtifact(r.Context(), ownerID, docID, kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer func() { _ = rc.Close() }()

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if _, err := io.Copy(w, rc); err != nil && logg != nil {
			logg.Warn(r.Context(), "artifact stream interrupted: "+err.Error())
		}
	}
}

// ScanDelete removes a document record and its stored artifacts.
func ScanDelete(svc scans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		docID, err := docIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), ownerID, docID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
