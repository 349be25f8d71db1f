package scans

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/docuflat/docuflat-backend/pkg/db/models"
	pkgerrors "github.com/docuflat/docuflat-backend/pkg/errors"
)

func openRepo(t *testing.T) Repository {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Upload{}))
	return NewRepository(conn)
}

func seedUpload(t *testing.T, repo Repository, ownerID uuid.UUID, fileName string, createdAt time.Time) *models.Upload {
	t.Helper()
	generationID := uuid.New()
	upload := &models.Upload{
		ID:           uuid.New(),
		GenerationID: generationID,
		OwnerID:      ownerID,
		FileName:     fileName,
		OriginalURL:  "/uploads/" + generationID.String() + "-original.png",
		ProcessedURL: "/uploads/" + generationID.String() + "-processed.png",
		OriginalKey:  generationID.String() + "-original.png",
		ProcessedKey: generationID.String() + "-processed.png",
		CreatedAt:    createdAt,
	}
	require.NoError(t, repo.Create(t.Context(), upload))
	return upload
}

func TestListByOwnerNewestFirst(t *testing.T) {
	repo := openRepo(t)
	ownerID := uuid.New()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	seedUpload(t, repo, ownerID, "oldest.png", base)
	seedUpload(t, repo, ownerID, "middle.png", base.Add(time.Hour))
	seedUpload(t, repo, ownerID, "newest.png", base.Add(2*time.Hour))
	seedUpload(t, repo, uuid.New(), "foreign.png", base.Add(3*time.Hour))

	uploads, err := repo.ListByOwner(t.Context(), ownerID)
	require.NoError(t, err)
	require.Len(t, uploads, 3)
	require.Equal(t, "newest.png", uploads[0].FileName)
	require.Equal(t, "middle.png", uploads[1].FileName)
	require.Equal(t, "oldest.png", uploads[2].FileName)
}

func TestListByOwnerEmpty(t *testing.T) {
	repo := openRepo(t)

	uploads, err := repo.ListByOwner(t.Context(), uuid.New())
	require.NoError(t, err)
	require.Empty(t, uploads)
}

func TestFindByIDNotFound(t *testing.T) {
	repo := openRepo(t)

	_, err := repo.FindByID(t.Context(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteRemovesRow(t *testing.T) {
	repo := openRepo(t)
	upload := seedUpload(t, repo, uuid.New(), "doc.png", time.Now().UTC())

	require.NoError(t, repo.Delete(t.Context(), upload.ID))

	err := repo.Delete(t.Context(), upload.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
