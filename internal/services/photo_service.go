package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"events_crm_backend/internal/models"
	"events_crm_backend/internal/repositories"
	"events_crm_backend/internal/storage"
	"events_crm_backend/pkg/utils"

	"github.com/gabriel-vasile/mimetype"
)

// --- Custom Service Errors for Photos ---
var (
	ErrNoFileUploaded      = errors.New("no files were uploaded")
	ErrUnsupportedFileType = errors.New("uploaded file is not an image")
	ErrPhotoNotFound       = errors.New("photo not found")
)

// PhotoUpload is an uploaded file as received from the request.
type PhotoUpload struct {
	Filename string
	Content  io.ReadSeeker
}

// PhotoService manages the single profile photo of a client.
type PhotoService interface {
	UploadPhoto(ctx context.Context, scope models.Scope, clientID string, upload *PhotoUpload) (*models.Client, error)
	DeletePhoto(ctx context.Context, scope models.Scope, clientID string) (*models.Client, error)
	PhotoPath(filename string) (string, error)
}

type photoService struct {
	clientRepo repositories.ClientRepository
	files      storage.FileStore
	db         repositories.SQLExecutor
}

// NewPhotoService creates a new instance of PhotoService.
func NewPhotoService(clientRepo repositories.ClientRepository, files storage.FileStore, db repositories.SQLExecutor) PhotoService {
	return &photoService{
		clientRepo: clientRepo,
		files:      files,
		db:         db,
	}
}

func detectImage(r io.ReadSeeker) (string, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("detecting content type: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding upload: %w", err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrUnsupportedFileType, mtype.String())
	}
	return mtype.String(), nil
}

// UploadPhoto stores the file and points the client's profileImg at it.
// A previously stored photo is removed once the new reference is saved.
func (s *photoService) UploadPhoto(ctx context.Context, scope models.Scope, clientID string, upload *PhotoUpload) (*models.Client, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if upload == nil || upload.Content == nil {
		return nil, ErrNoFileUploaded
	}

	existing, err := s.clientRepo.GetClientByID(ctx, scope, clientID)
	if err != nil {
		return nil, mapClientRepoError(err, "find client for photo upload")
	}

	contentType, err := detectImage(upload.Content)
	if err != nil {
		return nil, err
	}

	stored, err := s.files.Save(upload.Filename, upload.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	updated, err := s.clientRepo.SetProfileImage(ctx, s.db, scope, clientID, &stored)
	if err != nil {
		if rmErr := s.files.Remove(stored); rmErr != nil {
			utils.LogError(rmErr, "UploadPhoto: failed to remove photo after database error")
		}
		return nil, mapClientRepoError(err, "save profile image reference")
	}

	if existing.ProfileImg != nil && *existing.ProfileImg != "" && *existing.ProfileImg != stored {
		if err := s.files.Remove(*existing.ProfileImg); err != nil {
			utils.LogError(err, "UploadPhoto: failed to remove replaced photo "+*existing.ProfileImg)
		}
	}

	utils.LogInfo("Profile photo uploaded", map[string]interface{}{
		"client_id": clientID, "file": stored, "content_type": contentType,
	})
	return updated, nil
}

// DeletePhoto removes the stored file (if any) and clears profileImg.
func (s *photoService) DeletePhoto(ctx context.Context, scope models.Scope, clientID string) (*models.Client, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}

	client, err := s.clientRepo.GetClientByID(ctx, scope, clientID)
	if err != nil {
		return nil, mapClientRepoError(err, "find client for photo deletion")
	}

	if client.ProfileImg != nil && *client.ProfileImg != "" {
		if err := s.files.Remove(*client.ProfileImg); err != nil {
			// The reference is cleared regardless; the file is only best-effort.
			utils.LogError(err, "DeletePhoto: failed to remove photo "+*client.ProfileImg)
		}
	}

	updated, err := s.clientRepo.SetProfileImage(ctx, s.db, scope, clientID, nil)
	if err != nil {
		return nil, mapClientRepoError(err, "clear profile image reference")
	}
	return updated, nil
}

// PhotoPath resolves a stored photo name to a file location.
func (s *photoService) PhotoPath(filename string) (string, error) {
	path, err := s.files.Path(filename)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return "", ErrPhotoNotFound
		}
		return "", fmt.Errorf("failed to resolve photo: %w", err)
	}
	return path, nil
}
