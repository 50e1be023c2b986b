package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/filekeep/filekeep-go/internal/metrics"
	"github.com/filekeep/filekeep-go/internal/model"
	"github.com/filekeep/filekeep-go/internal/repository"
	"github.com/filekeep/filekeep-go/internal/storage"
)

var (
	ErrFilenameRequired = errors.New("filename is required")
	ErrFileNotFound     = errors.New("file not found")
	ErrStorageWrite     = errors.New("could not store file")
)

const defaultContentType = "application/octet-stream"

// FileStore is the file registry. Every method is scoped to the owning
// user, so a lookup can never return another user's record.
type FileStore interface {
	Create(ctx context.Context, f *model.File) error
	ListByUser(ctx context.Context, userID int64, filter string) ([]model.File, error)
	GetByFilename(ctx context.Context, userID int64, filename string) (*model.File, error)
	IncrementDownloads(ctx context.Context, userID, id int64) error
	DeleteByFilename(ctx context.Context, userID int64, filename string,
		removeBlob func(ctx context.Context, f model.File) error) (*model.File, error)
}

// FileService handles the file operations of an authenticated user.
type FileService struct {
	files FileStore
	blobs storage.Store
	now   func() time.Time
}

// NewFileService creates a new FileService.
func NewFileService(files FileStore, blobs storage.Store) *FileService {
	return &FileService{files: files, blobs: blobs, now: time.Now}
}

// Upload stores the bytes from r under a fresh key and then records them.
// No record is created unless the write completed, and the blob is removed
// again if the record cannot be created.
func (s *FileService) Upload(ctx context.Context, user *model.User, filename, contentType string, r io.Reader) (resp model.UploadResponse, err error) {
	defer func() { metrics.FileOperations.WithLabelValues("upload", metrics.Result(err)).Inc() }()

	if strings.TrimSpace(filename) == "" {
		return model.UploadResponse{}, ErrFilenameRequired
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	key := storage.NewKey(filename)
	size, err := s.blobs.Put(ctx, key, r)
	if err != nil {
		return model.UploadResponse{}, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	f := &model.File{
		UserID:      user.ID,
		Filename:    filename,
		StoredName:  key,
		ContentType: contentType,
		Size:        size,
		Location:    s.blobs.Location(key),
		UploadedAt:  s.now().UTC(),
	}
	if err := s.files.Create(ctx, f); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			slog.ErrorContext(ctx, "orphaned blob after failed insert", "key", key, "error", delErr)
		}
		return model.UploadResponse{}, fmt.Errorf("create file record: %w", err)
	}

	metrics.UploadBytes.Add(float64(size))
	slog.InfoContext(ctx, "file uploaded", "user_id", user.ID, "file_id", f.ID, "size", size)

	return model.UploadResponse{
		Message:  "File uploaded successfully",
		ID:       f.ID,
		Filename: f.Filename,
		Size:     f.Size,
	}, nil
}

// List returns the user's files, newest first. A non-empty filter keeps
// names containing it, ignoring case. No match is an empty list.
func (s *FileService) List(ctx context.Context, user *model.User, filter string) ([]model.FileDetail, error) {
	files, err := s.files.ListByUser(ctx, user.ID, filter)
	metrics.FileOperations.WithLabelValues("list", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	details := make([]model.FileDetail, 0, len(files))
	for _, f := range files {
		details = append(details, model.FileDetail{
			Filename:      f.Filename,
			FileType:      f.ContentType,
			FileSize:      f.Size,
			UploadedAt:    f.UploadedAt,
			DownloadCount: f.DownloadCount,
		})
	}
	return details, nil
}

// Download opens the user's file and counts the download. A record whose
// bytes are missing is reported as ErrFileNotFound. The caller closes the
// returned reader.
func (s *FileService) Download(ctx context.Context, user *model.User, filename string) (_ *model.File, _ io.ReadCloser, err error) {
	defer func() { metrics.FileOperations.WithLabelValues("download", metrics.Result(err)).Inc() }()

	f, err := s.files.GetByFilename(ctx, user.ID, filename)
	if err != nil {
		return nil, nil, mapFileErr(err)
	}

	rc, err := s.blobs.Open(ctx, f.StoredName)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			slog.WarnContext(ctx, "file record without blob", "file_id", f.ID, "key", f.StoredName)
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}

	if err := s.files.IncrementDownloads(ctx, user.ID, f.ID); err != nil {
		rc.Close()
		return nil, nil, mapFileErr(err)
	}
	f.DownloadCount++

	return f, rc, nil
}

// Delete removes the user's file: the blob first, then the record, in one
// transaction. A blob that is already gone does not stop the delete.
func (s *FileService) Delete(ctx context.Context, user *model.User, filename string) (err error) {
	defer func() { metrics.FileOperations.WithLabelValues("delete", metrics.Result(err)).Inc() }()

	f, err := s.files.DeleteByFilename(ctx, user.ID, filename, func(ctx context.Context, f model.File) error {
		if err := s.blobs.Delete(ctx, f.StoredName); err != nil {
			return fmt.Errorf("delete blob: %w", err)
		}
		return nil
	})
	if err != nil {
		return mapFileErr(err)
	}

	slog.InfoContext(ctx, "file deleted", "user_id", user.ID, "file_id", f.ID)
	return nil
}

func mapFileErr(err error) error {
	if errors.Is(err, repository.ErrFileNotFound) {
		return ErrFileNotFound
	}
	return err
}
