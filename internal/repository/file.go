package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/filekeep/filekeep-go/internal/model"
)

var ErrFileNotFound = errors.New("file not found")

const fileColumns = `id, user_id, filename, stored_name, content_type, file_size, location, uploaded_at, download_count`

// FileRepository handles file record persistence. Every read and write is
// filtered by the owning user id, so records of other users are never
// loaded.
type FileRepository struct {
	db *sql.DB
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a file record and sets the generated ID on it.
func (r *FileRepository) Create(ctx context.Context, f *model.File) error {
	query := `INSERT INTO files (user_id, filename, stored_name, content_type, file_size, location, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		f.UserID, f.Filename, f.StoredName, f.ContentType, f.Size, f.Location, f.UploadedAt)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	f.ID = id
	return nil
}

// ListByUser returns the user's files, newest first. A non-empty filter
// keeps only files whose name contains it, ignoring case.
func (r *FileRepository) ListByUser(ctx context.Context, userID int64, filter string) ([]model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = ?`
	args := []any{userID}

	if filter != "" {
		query += ` AND LOWER(filename) LIKE ?`
		args = append(args, "%"+escapeLike(strings.ToLower(filter))+"%")
	}
	query += ` ORDER BY uploaded_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []model.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}

	return files, rows.Err()
}

// GetByFilename returns the user's most recent file with exactly this name.
func (r *FileRepository) GetByFilename(ctx context.Context, userID int64, filename string) (*model.File, error) {
	return getByFilename(ctx, r.db, userID, filename, false)
}

// IncrementDownloads adds one to the download counter of the user's file.
func (r *FileRepository) IncrementDownloads(ctx context.Context, userID, id int64) error {
	query := `UPDATE files SET download_count = download_count + 1 WHERE id = ? AND user_id = ?`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFileNotFound
	}
	return nil
}

// DeleteByFilename removes the user's most recent file with this name. The
// row is locked, removeBlob is called, and the row is deleted only if
// removeBlob succeeds, all within one transaction.
func (r *FileRepository) DeleteByFilename(ctx context.Context, userID int64, filename string,
	removeBlob func(ctx context.Context, f model.File) error) (*model.File, error) {

	var deleted *model.File
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		f, err := getByFilename(ctx, tx, userID, filename, true)
		if err != nil {
			return err
		}

		if err := removeBlob(ctx, *f); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ? AND user_id = ?`, f.ID, userID); err != nil {
			return err
		}

		deleted = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}

func getByFilename(ctx context.Context, q DBTX, userID int64, filename string, forUpdate bool) (*model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = ? AND filename = ?
		ORDER BY uploaded_at DESC, id DESC LIMIT 1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	f, err := scanFile(q.QueryRowContext(ctx, query, userID, filename))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*model.File, error) {
	var f model.File
	if err := s.Scan(
		&f.ID, &f.UserID, &f.Filename, &f.StoredName, &f.ContentType,
		&f.Size, &f.Location, &f.UploadedAt, &f.DownloadCount,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

// escapeLike escapes LIKE wildcards so the filter matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
