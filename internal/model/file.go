package model

import "time"

// File is the metadata of one stored blob, owned by exactly one user.
type File struct {
	ID            int64
	UserID        int64
	Filename      string
	StoredName    string // blob store key, generated at upload
	ContentType   string
	Size          int64
	Location      string // backend-specific locator of the blob
	UploadedAt    time.Time
	DownloadCount int64
}

// UploadResponse acknowledges a stored file.
type UploadResponse struct {
	Message  string `json:"message"`
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"file_size"`
}

// FileDetail is the listing view of a file.
type FileDetail struct {
	Filename      string    `json:"filename"`
	FileType      string    `json:"file_type"`
	FileSize      int64     `json:"file_size"`
	UploadedAt    time.Time `json:"uploaded_at"`
	DownloadCount int64     `json:"download_count"`
}
