// Package storage keeps uploaded file contents in a key-addressed blob store.
// Keys are generated by NewKey and never derived from user input beyond a
// sanitised extension.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/filekeep/filekeep-go/internal/config"
)

// ErrNotExist is returned by Open when no blob is stored under the key.
var ErrNotExist = errors.New("blob does not exist")

// Store is a blob store addressed by generated keys.
type Store interface {
	// Put writes everything from r under key and returns the number of
	// bytes stored. On error nothing is left under key.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	// Open returns a reader for the blob, or ErrNotExist.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, key string) error
	// Location describes where key lives, for bookkeeping only.
	Location(key string) string
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "disk":
		return NewDiskStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

const maxExtLength = 16

// NewKey returns a fresh random key for a blob. The extension of the
// original filename is kept when it is short and alphanumeric.
func NewKey(originalFilename string) string {
	return uuid.NewString() + safeExt(originalFilename)
}

func safeExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 || len(ext) > maxExtLength {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}

// validKey guards the disk store against keys that could escape its root.
func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\`) && key != "." && key != ".."
}
