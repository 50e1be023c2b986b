package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filekeep/filekeep-go/internal/model"
	"github.com/filekeep/filekeep-go/internal/service/servicetest"
	"github.com/filekeep/filekeep-go/internal/storage"
)

type fileEnv struct {
	svc   *FileService
	files *servicetest.Files
	blobs *storage.DiskStore
	dir   string
}

func newFileEnv(t *testing.T) *fileEnv {
	t.Helper()
	dir := t.TempDir()
	blobs, err := storage.NewDiskStore(dir)
	require.NoError(t, err)

	files := servicetest.NewFiles()
	svc := NewFileService(files, blobs)
	tick := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return &fileEnv{svc: svc, files: files, blobs: blobs, dir: dir}
}

func (e *fileEnv) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	return len(entries)
}

var (
	alice = &model.User{ID: 1, Email: "alice@example.com"}
	bob   = &model.User{ID: 2, Email: "bob@example.com"}
)

func (e *fileEnv) upload(t *testing.T, user *model.User, name string, content []byte) model.UploadResponse {
	t.Helper()
	resp, err := e.svc.Upload(context.Background(), user, name, "text/plain", bytes.NewReader(content))
	require.NoError(t, err)
	return resp
}

func download(t *testing.T, svc *FileService, user *model.User, name string) (*model.File, []byte) {
	t.Helper()
	f, rc, err := svc.Download(context.Background(), user, name)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return f, data
}

func TestUpload_Download_RoundTrip(t *testing.T) {
	env := newFileEnv(t)
	content := []byte("quarterly numbers\x00\x01\x02")

	resp := env.upload(t, alice, "report.txt", content)
	assert.Equal(t, "report.txt", resp.Filename)
	assert.Equal(t, int64(len(content)), resp.Size)
	assert.NotZero(t, resp.ID)

	rec := env.files.Get(resp.ID)
	assert.NotEqual(t, "report.txt", rec.StoredName)
	assert.Equal(t, filepath.Ext("report.txt"), filepath.Ext(rec.StoredName))
	assert.Equal(t, filepath.Join(env.dir, rec.StoredName), rec.Location)

	for i := 1; i <= 3; i++ {
		f, data := download(t, env.svc, alice, "report.txt")
		assert.Equal(t, content, data)
		assert.Equal(t, "text/plain", f.ContentType)
		assert.Equal(t, int64(i), f.DownloadCount)
		assert.Equal(t, int64(i), env.files.Get(resp.ID).DownloadCount)
	}
}

func TestUpload_DefaultsAndValidation(t *testing.T) {
	env := newFileEnv(t)

	_, err := env.svc.Upload(context.Background(), alice, "", "", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, ErrFilenameRequired)

	resp, err := env.svc.Upload(context.Background(), alice, "blob", "", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", env.files.Get(resp.ID).ContentType)
}

func TestUpload_SameNameGetsDistinctKeys(t *testing.T) {
	env := newFileEnv(t)

	a := env.upload(t, alice, "same.txt", []byte("one"))
	b := env.upload(t, alice, "same.txt", []byte("two"))
	assert.NotEqual(t, env.files.Get(a.ID).StoredName, env.files.Get(b.ID).StoredName)
	assert.Equal(t, 2, env.blobCount(t))

	// the newest upload wins a lookup by name
	_, data := download(t, env.svc, alice, "same.txt")
	assert.Equal(t, "two", string(data))
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestUpload_FailedWriteCreatesNoRecord(t *testing.T) {
	env := newFileEnv(t)

	_, err := env.svc.Upload(context.Background(), alice, "x.bin", "", io.MultiReader(bytes.NewReader([]byte("part")), brokenReader{}))
	require.ErrorIs(t, err, ErrStorageWrite)
	assert.Equal(t, 0, env.files.Count())
	assert.Equal(t, 0, env.blobCount(t))
}

func TestUpload_FailedInsertRemovesBlob(t *testing.T) {
	env := newFileEnv(t)
	env.files.CreateErr = errors.New("db down")

	_, err := env.svc.Upload(context.Background(), alice, "x.bin", "", bytes.NewReader([]byte("data")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStorageWrite)
	assert.Equal(t, 0, env.blobCount(t))
}

func TestList(t *testing.T) {
	env := newFileEnv(t)

	list, err := env.svc.List(context.Background(), alice, "")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	env.upload(t, alice, "Report-2025.pdf", []byte("a"))
	env.upload(t, alice, "notes.txt", []byte("bb"))
	env.upload(t, bob, "report-bob.pdf", []byte("ccc"))

	list, err = env.svc.List(context.Background(), alice, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "notes.txt", list[0].Filename)
	assert.Equal(t, int64(2), list[0].FileSize)
	assert.Equal(t, "text/plain", list[0].FileType)

	list, err = env.svc.List(context.Background(), alice, "REPORT")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Report-2025.pdf", list[0].Filename)

	list, err = env.svc.List(context.Background(), alice, "missing")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDownload_MissingBlobIsNotFound(t *testing.T) {
	env := newFileEnv(t)
	resp := env.upload(t, alice, "gone.txt", []byte("bytes"))

	require.NoError(t, os.Remove(filepath.Join(env.dir, env.files.Get(resp.ID).StoredName)))

	_, _, err := env.svc.Download(context.Background(), alice, "gone.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.Equal(t, int64(0), env.files.Get(resp.ID).DownloadCount)
}

func TestDelete(t *testing.T) {
	env := newFileEnv(t)
	env.upload(t, alice, "a.txt", []byte("bytes"))

	require.NoError(t, env.svc.Delete(context.Background(), alice, "a.txt"))
	assert.Equal(t, 0, env.files.Count())
	assert.Equal(t, 0, env.blobCount(t))

	_, _, err := env.svc.Download(context.Background(), alice, "a.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)

	assert.ErrorIs(t, env.svc.Delete(context.Background(), alice, "a.txt"), ErrFileNotFound)
}

func TestDelete_ToleratesMissingBlob(t *testing.T) {
	env := newFileEnv(t)
	resp := env.upload(t, alice, "a.txt", []byte("bytes"))
	require.NoError(t, os.Remove(filepath.Join(env.dir, env.files.Get(resp.ID).StoredName)))

	require.NoError(t, env.svc.Delete(context.Background(), alice, "a.txt"))
	assert.Equal(t, 0, env.files.Count())
}

type failingDeleteStore struct {
	storage.Store
}

func (failingDeleteStore) Delete(context.Context, string) error { return errors.New("permission denied") }

func TestDelete_BlobFailureKeepsRecord(t *testing.T) {
	env := newFileEnv(t)
	env.upload(t, alice, "a.txt", []byte("bytes"))
	env.svc.blobs = failingDeleteStore{Store: env.blobs}

	err := env.svc.Delete(context.Background(), alice, "a.txt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFileNotFound)
	assert.Equal(t, 1, env.files.Count())
}

func TestFiles_CrossUserIsolation(t *testing.T) {
	env := newFileEnv(t)
	resp := env.upload(t, bob, "secret.txt", []byte("bob only"))
	ctx := context.Background()

	_, _, err := env.svc.Download(ctx, alice, "secret.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)

	assert.ErrorIs(t, env.svc.Delete(ctx, alice, "secret.txt"), ErrFileNotFound)

	list, err := env.svc.List(ctx, alice, "secret")
	require.NoError(t, err)
	assert.Empty(t, list)

	rec := env.files.Get(resp.ID)
	assert.Equal(t, int64(0), rec.DownloadCount)
	assert.Equal(t, 1, env.blobCount(t))

	_, data := download(t, env.svc, bob, "secret.txt")
	assert.Equal(t, "bob only", string(data))
}
