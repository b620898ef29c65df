package services_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/internal/storage"
	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/internal/testutil"
	"github.com/sitedesk/apiserver/types"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fileFixture struct {
	svc     *services.FileService
	objects *storage.Storage
	clock   *testutil.Clock
}

func newFileFixture(t *testing.T) fileFixture {
	t.Helper()
	local, err := storage.NewLocalStorage(afero.NewMemMapFs(), "/uploads")
	require.NoError(t, err)
	objects := storage.NewStorage(local)
	require.NoError(t, objects.EnsureBucket(context.Background()))

	clock := testutil.NewClock(start)
	repo := store.NewFileRepository(testutil.NewDB(t))
	return fileFixture{
		svc:     services.NewFileService(repo, objects, discardLogger()).WithClock(clock.Now),
		objects: objects,
		clock:   clock,
	}
}

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestFileUpload(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	uploaded, err := f.svc.Upload(ctx, services.Upload{
		OriginalFilename: "avatar.PNG",
		Data:             pngHeader,
		Description:      ptr("me"),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", uploaded.MimeType)
	assert.Equal(t, "avatar.PNG", uploaded.OriginalFilename)
	assert.Equal(t, int64(len(pngHeader)), uploaded.FileSize)
	assert.Regexp(t, `^[0-9a-f-]{36}\.png$`, uploaded.Filename)
	assert.Equal(t, uploaded.Filename, uploaded.FilePath)

	meta, rc, err := f.svc.Open(ctx, uploaded.ID)
	require.NoError(t, err)
	assert.Equal(t, uploaded.ID, meta.ID)
	assert.Equal(t, pngHeader, readAll(t, rc))

	meta, rc, err = f.svc.OpenByKey(ctx, uploaded.Filename)
	require.NoError(t, err)
	assert.Equal(t, uploaded.ID, meta.ID)
	rc.Close()

	text, err := f.svc.Upload(ctx, services.Upload{OriginalFilename: "notes", Data: []byte("hello world")})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", text.MimeType)
	assert.Regexp(t, `\.txt$`, text.Filename)
}

func TestFileUploadRejected(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	_, err := f.svc.Upload(ctx, services.Upload{OriginalFilename: "empty.txt"})
	requireValidation(t, err, "File is empty")

	_, err = f.svc.Upload(ctx, services.Upload{OriginalFilename: "  ", Data: []byte("hello")})
	requireValidation(t, err, "File name is required")

	html := []byte("<!DOCTYPE html><html><body>hi</body></html>")
	_, err = f.svc.Upload(ctx, services.Upload{OriginalFilename: "page.txt", Data: html})
	requireValidation(t, err, "not allowed")

	items, total, err := f.svc.List(ctx, store.Page{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestFileDescriptionAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	uploaded, err := f.svc.Upload(ctx, services.Upload{OriginalFilename: "a.png", Data: pngHeader})
	require.NoError(t, err)
	assert.Nil(t, uploaded.Description)

	f.clock.Advance(time.Minute)
	described, err := f.svc.UpdateDescription(ctx, uploaded.ID, ptr("logo"))
	require.NoError(t, err)
	require.NotNil(t, described.Description)
	assert.Equal(t, "logo", *described.Description)
	require.NotNil(t, described.UpdatedAt)

	require.NoError(t, f.svc.Delete(ctx, uploaded.ID))
	_, err = f.svc.Get(ctx, uploaded.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.objects.Get(ctx, uploaded.Filename)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, uploaded.ID), store.ErrNotFound)
}

func TestFileOpenMissingObject(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	uploaded, err := f.svc.Upload(ctx, services.Upload{OriginalFilename: "a.png", Data: pngHeader})
	require.NoError(t, err)
	require.NoError(t, f.objects.Delete(ctx, uploaded.Filename))

	_, _, err = f.svc.Open(ctx, uploaded.ID)
	assert.ErrorIs(t, err, services.ErrObjectMissing)

	_, _, err = f.svc.OpenByKey(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type failingFileRepo struct {
	services.FileRepository
}

func (failingFileRepo) Create(context.Context, types.File) (types.File, error) {
	return types.File{}, errBoom
}

func TestFileUploadRemovesObjectWhenRowFails(t *testing.T) {
	ctx := context.Background()
	local := afero.NewMemMapFs()
	backend, err := storage.NewLocalStorage(local, "/uploads")
	require.NoError(t, err)
	svc := services.NewFileService(failingFileRepo{}, storage.NewStorage(backend), discardLogger())

	_, err = svc.Upload(ctx, services.Upload{OriginalFilename: "a.png", Data: bytes.Clone(pngHeader)})
	assert.ErrorIs(t, err, errBoom)

	entries, err := afero.ReadDir(local, "/uploads")
	if err == nil {
		assert.Empty(t, entries)
	}
}
