package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// fakeBlobReader serves canned archive batches keyed by path.
type fakeBlobReader struct {
	objects map[string]string
}

func (f *fakeBlobReader) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (f *fakeBlobReader) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, data := range f.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{
				Path:         path,
				Size:         int64(len(data)),
				LastModified: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			})
		}
	}
	return infos, nil
}

func (f *fakeBlobReader) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

func TestArchiveGet_StreamsBatch(t *testing.T) {
	blobs := &fakeBlobReader{objects: map[string]string{
		"archive/markets/2026-02.jsonl": `{"id":"m1"}` + "\n" + `{"id":"m2"}` + "\n",
	}}
	h := NewArchiveHandler(blobs, discard())

	rec := doRequest(h.Get, http.MethodGet, "/api/archive/markets/2026-02",
		"", "", map[string]string{"month": "2026-02"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, 2, strings.Count(rec.Body.String(), "\n"))
}

func TestArchiveGet_UnknownMonthIs404(t *testing.T) {
	h := NewArchiveHandler(&fakeBlobReader{objects: map[string]string{}}, discard())
	rec := doRequest(h.Get, http.MethodGet, "/api/archive/markets/2020-01",
		"", "", map[string]string{"month": "2020-01"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveGet_BadMonthIs400(t *testing.T) {
	h := NewArchiveHandler(&fakeBlobReader{objects: map[string]string{}}, discard())
	rec := doRequest(h.Get, http.MethodGet, "/api/archive/markets/february",
		"", "", map[string]string{"month": "february"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveList(t *testing.T) {
	blobs := &fakeBlobReader{objects: map[string]string{
		"archive/markets/2026-01.jsonl": "{}\n",
		"archive/markets/2026-02.jsonl": "{}\n",
		"unrelated/key":                 "x",
	}}
	h := NewArchiveHandler(blobs, discard())

	rec := doRequest(h.List, http.MethodGet, "/api/archive/markets", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Batches []archiveBatchResponse `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Batches, 2)
}
