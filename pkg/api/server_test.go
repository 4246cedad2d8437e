package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tgcloud/pkg/bots"
	"github.com/marmos91/tgcloud/pkg/engine"
	"github.com/marmos91/tgcloud/pkg/models"
	"github.com/marmos91/tgcloud/pkg/store/memory"
)

// memBlob is a minimal in-memory BlobClient for HTTP handler tests.
type memBlob struct {
	mu      sync.Mutex
	nextMsg int64
	blobs   map[string][]byte
	msgs    map[int64]string
}

func newMemBlob() *memBlob {
	return &memBlob{blobs: make(map[string][]byte), msgs: make(map[int64]string)}
}

func (b *memBlob) Upload(ctx context.Context, token, chat, filename string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextMsg++
	blobID := fmt.Sprintf("blob-%d", b.nextMsg)
	b.blobs[blobID] = data
	b.msgs[b.nextMsg] = blobID
	return blobID, b.nextMsg, nil
}

func (b *memBlob) ResolveDownload(ctx context.Context, token, blobID string) (string, error) {
	return "mem://" + blobID, nil
}

func (b *memBlob) StreamDownload(ctx context.Context, url string) (io.ReadCloser, error) {
	b.mu.Lock()
	data, ok := b.blobs[strings.TrimPrefix(url, "mem://")]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no such blob")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlob) Delete(ctx context.Context, token, chat string, msgID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	blobID, ok := b.msgs[msgID]
	if !ok {
		return fmt.Errorf("no such message")
	}
	delete(b.msgs, msgID)
	delete(b.blobs, blobID)
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.UpsertBot(context.Background(), models.Bot{
		BotID: "bot-a", Token: "token-a", Active: true,
	}))
	eng := engine.New(st, newMemBlob(), bots.NewManager(st), engine.Config{
		ChatID:    "chat",
		ChunkSize: 8,
	}, nil)

	ts := httptest.NewServer(newRouter(eng, nil))
	t.Cleanup(ts.Close)
	return ts
}

func uploadFile(t *testing.T, ts *httptest.Server, name string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", name))
	fw, err := mw.CreateFormFile("file", "payload.bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/v1/files", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeResponse(t, resp).Status)
}

func TestUploadListDownload(t *testing.T) {
	ts := newTestServer(t)
	data := []byte("the quick brown fox jumps over the lazy dog")

	resp := uploadFile(t, ts, "docs/fox.txt", data)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// List
	resp, err := http.Get(ts.URL + "/api/v1/files?prefix=docs/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeResponse(t, resp)
	files, ok := body.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, files, 1)

	// Download
	resp, err = http.Get(ts.URL + "/api/v1/files/docs/fox.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "fox.txt")

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDownloadNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/files/missing.txt")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", decodeResponse(t, resp).Status)
}

func TestUploadMissingFilePart(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "x"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/v1/files", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadConflict(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadFile(t, ts, "dup.txt", []byte("one"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = uploadFile(t, ts, "dup.txt", []byte("two"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestRename(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFile(t, ts, "old.txt", []byte("content"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Post(ts.URL+"/api/v1/rename", "application/json",
		strings.NewReader(`{"from":"old.txt","to":"new.txt"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/files/new.txt")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/files/old.txt")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRenameMissingFields(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/rename", "application/json",
		strings.NewReader(`{"from":"only"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestDelete(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFile(t, ts, "victim.txt", []byte("bye"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/files/victim.txt", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/files/victim.txt")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
