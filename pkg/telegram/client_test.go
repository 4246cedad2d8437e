package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	// A generous rate for tests so the limiter never delays.
	c := New(ts.URL, WithHTTPClient(ts.Client()), WithRateLimit(10000, 10000))
	return c, ts
}

func TestUpload(t *testing.T) {
	var gotChat, gotFilename string
	var gotBody []byte

	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottok123/sendDocument", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotChat = r.FormValue("chat_id")

		f, hdr, err := r.FormFile("document")
		require.NoError(t, err)
		defer f.Close()
		gotFilename = hdr.Filename
		gotBody, err = io.ReadAll(f)
		require.NoError(t, err)

		fmt.Fprint(w, `{"ok":true,"result":{"message_id":77,"document":{"file_id":"BQAC-abc"}}}`)
	}))
	defer ts.Close()

	blobID, msgID, err := c.Upload(context.Background(), "tok123", "-100500", "backup.chunk0", strings.NewReader("chunk data"))
	require.NoError(t, err)
	assert.Equal(t, "BQAC-abc", blobID)
	assert.Equal(t, int64(77), msgID)
	assert.Equal(t, "-100500", gotChat)
	assert.Equal(t, "backup.chunk0", gotFilename)
	assert.Equal(t, []byte("chunk data"), gotBody)
}

func TestUploadAPIRefusal(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer ts.Close()

	_, _, err := c.Upload(context.Background(), "tok", "chat", "f", strings.NewReader("x"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "sendDocument", apiErr.Op)
	assert.Contains(t, apiErr.Message, "chat not found")
	assert.False(t, IsRetryable(err))
}

func TestUploadRateLimited(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"ok":false,"description":"Too Many Requests: retry after 5"}`)
	}))
	defer ts.Close()

	_, _, err := c.Upload(context.Background(), "tok", "chat", "f", strings.NewReader("x"))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	assert.True(t, IsRetryable(err))
}

func TestResolveDownload(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottok/getFile", r.URL.Path)
		require.Equal(t, "BQAC-abc", r.URL.Query().Get("file_id"))
		fmt.Fprint(w, `{"ok":true,"result":{"file_path":"documents/file_7.bin"}}`)
	}))
	defer ts.Close()

	got, err := c.ResolveDownload(context.Background(), "tok", "BQAC-abc")
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/file/bottok/documents/file_7.bin", got)
}

func TestResolveDownloadEscapesFileID(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "id with spaces&=", r.URL.Query().Get("file_id"))
		fmt.Fprint(w, `{"ok":true,"result":{"file_path":"d/f.bin"}}`)
	}))
	defer ts.Close()

	_, err := c.ResolveDownload(context.Background(), "tok", "id with spaces&=")
	require.NoError(t, err)
}

func TestStreamDownload(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "raw chunk bytes")
	}))
	defer ts.Close()

	body, err := c.StreamDownload(context.Background(), ts.URL+"/file/bottok/d/f.bin")
	require.NoError(t, err)
	defer body.Close()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "raw chunk bytes", string(got))
}

func TestStreamDownloadServerError(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream broken")
	}))
	defer ts.Close()

	_, err := c.StreamDownload(context.Background(), ts.URL+"/x")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Contains(t, statusErr.Body, "upstream broken")
	assert.True(t, IsRetryable(err))
}

func TestDelete(t *testing.T) {
	var gotForm url.Values
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottok/deleteMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer ts.Close()

	require.NoError(t, c.Delete(context.Background(), "tok", "-100500", 77))
	assert.Equal(t, "-100500", gotForm.Get("chat_id"))
	assert.Equal(t, "77", gotForm.Get("message_id"))
}

func TestDeleteRefusal(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"message can't be deleted"}`)
	}))
	defer ts.Close()

	err := c.Delete(context.Background(), "tok", "chat", 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 429", &StatusError{Code: 429}, true},
		{"status 500", &StatusError{Code: 500}, true},
		{"status 404", &StatusError{Code: 404}, false},
		{"api error", &APIError{Op: "sendDocument", Message: "x"}, false},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"wrapped status", fmt.Errorf("chunk 3: %w", &StatusError{Code: 503}), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
