// Package telegram is the messaging adapter: the minimal Bot API client the
// transfer engine needs to use a chat as an opaque blob tier. It knows how
// to post a document, resolve a document to a download URL, stream that URL,
// and delete a message. Transient-failure classification lives here too so
// the engine's retry policy can stay protocol-agnostic.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Default client-side smoothing of Bot API calls. The per-bot gates bound
// concurrency; this bounds call frequency across all of them, which keeps
// the backend from answering 429 in the first place.
const (
	defaultRatePerSecond = 20
	defaultRateBurst     = 40
)

// Client talks to one Bot API server on behalf of any number of bots
// (the token is passed per call). Safe for concurrent use.
type Client struct {
	httpc   *http.Client
	apiURL  string
	limiter *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Uploads of multi-
// hundred-MiB chunks need a client without an overall request timeout.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithRateLimit overrides the client-side API call rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// New creates a Client for the given API base URL (e.g. "https://api.telegram.org").
func New(apiURL string, opts ...Option) *Client {
	c := &Client{
		httpc: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiURL:  strings.TrimRight(apiURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(defaultRatePerSecond), defaultRateBurst),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) methodURL(token, method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiURL, token, method)
}

// Upload posts r as a document into chat and returns the blob ID used for
// later download resolution plus the message ID used for deletion. The body
// is streamed; it is never buffered in memory.
func (c *Client) Upload(ctx context.Context, token, chat, filename string, r io.Reader) (string, int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", 0, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeDocumentForm(mw, chat, filename, r)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(token, "sendDocument"), pr)
	if err != nil {
		return "", 0, fmt.Errorf("building sendDocument request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("sendDocument: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", 0, err
	}

	var body struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			MessageID int64 `json:"message_id"`
			Document  struct {
				FileID string `json:"file_id"`
			} `json:"document"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("decoding sendDocument response: %w", err)
	}
	if !body.OK {
		return "", 0, &APIError{Op: "sendDocument", Message: body.Description}
	}
	if body.Result.Document.FileID == "" {
		return "", 0, &APIError{Op: "sendDocument", Message: "no file_id in response"}
	}
	return body.Result.Document.FileID, body.Result.MessageID, nil
}

func writeDocumentForm(mw *multipart.Writer, chat, filename string, r io.Reader) error {
	if err := mw.WriteField("chat_id", chat); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

// ResolveDownload exchanges a blob ID for a short-lived download URL.
func (c *Client) ResolveDownload(ctx context.Context, token, blobID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	u := c.methodURL(token, "getFile") + "?file_id=" + url.QueryEscape(blobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building getFile request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("getFile: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var body struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding getFile response: %w", err)
	}
	if !body.OK || body.Result.FilePath == "" {
		return "", &APIError{Op: "getFile", Message: "no file_path in response"}
	}
	return fmt.Sprintf("%s/file/bot%s/%s", c.apiURL, token, body.Result.FilePath), nil
}

// StreamDownload opens the raw byte stream behind a resolved URL. The caller
// owns the returned body. Resolved URLs have short lifetimes, so a retry
// must go back through ResolveDownload, not reuse the URL.
func (c *Client) StreamDownload(ctx context.Context, downloadURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// Delete removes a previously posted message (and with it, the blob).
func (c *Client) Delete(ctx context.Context, token, chat string, msgID int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{
		"chat_id":    {chat},
		"message_id": {strconv.FormatInt(msgID, 10)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.methodURL(token, "deleteMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building deleteMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("deleteMessage: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	var body struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding deleteMessage response: %w", err)
	}
	if !body.OK {
		return &APIError{Op: "deleteMessage", Message: body.Description}
	}
	return nil
}

// checkStatus converts a non-2xx response into a StatusError, reading a
// bounded slice of the body for context.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
