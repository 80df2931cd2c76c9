package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/passshare/internal/client/models"
	"github.com/dmitrijs2005/passshare/internal/common"
	"github.com/dmitrijs2005/passshare/internal/logging"
	"github.com/dmitrijs2005/passshare/internal/netx"
)

// maxErrorBody bounds how much of an error response is kept as the message.
const maxErrorBody = 4 << 10

type sessionRequest struct {
	Passkey  string `json:"passkey"`
	Username string `json:"username"`
}

// HTTPClient talks to the backend over HTTP. Short JSON calls are bounded by
// the request timeout; uploads and downloads only by the caller's context.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  logging.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger logging.Logger) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (c *HTTPClient) CreateSession(ctx context.Context, passkey, username string) error {
	return c.postSession(ctx, common.CreateSessionPath, passkey, username)
}

func (c *HTTPClient) JoinSession(ctx context.Context, passkey, username string) error {
	return c.postSession(ctx, common.JoinSessionPath, passkey, username)
}

func (c *HTTPClient) postSession(ctx context.Context, path, passkey, username string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(sessionRequest{Passkey: passkey, Username: username})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

func (c *HTTPClient) ListFiles(ctx context.Context, passkey string) ([]models.SharedFile, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+common.ListFilesPath(passkey), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	var files []models.SharedFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	if files == nil {
		files = []models.SharedFile{}
	}
	return files, nil
}

func (c *HTTPClient) Upload(ctx context.Context, passkey, userID, fileName string, content io.Reader) error {
	body, contentType := netx.MultipartFile(common.UploadFormField, fileName, content)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+common.UploadPath(passkey, userID), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Download returns the raw file stream. The caller must close it.
func (c *HTTPClient) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+common.DownloadPath(fileID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+common.HealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

func (c *HTTPClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// do sends req and maps failures. On success the caller owns resp.Body.
func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug(req.Context(), "request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, mapError(req.Context(), err)
	}

	c.logger.Debug(req.Context(), "request done", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drain(resp)
		return nil, newAPIError(resp)
	}
	return resp, nil
}

// mapError converts a transport error. Cancellation by the caller is passed
// through; anything else means the server could not be reached.
func mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func newAPIError(resp *http.Response) *APIError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = MessageRequestFailed
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
