// Package netx contains HTTP helpers used by the API client.
package netx

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strings"
)

// MultipartFile streams r as a single-file multipart/form-data body without
// buffering it in memory. The returned content type carries the boundary.
// Errors from r surface as read errors on the body. Close stops the copy and
// returns only once r is no longer being read.
func MultipartFile(field, fileName string, r io.Reader) (body io.ReadCloser, contentType string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})

	go func() {
		defer close(done)
		part, err := mw.CreateFormFile(field, fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	return &multipartBody{PipeReader: pr, done: done}, mw.FormDataContentType()
}

type multipartBody struct {
	*io.PipeReader
	done chan struct{}
}

func (b *multipartBody) Close() error {
	err := b.PipeReader.Close()
	<-b.done
	return err
}

// WebSocketURL turns an http(s) base URL into the ws(s) URL of path.
func WebSocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	return u.String(), nil
}
