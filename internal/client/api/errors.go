package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/passshare/internal/common"
)

var (
	ErrUnavailable      = errors.New("server unavailable")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrDuplicatePasskey = errors.New("duplicate passkey")
	ErrServer           = errors.New("server error")
)

// Messages shown when the server gave nothing better to say.
const (
	MessageRequestFailed = "Request failed"
	MessageUnavailable   = "Unable to reach the server"
)

// APIError is a non-2xx response. Message is the trimmed response body, or
// MessageRequestFailed when the body was empty.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrDuplicatePasskey:
		return e.Status == http.StatusConflict || e.Message == common.DuplicatePasskeyMessage
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrServer:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}

// UserMessage returns the text to show the user for err.
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrUnavailable):
		return MessageUnavailable
	default:
		return err.Error()
	}
}
