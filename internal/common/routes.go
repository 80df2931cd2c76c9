// Package common holds the wire contract shared by the client and the
// reference backend: HTTP routes, the websocket endpoint and topic naming.
package common

import (
	"net/url"
	"strings"
)

const (
	CreateSessionPath = "/api/sessions/create"
	JoinSessionPath   = "/api/sessions/join"
	HealthPath        = "/api/health"
	WebSocketPath     = "/ws"

	listFilesPrefix = "/api/sessions/files/"
	uploadPrefix    = "/api/sessions/upload/"
	downloadPrefix  = "/api/file/download/"

	// Router patterns of the parameterised routes.
	ListFilesRoute = listFilesPrefix + "{passkey}"
	UploadRoute    = uploadPrefix + "{passkey}/{userId}"
	DownloadRoute  = downloadPrefix + "{fileId}"

	// TopicPrefix is prepended to a passkey to form its notification topic.
	TopicPrefix = "/topic/session/"

	// UploadFormField is the multipart field carrying the uploaded file.
	UploadFormField = "file"

	// DuplicatePasskeyMessage is the body of a 409 returned by create when
	// the passkey is already taken.
	DuplicatePasskeyMessage = "DUPLICATE_PASSKEY"
)

// ListFilesPath returns /api/sessions/files/{passkey}.
func ListFilesPath(passkey string) string {
	return listFilesPrefix + url.PathEscape(passkey)
}

// UploadPath returns /api/sessions/upload/{passkey}/{userId}.
func UploadPath(passkey, userID string) string {
	return uploadPrefix + url.PathEscape(passkey) + "/" + url.PathEscape(userID)
}

// DownloadPath returns /api/file/download/{fileId}.
func DownloadPath(fileID string) string {
	return downloadPrefix + url.PathEscape(fileID)
}

// Topic returns the pub/sub destination for a session.
func Topic(passkey string) string {
	return TopicPrefix + passkey
}

// PasskeyFromTopic is the inverse of Topic.
func PasskeyFromTopic(topic string) (string, bool) {
	passkey, ok := strings.CutPrefix(topic, TopicPrefix)
	if !ok || passkey == "" {
		return "", false
	}
	return passkey, true
}
