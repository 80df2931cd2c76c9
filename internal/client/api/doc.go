// Package api is the HTTP client for the PassShare session backend.
//
// # Overview
//
// Client is the transport-agnostic contract used by the services layer:
// create and join a session, list its files, upload and download files, and
// check liveness. HTTPClient implements it over net/http against the routes
// declared in package common.
//
// # Error Handling
//
// Failures fall into three groups that callers match with errors.Is/As:
//
//   - transport failures wrap ErrUnavailable;
//   - non-2xx responses are *APIError carrying the status and the response
//     body as the user-facing message (404 matches ErrNotFound, a 409 or a
//     DUPLICATE_PASSKEY body matches ErrDuplicatePasskey);
//   - context cancellation is returned unchanged.
//
// UserMessage renders any of these as the text shown to the user. Nothing in
// this package retries.
package api
