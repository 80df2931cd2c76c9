// Package services contains the application services of the PassShare
// client: the session manager, which owns the passkey session lifecycle and
// the authoritative file list, and the stateless transfer operations.
package services
