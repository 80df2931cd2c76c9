// Package models defines server-side data models persisted in the database.
package models

import "time"

// File is the metadata of one upload. The content lives in blob storage
// under StorageKey.
type File struct {
	ID         int64
	Passkey    string
	UploaderID string
	FileName   string
	StorageKey string
	Size       int64
	CreatedAt  time.Time
}
