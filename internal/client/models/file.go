// Package models defines the client-side data model of a sharing session.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SharedFile is one entry of a session's authoritative file list.
type SharedFile struct {
	ID       FileID `json:"id"`
	FileName string `json:"fileName"`
}

// FileID is a server-assigned file identifier. Servers emit it either as a
// JSON string or as a JSON number; both decode to the same textual form.
type FileID string

func (id *FileID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FileID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("file id: %w", err)
	}
	*id = FileID(n.String())
	return nil
}

func (id FileID) String() string {
	return string(id)
}
