package models

import "time"

// Session is a sharing session addressed by its passkey.
type Session struct {
	Passkey   string
	Owner     string
	CreatedAt time.Time
}
