package models

import "errors"

var ErrInvalidIdentity = errors.New("identity must have an id and a username")

// Identity is the user the client acts as. It is carried explicitly through
// the services and persisted via identity.Store.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Validate rejects identities missing an id or a username.
func (i Identity) Validate() error {
	if i.ID == "" || i.Username == "" {
		return ErrInvalidIdentity
	}
	return nil
}
