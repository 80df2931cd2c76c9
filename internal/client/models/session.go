package models

// Session is the client's view of the sharing session it takes part in.
// Passkey is empty and Active false until create or join succeeds.
type Session struct {
	Passkey  string
	Username string
	Active   bool
	Owner    bool
}
