// Package cli provides the interactive PassShare command-line client.
//
// It wires configuration, local storage, the API client, the realtime
// channel and the session manager behind a small REPL. A background watcher
// pings the server and reports online/offline transitions; realtime state
// changes and notification-driven file list updates are printed as they
// happen.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
