// Package realtime keeps a session's change-notification subscription alive.
//
// A Channel dials the backend websocket endpoint, speaks STOMP 1.2 over it
// (one frame per websocket text message) and subscribes to the session topic
// /topic/session/{passkey}. Messages carry no data: any MESSAGE on that topic
// only means "the file list changed", and the channel reacts by invoking the
// notify callback so the owner can re-fetch.
//
// # States
//
//	Idle ──Connect──▶ Connecting ──ok──▶ Subscribed ◀──────────┐
//	                      │                  │ socket lost       │ resubscribed
//	                      ▼ first dial fails ▼                   │
//	                     Idle           Reconnecting ────────────┘
//	                                         │ attempts exhausted
//	                                         ▼
//	                                      Degraded
//
// Disconnect moves any state to Disconnected, which is terminal.
//
// Reconnects use bounded exponential backoff; after a successful reconnect the
// notify callback fires once so notifications missed while offline are
// covered by a re-fetch.
package realtime
