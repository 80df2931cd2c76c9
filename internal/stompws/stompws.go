// Package stompws carries STOMP 1.2 frames over websocket text messages, one
// frame per message. It is shared by the client channel and the broker.
package stompws

import (
	"bytes"

	"github.com/go-stomp/stomp/v3/frame"
)

// Header names.
const (
	HdrAcceptVersion = "accept-version"
	HdrVersion       = "version"
	HdrHost          = "host"
	HdrHeartBeat     = "heart-beat"
	HdrDestination   = "destination"
	HdrID            = "id"
	HdrAck           = "ack"
	HdrMessage       = "message"
	HdrSubscription  = "subscription"
	HdrMessageID     = "message-id"
	HdrReceipt       = "receipt"
	HdrReceiptID     = "receipt-id"
	HdrContentType   = "content-type"
)

// Version is the only protocol version spoken.
const Version = "1.2"

func Encode(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses one websocket message. A heart-beat (only line breaks)
// yields a nil frame and a nil error.
func Decode(data []byte) (*frame.Frame, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return frame.NewReader(bytes.NewReader(data)).Read()
}
