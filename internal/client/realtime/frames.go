package realtime

import (
	"github.com/dmitrijs2005/passshare/internal/stompws"
	"github.com/go-stomp/stomp/v3/frame"
)

func connectFrame(host string) *frame.Frame {
	return frame.New(frame.CONNECT,
		stompws.HdrAcceptVersion, stompws.Version,
		stompws.HdrHost, host,
		stompws.HdrHeartBeat, "0,0")
}

func subscribeFrame(id, destination, receipt string) *frame.Frame {
	return frame.New(frame.SUBSCRIBE,
		stompws.HdrID, id,
		stompws.HdrDestination, destination,
		stompws.HdrAck, "auto",
		stompws.HdrReceipt, receipt)
}

func unsubscribeFrame(id string) *frame.Frame {
	return frame.New(frame.UNSUBSCRIBE, stompws.HdrID, id)
}

func disconnectFrame() *frame.Frame {
	return frame.New(frame.DISCONNECT)
}
