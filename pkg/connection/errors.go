package connection

import "errors"

// ErrProtocolViolation is the sentinel for protocol-level failures that
// fail the connection. The only failure that wraps it is
// ErrReliableOutstandingExceeded; acks of unknown packets, message ids
// outside a channel's window and fragment counts are not checked and do
// not fail the connection.
var ErrProtocolViolation = errors.New("connection: protocol violation")

// ErrTransportClosed marks a Disconnect caused by the transport itself
// reporting an error or closing, or by the peer going silent past the
// connection or ping timeout, rather than a protocol violation or an
// explicit local disconnect() call.
var ErrTransportClosed = errors.New("connection: transport closed")

// ErrReliableOutstandingExceeded reports a specific reliable channel
// overflowing its configured MaxOutstanding bound.
type ErrReliableOutstandingExceeded struct {
	ChannelId  uint8
	Outstanding int
	Max         int
}

func (e *ErrReliableOutstandingExceeded) Error() string {
	return "connection: reliable channel exceeded outstanding bound"
}

func (e *ErrReliableOutstandingExceeded) Unwrap() error { return ErrProtocolViolation }
