package session

import "errors"

// ErrSessionClosed is returned by SendMessage once the session has begun
// closing (the Core CloseSession that Close itself sends is the one message
// still let through while Closing); spec.md §7 "Lifecycle": "send attempted after Closing fails
// locally with SessionClosed, no wire traffic."
var ErrSessionClosed = errors.New("session: closed")

// ErrAlreadyOpen is returned by Open if called twice on the same Session value.
var ErrAlreadyOpen = errors.New("session: already open")

// ErrNegotiationFailed is returned when the Core handshake does not complete
// (peer replied with ProtocolException, sent an unexpected message, or the
// negotiation deadline elapsed).
var ErrNegotiationFailed = errors.New("session: negotiation failed")
