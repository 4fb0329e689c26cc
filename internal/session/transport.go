package session

import "context"

// Transport is the narrow interface Session depends on. Concrete WebSocket
// transports (transport/wsserver, transport/wsclient) implement this; the
// session core never imports a websocket library directly (spec.md §1:
// "the WebSocket transport implementation... [is an] external collaborator").
type Transport interface {
	// ReadFrame blocks until one complete frame is available. isText
	// reports whether the frame arrived as a text (JSON) or binary frame.
	ReadFrame(ctx context.Context) (data []byte, isText bool, err error)

	// WriteFrame writes one complete frame. isText selects the WebSocket
	// frame type (text for JSON framing, binary for Avro-binary framing).
	WriteFrame(ctx context.Context, data []byte, isText bool) error

	// Close closes the underlying connection. It must be safe to call more
	// than once.
	Close(ctx context.Context, reason string) error

	// Header returns the value of an HTTP/WS upgrade header captured at
	// construction (e.g. "etp-encoding"). Spec.md §3: "Headers... are
	// captured at construction."
	Header(name string) string
}
