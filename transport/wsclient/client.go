// Package wsclient dials ETP WebSocket servers from the customer side using
// gorilla/websocket, the client-facing counterpart to transport/wsserver's
// coder/websocket-based Accept.
package wsclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/energistics/etp/wire"
)

const etpSubprotocol = "etp"

// DialOptions configures Dial.
type DialOptions struct {
	Encoding     wire.Encoding
	WriteTimeout time.Duration
	Header       http.Header
}

// Conn adapts a gorilla/websocket client connection to session.Transport.
type Conn struct {
	ws           *websocket.Conn
	respHeader   http.Header
	writeTimeout time.Duration
}

// Dial connects to url, advertising the ETP subprotocol and the requested
// wire encoding via the etp-encoding header (spec.md §6: "etp-encoding...
// default binary").
func Dial(ctx context.Context, url string, opts DialOptions) (*Conn, error) {
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(wire.EncodingHeaderName, opts.Encoding.HeaderValue())

	dialer := &websocket.Dialer{
		Subprotocols:     []string{etpSubprotocol},
		HandshakeTimeout: 10 * time.Second,
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial: %w", err)
	}

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	var respHeader http.Header
	if resp != nil {
		respHeader = resp.Header.Clone()
	}
	return &Conn{ws: ws, respHeader: respHeader, writeTimeout: writeTimeout}, nil
}

// ReadFrame implements session.Transport.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, bool, error) {
	_ = ctx
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, false, fmt.Errorf("wsclient: read: %w", err)
	}
	return data, mt == websocket.TextMessage, nil
}

// WriteFrame implements session.Transport.
func (c *Conn) WriteFrame(ctx context.Context, data []byte, isText bool) error {
	_ = ctx
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("wsclient: set write deadline: %w", err)
	}
	mt := websocket.BinaryMessage
	if isText {
		mt = websocket.TextMessage
	}
	if err := c.ws.WriteMessage(mt, data); err != nil {
		return fmt.Errorf("wsclient: write: %w", err)
	}
	return nil
}

// Close implements session.Transport. It sends a close control frame
// best-effort before tearing down the underlying connection.
func (c *Conn) Close(ctx context.Context, reason string) error {
	_ = ctx
	deadline := time.Now().Add(2 * time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	return c.ws.Close()
}

// Header implements session.Transport, reading from the server's upgrade
// response headers.
func (c *Conn) Header(name string) string {
	if c.respHeader == nil {
		return ""
	}
	return c.respHeader.Get(name)
}
