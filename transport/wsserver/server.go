// Package wsserver accepts ETP WebSocket upgrades on the store side, using
// coder/websocket the way the teacher's realtime gateway does (ws_gateway.go):
// Accept with a fixed subprotocol, a read-size limit, and context-bounded
// reads/writes/close.
package wsserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/energistics/etp/wire"
)

const (
	// etpSubprotocol is the WebSocket subprotocol ETP servers advertise and
	// require, mirroring how the teacher pins "arc.realtime.v1".
	etpSubprotocol = "etp"

	defaultReadLimit  = 32 << 20
	defaultWriteTimeout = 10 * time.Second
	defaultCloseTimeout = 2 * time.Second
)

// AcceptOptions configures Accept. InsecureSkipVerify should only ever be
// true in local development, same caveat the teacher's gateway carries.
type AcceptOptions struct {
	InsecureSkipVerify bool
	ReadLimit          int64
	WriteTimeout       time.Duration
}

// Conn adapts a coder/websocket server connection to session.Transport.
type Conn struct {
	ws           *websocket.Conn
	headers      http.Header
	writeTimeout time.Duration
}

// Accept upgrades r to a WebSocket connection, rejecting requests that do
// not offer the ETP subprotocol. It captures the negotiated etp-encoding
// request header at construction, per spec.md §3's "headers are captured at
// construction" requirement.
func Accept(w http.ResponseWriter, r *http.Request, opts AcceptOptions) (*Conn, error) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{etpSubprotocol},
		InsecureSkipVerify: opts.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("wsserver: accept: %w", err)
	}
	if ws.Subprotocol() != etpSubprotocol {
		_ = ws.Close(websocket.StatusPolicyViolation, "unsupported subprotocol")
		return nil, fmt.Errorf("wsserver: peer did not negotiate subprotocol %q", etpSubprotocol)
	}

	readLimit := opts.ReadLimit
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	ws.SetReadLimit(readLimit)

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &Conn{ws: ws, headers: r.Header.Clone(), writeTimeout: writeTimeout}, nil
}

// ReadFrame implements session.Transport.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, bool, error) {
	mt, data, err := c.ws.Read(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("wsserver: read: %w", err)
	}
	return data, mt == websocket.MessageText, nil
}

// WriteFrame implements session.Transport.
func (c *Conn) WriteFrame(ctx context.Context, data []byte, isText bool) error {
	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	mt := websocket.MessageBinary
	if isText {
		mt = websocket.MessageText
	}
	if err := c.ws.Write(writeCtx, mt, data); err != nil {
		return fmt.Errorf("wsserver: write: %w", err)
	}
	return nil
}

// Close implements session.Transport.
func (c *Conn) Close(ctx context.Context, reason string) error {
	_ = ctx
	if err := c.ws.Close(websocket.StatusNormalClosure, reason); err != nil {
		return fmt.Errorf("wsserver: close: %w", err)
	}
	return nil
}

// Header implements session.Transport, reading from the headers captured at
// Accept time.
func (c *Conn) Header(name string) string { return c.headers.Get(name) }

// NegotiateEncoding reads the etp-encoding request header Accept captured,
// defaulting to binary framing.
func (c *Conn) NegotiateEncoding() wire.Encoding {
	return wire.ParseEncodingHeader(c.Header(wire.EncodingHeaderName))
}
