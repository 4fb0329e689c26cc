// Package proto defines the contracts a concrete ETP protocol handler and the
// Session core share: the Handler interface, the dual-keyed HandlerRegistry,
// and the minimal SessionAPI a handler uses to send messages. Splitting this
// out of package session avoids an import cycle between the session core and
// the concrete handler packages (core, discovery, store, growingobject,
// dataspace), each of which needs to call back into the session that owns it.
package proto

import (
	"context"

	"github.com/energistics/etp/wire"
)

// ContractID is a stable identifier assigned per handler contract (e.g. "store.customer"),
// used as the registry's secondary key. Spec.md §9: "a stable identifier...
// avoid reflection" rather than a reflection-based type key.
type ContractID string

// SessionAPI is the subset of Session a ProtocolHandler is allowed to call.
// It is intentionally narrow: handlers send messages and read negotiated
// state; they never touch the transport or the send lock directly.
type SessionAPI interface {
	// SendMessage stamps header.MessageID, runs onBeforeSend synchronously
	// before the bytes hit the wire (so callers can register a correlation
	// first), encodes, and writes. It returns the allocated message id even
	// on failure (failure is reported as an outbound ProtocolException).
	SendMessage(ctx context.Context, header wire.MessageHeader, body map[string]any, onBeforeSend func(*wire.MessageHeader)) (int64, error)

	// SendException sends a ProtocolException on the given protocol,
	// correlated to correlationID.
	SendException(ctx context.Context, protocol uint16, correlationID int64, exc wire.ProtocolException)

	// Version reports the negotiated wire version (so a handler can pick
	// its own version-specific catalog knowledge if it has any).
	Version() wire.Version
}

// Handler is the abstract base every concrete protocol handler implements.
// The default dispatch loop (Session's inbound routing) calls HandleMessage;
// concrete handlers build their own per-message-type dispatch table at
// construction (spec.md §9: "registration table from messageType to a typed
// decode+dispatch closure built at handler construction").
type Handler interface {
	// Protocol is the numeric protocol id this handler serves.
	Protocol() uint16

	// ContractID is the registry's secondary key.
	ContractID() ContractID

	// LocalRole/RemoteRole are this handler's (localRole, remoteRole) pair,
	// used by negotiation to test membership in the agreed protocol set.
	LocalRole() wire.Role
	RemoteRole() wire.Role

	// BindSession is called once by the registry at registration time.
	BindSession(session SessionAPI)

	// OnRegistered fires immediately after BindSession, before negotiation.
	OnRegistered()

	// OnSessionOpened fires once negotiation completes, in registration
	// order, with both the locally requested and the negotiated protocol
	// sets (spec.md §4.5).
	OnSessionOpened(requested, negotiated []wire.SupportedProtocol)

	// OnSessionClosed fires when the session transitions to Closed.
	OnSessionClosed(reason string)

	// HandleMessage dispatches one inbound message to this handler. A
	// returned error is caught by the session and reported as an outbound
	// ProtocolException(InvalidState) on this handler's protocol (spec.md
	// §4.5, §7 "Handler" error class).
	HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error
}
