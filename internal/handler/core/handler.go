// Package core implements the Core protocol (0) handler: the one handler
// every session registers unconditionally, since RequestSession/OpenSession
// drive negotiation itself (handled directly by the session, see
// internal/session/negotiate.go) and CloseSession/ProtocolException are the
// steady-state messages this handler answers to (spec.md §4.5 "Inbound
// routing" step 3, §4.6.1).
package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/energistics/etp/internal/proto"
	"github.com/energistics/etp/wire"
)

// ContractID is the registry key this handler is reachable under.
const ContractID proto.ContractID = "core"

// Handler answers Core protocol messages received during the open/steady
// state. It does not participate in the negotiation handshake itself — the
// session drives RequestSession/OpenSession directly — but owns the
// CloseSession and stray-ProtocolException paths once a session is open.
type Handler struct {
	log         *slog.Logger
	role        wire.Role
	session     proto.SessionAPI
	onPeerClose func(reason string)
}

// New constructs a Core handler for the given local role. onPeerClose, if
// non-nil, is invoked when the peer sends CloseSession, so the owner can
// drive the session's own Close.
func New(log *slog.Logger, role wire.Role, onPeerClose func(reason string)) *Handler {
	return &Handler{log: log, role: role, onPeerClose: onPeerClose}
}

func (h *Handler) Protocol() uint16          { return wire.ProtocolCore }
func (h *Handler) ContractID() proto.ContractID { return ContractID }
func (h *Handler) LocalRole() wire.Role      { return h.role }
func (h *Handler) RemoteRole() wire.Role     { return complement(h.role) }

func (h *Handler) BindSession(session proto.SessionAPI) { h.session = session }

func (h *Handler) OnRegistered() {}

func (h *Handler) OnSessionOpened(requested, negotiated []wire.SupportedProtocol) {
	h.log.Info("core.session_opened", "requested", len(requested), "negotiated", len(negotiated))
}

func (h *Handler) OnSessionClosed(reason string) {
	h.log.Info("core.session_closed", "reason", reason)
}

// HandleMessage answers CloseSession (notifying the owner) and logs any
// stray, uncorrelated ProtocolException. RequestSession/OpenSession never
// reach here in a correctly negotiated session; if they do (a peer resending
// after Open), it is reported as InvalidState.
func (h *Handler) HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	switch header.MessageType {
	case wire.CoreMsgCloseSession:
		reason, _ := body["reason"].(string)
		h.log.Info("core.close_session.received", "reason", reason)
		if h.onPeerClose != nil {
			h.onPeerClose(reason)
		}
		return nil

	case wire.ProtocolExceptionMessageType:
		code, _ := body["errorCode"].(int32)
		msg, _ := body["errorMessage"].(string)
		h.log.Warn("core.protocol_exception.uncorrelated", "errorCode", wire.ErrorCode(code), "errorMessage", msg)
		return nil

	case wire.CoreMsgRequestSession, wire.CoreMsgOpenSession:
		return fmt.Errorf("core: %s received after negotiation completed", messageName(header.MessageType))

	default:
		return fmt.Errorf("core: unsupported message type %d", header.MessageType)
	}
}

func messageName(mt uint16) string {
	switch mt {
	case wire.CoreMsgRequestSession:
		return "RequestSession"
	case wire.CoreMsgOpenSession:
		return "OpenSession"
	default:
		return fmt.Sprintf("messageType(%d)", mt)
	}
}

func complement(role wire.Role) wire.Role {
	switch role {
	case wire.RoleStore:
		return wire.RoleCustomer
	case wire.RoleCustomer:
		return wire.RoleStore
	case wire.RoleProducer:
		return wire.RoleConsumer
	case wire.RoleConsumer:
		return wire.RoleProducer
	default:
		return role
	}
}
