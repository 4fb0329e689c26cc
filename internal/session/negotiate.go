package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/energistics/etp/wire"
)

func supportedProtocolToNative(sp wire.SupportedProtocol) map[string]any {
	return map[string]any{
		"protocol":        int32(sp.Protocol),
		"protocolVersion": string(sp.Version),
		"role":            string(sp.Role),
	}
}

func nativeToSupportedProtocol(v any) (wire.SupportedProtocol, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return wire.SupportedProtocol{}, fmt.Errorf("session: supportedProtocol entry is not a record")
	}
	protocol, _ := m["protocol"].(int32)
	version, _ := m["protocolVersion"].(string)
	role, _ := m["role"].(string)
	return wire.SupportedProtocol{
		Protocol: uint16(protocol),
		Version:  wire.Version(version),
		Role:     wire.Role(role),
	}, nil
}

func nativeToSupportedProtocols(v any) ([]wire.SupportedProtocol, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("session: expected an array of supportedProtocol records")
	}
	out := make([]wire.SupportedProtocol, 0, len(list))
	for _, item := range list {
		sp, err := nativeToSupportedProtocol(item)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// localSupportedProtocols builds the SupportedProtocol list this session can
// offer, one entry per registered handler, from its own (protocol, localRole).
func (s *Session) localSupportedProtocols() []wire.SupportedProtocol {
	handlers := s.registry.All()
	out := make([]wire.SupportedProtocol, 0, len(handlers))
	for _, h := range handlers {
		out = append(out, wire.SupportedProtocol{
			Protocol: h.Protocol(),
			Version:  s.catalog.Version(),
			Role:     h.LocalRole(),
		})
	}
	return out
}

// negotiatedSet turns a peer-advertised SupportedProtocol list into the
// ProtocolRole set UnregisterUnsupported checks local handlers against: for
// each peer entry, the role our own matching handler must be playing is the
// complementary (local) role, i.e. our own handler's LocalRole for that
// protocol. We simply intersect by protocol id against our own handlers,
// since each local handler's (protocol, localRole) pair is unique here.
func (s *Session) negotiatedSet(peer []wire.SupportedProtocol) map[wire.ProtocolRole]struct{} {
	byProtocol := make(map[uint16]struct{}, len(peer))
	for _, sp := range peer {
		byProtocol[sp.Protocol] = struct{}{}
	}

	out := make(map[wire.ProtocolRole]struct{})
	for _, h := range s.registry.All() {
		if _, ok := byProtocol[h.Protocol()]; ok {
			out[wire.ProtocolRole{Protocol: h.Protocol(), Role: h.LocalRole()}] = struct{}{}
		}
	}
	return out
}

// negotiateAsInitiator sends RequestSession and waits for OpenSession or
// ProtocolException. It runs before the steady-state receive loop starts,
// since negotiation is a simple two-message handshake (spec.md §6).
func (s *Session) negotiateAsInitiator(ctx context.Context, cfg OpenConfig) error {
	requested := s.localSupportedProtocols()

	body := map[string]any{
		"applicationName":    cfg.ApplicationName,
		"applicationVersion": cfg.ApplicationVersion,
		"requestedProtocols": toNativeList(requested),
	}
	header := wire.MessageHeader{Protocol: wire.ProtocolCore, MessageType: wire.CoreMsgRequestSession}

	if _, err := s.SendMessage(ctx, header, body, nil); err != nil {
		return fmt.Errorf("session: send RequestSession: %w", err)
	}

	deadline := cfg.NegotiationTimeout
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	negCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	data, isText, err := s.transport.ReadFrame(negCtx)
	if err != nil {
		return fmt.Errorf("session: read OpenSession: %w", err)
	}
	frame, err := wire.Decode(frameEncoding(isText, s.encoding), s.catalog, data)
	if err != nil {
		return fmt.Errorf("session: decode OpenSession: %w", err)
	}

	if frame.Header.Protocol == wire.ProtocolCore && frame.Header.MessageType == wire.ProtocolExceptionMessageType {
		code, _ := frame.Body["errorCode"].(int32)
		msg, _ := frame.Body["errorMessage"].(string)
		return fmt.Errorf("%w: peer rejected session: %s (%s)", ErrNegotiationFailed, msg, wire.ErrorCode(code))
	}
	if frame.Header.Protocol != wire.ProtocolCore || frame.Header.MessageType != wire.CoreMsgOpenSession {
		return fmt.Errorf("%w: expected OpenSession, got protocol=%d messageType=%d", ErrNegotiationFailed, frame.Header.Protocol, frame.Header.MessageType)
	}

	sessionID, _ := frame.Body["sessionId"].(string)
	negotiated, err := nativeToSupportedProtocols(frame.Body["supportedProtocols"])
	if err != nil {
		return fmt.Errorf("session: parse OpenSession.supportedProtocols: %w", err)
	}

	s.id = sessionID
	s.requested = requested
	s.negotiated = negotiated

	s.registry.UnregisterUnsupported(s.negotiatedSet(negotiated))
	return nil
}

// negotiateAsAcceptor waits for RequestSession and replies with OpenSession.
func (s *Session) negotiateAsAcceptor(ctx context.Context, cfg OpenConfig) error {
	deadline := cfg.NegotiationTimeout
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	negCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	data, isText, err := s.transport.ReadFrame(negCtx)
	if err != nil {
		return fmt.Errorf("session: read RequestSession: %w", err)
	}
	frame, err := wire.Decode(frameEncoding(isText, s.encoding), s.catalog, data)
	if err != nil {
		return fmt.Errorf("session: decode RequestSession: %w", err)
	}
	if frame.Header.Protocol != wire.ProtocolCore || frame.Header.MessageType != wire.CoreMsgRequestSession {
		return fmt.Errorf("%w: expected RequestSession, got protocol=%d messageType=%d", ErrNegotiationFailed, frame.Header.Protocol, frame.Header.MessageType)
	}

	peerRequested, err := nativeToSupportedProtocols(frame.Body["requestedProtocols"])
	if err != nil {
		return fmt.Errorf("session: parse RequestSession.requestedProtocols: %w", err)
	}

	localAll := s.localSupportedProtocols()
	negotiatedKeys := s.negotiatedSet(peerRequested)
	negotiated := make([]wire.SupportedProtocol, 0, len(negotiatedKeys))
	for _, sp := range localAll {
		if _, ok := negotiatedKeys[wire.ProtocolRole{Protocol: sp.Protocol, Role: sp.Role}]; ok {
			negotiated = append(negotiated, sp)
		}
	}

	s.id = uuid.NewString()
	s.requested = peerRequested
	s.negotiated = negotiated

	s.registry.UnregisterUnsupported(negotiatedKeys)

	openBody := map[string]any{
		"sessionId":          s.id,
		"supportedProtocols": toNativeList(negotiated),
	}
	header := wire.MessageHeader{Protocol: wire.ProtocolCore, MessageType: wire.CoreMsgOpenSession}
	if _, err := s.SendMessage(ctx, header, openBody, nil); err != nil {
		return fmt.Errorf("session: send OpenSession: %w", err)
	}
	return nil
}

func toNativeList(protocols []wire.SupportedProtocol) []any {
	out := make([]any, 0, len(protocols))
	for _, sp := range protocols {
		out = append(out, supportedProtocolToNative(sp))
	}
	return out
}

func frameEncoding(isText bool, fallback wire.Encoding) wire.Encoding {
	if isText {
		return wire.EncodingJSON
	}
	return wire.EncodingBinary
}

