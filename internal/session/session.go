// Package session implements the Session: the transport owner, message-id
// allocator, send-lock holder, and inbound receive loop that drives a
// HandlerRegistry and a CorrelationTracker through one ETP connection's
// lifetime (spec.md §3-§7).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/energistics/etp/internal/correlation"
	"github.com/energistics/etp/internal/proto"
	"github.com/energistics/etp/wire"
)

// OpenConfig configures the Core negotiation handshake.
type OpenConfig struct {
	// Initiator is true for the customer side, which sends RequestSession
	// first; false for the store side, which waits for it.
	Initiator bool

	ApplicationName    string
	ApplicationVersion string

	// NegotiationTimeout bounds the handshake; zero uses a 30s default.
	NegotiationTimeout time.Duration
}

// Session owns one ETP connection end to end: negotiation, message-id
// allocation, the single send lock that serializes header-stamp+encode+write
// (spec.md §5: "a session-wide send lock... guarantees... message ids appear
// on the wire in allocation order"), and the inbound receive loop that fans
// frames out to registered handlers and to the correlation tracker.
type Session struct {
	log *slog.Logger

	id       string
	state    stateBox
	transport Transport
	encoding wire.Encoding
	catalog  *wire.Catalog

	registry *proto.HandlerRegistry
	tracker  *correlation.Tracker

	sendMu        sync.Mutex
	nextMessageID int64

	// handlersInOrder preserves registration order for OnSessionOpened /
	// OnSessionClosed firing, since HandlerRegistry.All() does not.
	handlersInOrder []proto.Handler

	requested  []wire.SupportedProtocol
	negotiated []wire.SupportedProtocol

	closeOnce sync.Once
	closeErr  error

	defaultRequestTimeout time.Duration

	onMessageSent     func(protocol, messageType uint16)
	onMessageReceived func(protocol, messageType uint16)
	onSessionOpened   func(role, version string)
	onSessionClosed   func(reason string)
	onHandlerError    func(protocol uint16)
}

// New constructs a Session bound to transport, ready for handlers to be
// registered and then Open to be called. catalog selects the wire version
// this session speaks (spec.md: "one Session always speaks exactly one
// negotiated version's catalog").
func New(log *slog.Logger, transport Transport, encoding wire.Encoding, catalog *wire.Catalog, opts ...Option) *Session {
	s := &Session{
		log:                   log,
		transport:             transport,
		encoding:              encoding,
		catalog:               catalog,
		registry:              proto.NewHandlerRegistry(log),
		defaultRequestTimeout: 60 * time.Second,
	}
	s.tracker = correlation.New()
	for _, o := range opts {
		o(s)
	}
	return s
}

// Option configures optional Session behavior (metrics hooks, timeouts).
type Option func(*Session)

// WithCorrelationTracker overrides the default tracker, e.g. to wire
// Prometheus gauges via correlation.WithInflightGauge and friends.
func WithCorrelationTracker(t *correlation.Tracker) Option {
	return func(s *Session) { s.tracker = t }
}

// WithDefaultRequestTimeout sets the deadline new correlations get when the
// caller does not specify one explicitly.
func WithDefaultRequestTimeout(d time.Duration) Option {
	return func(s *Session) { s.defaultRequestTimeout = d }
}

// WithMessageMetrics wires counters for every outbound/inbound message,
// keyed by (protocol, messageType). Either callback may be nil.
func WithMessageMetrics(sent, received func(protocol, messageType uint16)) Option {
	return func(s *Session) {
		s.onMessageSent = sent
		s.onMessageReceived = received
	}
}

// WithSessionLifecycleMetrics wires callbacks fired once negotiation
// completes and once the session closes. Either callback may be nil.
func WithSessionLifecycleMetrics(opened func(role, version string), closed func(reason string)) Option {
	return func(s *Session) {
		s.onSessionOpened = opened
		s.onSessionClosed = closed
	}
}

// WithHandlerErrorMetrics wires a callback fired whenever a handler's
// HandleMessage returns an error.
func WithHandlerErrorMetrics(fn func(protocol uint16)) Option {
	return func(s *Session) { s.onHandlerError = fn }
}

// RegisterHandler adds h to the session's registry, preserving registration
// order for lifecycle callbacks. Must be called before Open.
func (s *Session) RegisterHandler(h proto.Handler) error {
	if err := s.registry.Register(s, h); err != nil {
		return err
	}
	s.handlersInOrder = append(s.handlersInOrder, h)
	return nil
}

// ID returns the negotiated session id (empty before Open completes).
func (s *Session) ID() string { return s.id }

// State reports the current lifecycle state.
func (s *Session) State() State { return s.state.load() }

// Version implements proto.SessionAPI.
func (s *Session) Version() wire.Version { return s.catalog.Version() }

// Open runs the Core negotiation handshake (spec.md §6) and, on success,
// transitions the session to Open. It does not start the receive loop; call
// Serve afterward to run steady-state dispatch.
func (s *Session) Open(ctx context.Context, cfg OpenConfig) error {
	if s.state.load() != StateNegotiating {
		return ErrAlreadyOpen
	}

	var err error
	if cfg.Initiator {
		err = s.negotiateAsInitiator(ctx, cfg)
	} else {
		err = s.negotiateAsAcceptor(ctx, cfg)
	}
	if err != nil {
		return err
	}

	s.state.store(StateOpen)
	for _, h := range s.handlersInOrder {
		h.OnSessionOpened(s.requested, s.negotiated)
	}
	if s.onSessionOpened != nil {
		role := "store"
		if cfg.Initiator {
			role = "customer"
		}
		s.onSessionOpened(role, string(s.catalog.Version()))
	}
	return nil
}

// SendMessage implements proto.SessionAPI. It allocates the next message id
// and performs encode+write under the session-wide send lock, so message ids
// are guaranteed to appear on the wire in allocation order (spec.md §5).
// onBeforeSend, if non-nil, runs synchronously after the id is stamped but
// before the frame is encoded — callers use it to register a correlation
// entry before there is any chance of the reply racing back in.
func (s *Session) SendMessage(ctx context.Context, header wire.MessageHeader, body map[string]any, onBeforeSend func(*wire.MessageHeader)) (int64, error) {
	if st := s.state.load(); st == StateClosed ||
		(st == StateClosing && !(header.Protocol == wire.ProtocolCore && header.MessageType == wire.CoreMsgCloseSession)) {
		return 0, ErrSessionClosed
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.nextMessageID++
	header.MessageID = s.nextMessageID

	if onBeforeSend != nil {
		onBeforeSend(&header)
	}

	data, err := wire.Encode(s.encoding, s.catalog, header, body)
	if err != nil {
		s.emitProtocolExceptionLocked(ctx, header.Protocol, 0, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
		return header.MessageID, fmt.Errorf("session: encode: %w", err)
	}

	isText := s.encoding == wire.EncodingJSON
	if err := s.transport.WriteFrame(ctx, data, isText); err != nil {
		s.emitProtocolExceptionLocked(ctx, header.Protocol, 0, wire.NewProtocolException(wire.ErrorInvalidState, err.Error()))
		return header.MessageID, fmt.Errorf("session: write: %w", err)
	}
	if s.onMessageSent != nil {
		s.onMessageSent(header.Protocol, header.MessageType)
	}
	return header.MessageID, nil
}

// SendException implements proto.SessionAPI, sending a ProtocolException on
// protocol correlated to correlationID. Unlike SendMessage, callers outside
// the send-lock critical section reach this path; it re-enters via the
// public SendMessage, which takes the lock itself.
func (s *Session) SendException(ctx context.Context, protocol uint16, correlationID int64, exc wire.ProtocolException) {
	header := wire.MessageHeader{
		Protocol:      protocol,
		MessageType:   wire.ProtocolExceptionMessageType,
		CorrelationID: correlationID,
		MessageFlags:  wire.FlagFinalPart,
	}
	body := map[string]any{
		"errorCode":    int32(exc.ErrorCode),
		"errorMessage": exc.ErrorMessage,
	}
	if len(exc.SubErrors) > 0 {
		subErrors := make(map[string]any, len(exc.SubErrors))
		for k, v := range exc.SubErrors {
			subErrors[k] = map[string]any{"errorCode": int32(v.ErrorCode), "errorMessage": v.ErrorMessage}
		}
		body["errors"] = subErrors
	}
	if _, err := s.SendMessage(ctx, header, body, nil); err != nil {
		s.log.Warn("session.exception.send_failed", "protocol", protocol, "correlationId", correlationID, "err", err)
	}
}

// emitProtocolExceptionLocked sends a ProtocolException while the caller
// already holds sendMu (e.g. because encode failed mid-send). It bypasses
// SendMessage's own locking to avoid deadlocking on a non-reentrant mutex,
// resolving spec.md §9's open question in favor of emitting under the lock:
// this keeps the exception contiguous with the failed send in message-id
// order rather than letting another goroutine's send interleave first.
func (s *Session) emitProtocolExceptionLocked(ctx context.Context, protocol uint16, correlationID int64, exc wire.ProtocolException) {
	s.nextMessageID++
	header := wire.MessageHeader{
		Protocol:      protocol,
		MessageType:   wire.ProtocolExceptionMessageType,
		MessageID:     s.nextMessageID,
		CorrelationID: correlationID,
		MessageFlags:  wire.FlagFinalPart,
	}
	body := map[string]any{
		"errorCode":    int32(exc.ErrorCode),
		"errorMessage": exc.ErrorMessage,
	}
	data, err := wire.Encode(s.encoding, s.catalog, header, body)
	if err != nil {
		s.log.Error("session.exception.encode_failed", "err", err)
		return
	}
	isText := s.encoding == wire.EncodingJSON
	if err := s.transport.WriteFrame(ctx, data, isText); err != nil {
		s.log.Warn("session.exception.write_failed", "err", err)
	}
}

// Call performs a request/response exchange: it registers a correlation
// entry before sending, then blocks for the matching FinalPart reply, the
// timeout (the session's default request timeout when timeout <= 0), or
// ctx's cancellation, whichever comes first. An elapsed timeout completes
// the entry with correlation.ErrTimeout and sends nothing on the wire.
// Multi-part replies are delivered as the full assembled slice.
func (s *Session) Call(ctx context.Context, header wire.MessageHeader, body map[string]any, contractID string, timeout time.Duration) ([]wire.DecodedFrame, error) {
	if timeout <= 0 {
		timeout = s.defaultRequestTimeout
	}
	deadline := time.Now().Add(timeout)

	var done <-chan correlation.Completion
	id, err := s.SendMessage(ctx, header, body, func(h *wire.MessageHeader) {
		done = s.tracker.Begin(h.MessageID, contractID, deadline, true)
	})
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var c correlation.Completion
	select {
	case c = <-done:
	case <-timer.C:
		// Expire every entry past this call's deadline; a reply that won the
		// race has already completed the entry and is kept.
		s.tracker.ExpireOverdue(deadline.Add(time.Nanosecond))
		c = <-done
	case <-ctx.Done():
		s.tracker.Fail(id, ctx.Err())
		return nil, ctx.Err()
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Parts, nil
}

// Serve runs the inbound receive loop until the transport closes or ctx is
// cancelled. It decodes each frame's header, routes to the matching
// handler's HandleMessage, and separately feeds correlated replies to the
// tracker (spec.md §4.5 step 3-6): these are two independent consumers of
// the same inbound frame, not a single dispatch path.
func (s *Session) Serve(ctx context.Context) error {
	for {
		data, isText, err := s.transport.ReadFrame(ctx)
		if err != nil {
			s.Close(context.Background(), "transport closed: "+errString(err))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		enc := frameEncoding(isText, s.encoding)

		var header wire.MessageHeader
		var body map[string]any
		var herr, berr error
		if enc == wire.EncodingJSON {
			var rawBody []byte
			header, rawBody, herr = wire.DecodeJSONHeader(data)
			if herr == nil {
				body, berr = wire.DecodeJSONBody(s.catalog, header, rawBody)
			}
		} else {
			var rest []byte
			header, rest, herr = wire.DecodeBinaryHeader(data)
			if herr == nil {
				body, berr = wire.DecodeBinaryBody(s.catalog, header, rest)
			}
		}
		if herr != nil {
			s.log.Warn("session.inbound.bad_header", "err", herr)
			continue
		}

		handler, ok := s.registry.ByProtocol(header.Protocol)
		if !ok {
			s.log.Warn("session.inbound.unsupported_protocol", "protocol", header.Protocol)
			s.SendException(ctx, wire.ProtocolCore, header.MessageID, wire.NewProtocolException(
				wire.ErrorUnsupportedProtocol, fmt.Sprintf("protocol %d is not supported on this session", header.Protocol)))
			continue
		}

		if berr != nil {
			var unknown wire.ErrUnknownMessage
			if errors.As(berr, &unknown) {
				s.log.Warn("session.inbound.unknown_message_type", "protocol", header.Protocol, "messageType", header.MessageType)
				s.SendException(ctx, header.Protocol, header.MessageID, wire.NewProtocolException(
					wire.ErrorInvalidMessageType, fmt.Sprintf("message type %d is not defined on protocol %d", header.MessageType, header.Protocol)))
			} else {
				s.log.Warn("session.inbound.decode_failed", "protocol", header.Protocol, "messageType", header.MessageType, "err", berr)
				s.SendException(ctx, header.Protocol, header.MessageID, wire.NewProtocolException(
					wire.ErrorInvalidArgument, berr.Error()))
			}
			continue
		}

		if s.onMessageReceived != nil {
			s.onMessageReceived(header.Protocol, header.MessageType)
		}

		frame := wire.DecodedFrame{Header: header, Body: body}

		if header.CorrelationID != 0 {
			var found bool
			if header.MessageType == wire.ProtocolExceptionMessageType {
				code, _ := body["errorCode"].(int32)
				msg, _ := body["errorMessage"].(string)
				found = s.tracker.Fail(header.CorrelationID, wire.NewProtocolException(wire.ErrorCode(code), msg))
			} else {
				found = s.tracker.Deliver(header.CorrelationID, frame)
			}
			if !found {
				s.log.Debug("correlation.orphan", "protocol", header.Protocol, "correlationId", header.CorrelationID)
			}
		}

		if herr := handler.HandleMessage(ctx, header, body); herr != nil {
			s.log.Error("session.handler.error", "protocol", header.Protocol, "messageType", header.MessageType, "err", herr)
			if s.onHandlerError != nil {
				s.onHandlerError(header.Protocol)
			}
			s.SendException(ctx, header.Protocol, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidState, herr.Error()))
		}
	}
}

// Close begins the Closing -> Closed transition: it sends CloseSession
// best-effort, closes the transport, completes every outstanding correlation
// with ErrSessionClosed, and fires OnSessionClosed on every handler in
// registration order. Safe to call more than once; only the first call acts.
func (s *Session) Close(ctx context.Context, reason string) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.closeInternal(reason)
	})
	return s.closeErr
}

func (s *Session) closeInternal(reason string) error {
	s.state.store(StateClosing)

	if s.state.load() != StateClosed {
		header := wire.MessageHeader{Protocol: wire.ProtocolCore, MessageType: wire.CoreMsgCloseSession, MessageFlags: wire.FlagFinalPart}
		body := map[string]any{"reason": reason}
		sendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, _ = s.SendMessage(sendCtx, header, body, nil)
		cancel()
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := s.transport.Close(closeCtx, reason)
	cancel()

	s.tracker.CloseAll()

	for _, h := range s.handlersInOrder {
		h.OnSessionClosed(reason)
	}
	if s.onSessionClosed != nil {
		s.onSessionClosed(reason)
	}

	s.state.store(StateClosed)
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
