// Package store implements the Store protocol (4) handler, both roles
// (spec.md §4.6.3): GetObject/Object, PutObject, DeleteObject.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/energistics/etp/internal/proto"
	"github.com/energistics/etp/wire"
)

const (
	CustomerContractID proto.ContractID = "store.customer"
	StoreContractID    proto.ContractID = "store.store"
)

// ObjectStore is the store-side backing collection a StoreHandler dispatches
// against. A concrete implementation may be in-memory or Postgres-backed
// (see internal/audit for the sibling session-audit persistence choice).
type ObjectStore interface {
	Get(ctx context.Context, uri string) (data []byte, contentType string, err error)
	Put(ctx context.Context, uri string, data []byte, contentType string) error
	Delete(ctx context.Context, uri string) error
}

// ErrNotFound is returned by an ObjectStore.Get for an unknown uri; the
// StoreHandler translates it into a NotSupported ProtocolException.
var ErrNotFound = fmt.Errorf("store: object not found")

// CustomerHandler issues GetObject/PutObject/DeleteObject via Session.Call
// and exposes typed wrappers; replies arrive correlated, so HandleMessage
// here only guards against protocol misuse.
type CustomerHandler struct {
	log     *slog.Logger
	session proto.SessionAPI
}

func NewCustomer(log *slog.Logger) *CustomerHandler { return &CustomerHandler{log: log} }

func (h *CustomerHandler) Protocol() uint16               { return wire.ProtocolStore }
func (h *CustomerHandler) ContractID() proto.ContractID   { return CustomerContractID }
func (h *CustomerHandler) LocalRole() wire.Role           { return wire.RoleCustomer }
func (h *CustomerHandler) RemoteRole() wire.Role          { return wire.RoleStore }
func (h *CustomerHandler) BindSession(s proto.SessionAPI) { h.session = s }
func (h *CustomerHandler) OnRegistered()                  {}
func (h *CustomerHandler) OnSessionOpened([]wire.SupportedProtocol, []wire.SupportedProtocol) {}
func (h *CustomerHandler) OnSessionClosed(string)                                             {}

func (h *CustomerHandler) HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	if header.MessageType != wire.StoreMsgObject {
		return fmt.Errorf("store: customer side received unexpected message type %d", header.MessageType)
	}
	return nil
}

// StoreHandler answers GetObject/PutObject/DeleteObject against backing.
type StoreHandler struct {
	log     *slog.Logger
	session proto.SessionAPI
	backing ObjectStore
}

func NewStore(log *slog.Logger, backing ObjectStore) *StoreHandler {
	return &StoreHandler{log: log, backing: backing}
}

func (h *StoreHandler) Protocol() uint16               { return wire.ProtocolStore }
func (h *StoreHandler) ContractID() proto.ContractID   { return StoreContractID }
func (h *StoreHandler) LocalRole() wire.Role           { return wire.RoleStore }
func (h *StoreHandler) RemoteRole() wire.Role          { return wire.RoleCustomer }
func (h *StoreHandler) BindSession(s proto.SessionAPI) { h.session = s }
func (h *StoreHandler) OnRegistered()                  {}
func (h *StoreHandler) OnSessionOpened([]wire.SupportedProtocol, []wire.SupportedProtocol) {}
func (h *StoreHandler) OnSessionClosed(string)                                             {}

func (h *StoreHandler) HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	switch header.MessageType {
	case wire.StoreMsgGetObject:
		return h.handleGetObject(ctx, header, body)
	case wire.StoreMsgPutObject:
		return h.handlePutObject(ctx, header, body)
	case wire.StoreMsgDeleteObject:
		return h.handleDeleteObject(ctx, header, body)
	default:
		return fmt.Errorf("store: store side received unexpected message type %d", header.MessageType)
	}
}

func (h *StoreHandler) handleGetObject(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	uri, _ := body["uri"].(string)

	data, contentType, err := h.backing.Get(ctx, uri)
	if err != nil {
		code := wire.ErrorInvalidArgument
		if err == ErrNotFound {
			code = wire.ErrorNotSupported
		}
		h.session.SendException(ctx, wire.ProtocolStore, header.MessageID, wire.NewProtocolException(code, err.Error()))
		return nil
	}

	replyHeader := wire.MessageHeader{
		Protocol:      wire.ProtocolStore,
		MessageType:   wire.StoreMsgObject,
		CorrelationID: header.MessageID,
		MessageFlags:  wire.FlagFinalPart,
	}
	_, err = h.session.SendMessage(ctx, replyHeader, map[string]any{
		"uri": uri, "data": data, "contentType": contentType,
	}, nil)
	return err
}

func (h *StoreHandler) handlePutObject(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	uri, _ := body["uri"].(string)
	data, _ := body["data"].([]byte)
	contentType, _ := body["contentType"].(string)

	if err := h.backing.Put(ctx, uri, data, contentType); err != nil {
		h.session.SendException(ctx, wire.ProtocolStore, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
	}
	return nil
}

func (h *StoreHandler) handleDeleteObject(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	uri, _ := body["uri"].(string)

	if err := h.backing.Delete(ctx, uri); err != nil {
		code := wire.ErrorInvalidArgument
		if err == ErrNotFound {
			code = wire.ErrorNotSupported
		}
		h.session.SendException(ctx, wire.ProtocolStore, header.MessageID, wire.NewProtocolException(code, err.Error()))
	}
	return nil
}
