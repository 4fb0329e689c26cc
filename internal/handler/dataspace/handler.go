// Package dataspace implements the Dataspace protocol (24) handler, both
// roles (spec.md §4.6.5): PutDataspaces, GetDataspaces, DeleteDataspaces.
package dataspace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/energistics/etp/internal/proto"
	"github.com/energistics/etp/wire"
)

const (
	CustomerContractID proto.ContractID = "dataspace.customer"
	StoreContractID    proto.ContractID = "dataspace.store"
)

// Dataspace is one catalog entry. StoreLastWrite is only meaningful on a
// v1.2 session (the v1.1 catalog drops the field on encode).
type Dataspace struct {
	URI            string
	Path           string
	StoreLastWrite int64
	HasLastWrite   bool
}

func dataspaceToNative(d Dataspace) map[string]any {
	m := map[string]any{"uri": d.URI, "path": d.Path}
	if d.HasLastWrite {
		m["storeLastWrite"] = map[string]any{"long": d.StoreLastWrite}
	}
	return m
}

func dataspaceFromNative(v any) Dataspace {
	m, ok := v.(map[string]any)
	if !ok {
		return Dataspace{}
	}
	d := Dataspace{}
	d.URI, _ = m["uri"].(string)
	d.Path, _ = m["path"].(string)
	if raw, ok := m["storeLastWrite"].(map[string]any); ok {
		if l, ok := raw["long"].(int64); ok {
			d.StoreLastWrite = l
			d.HasLastWrite = true
		}
	}
	return d
}

// Backing is the store-side dataspace collection a StoreHandler dispatches
// against.
type Backing interface {
	Put(ctx context.Context, dataspaces []Dataspace) error
	List(ctx context.Context, lastWriteFilter int64, hasFilter bool) ([]Dataspace, error)
	Delete(ctx context.Context, uris []string) error
}

// CustomerHandler issues PutDataspaces/GetDataspaces/DeleteDataspaces via
// Session.Call; replies arrive correlated, so HandleMessage here only
// guards against protocol misuse.
type CustomerHandler struct {
	log     *slog.Logger
	session proto.SessionAPI
}

func NewCustomer(log *slog.Logger) *CustomerHandler { return &CustomerHandler{log: log} }

func (h *CustomerHandler) Protocol() uint16               { return wire.ProtocolDataspace }
func (h *CustomerHandler) ContractID() proto.ContractID   { return CustomerContractID }
func (h *CustomerHandler) LocalRole() wire.Role           { return wire.RoleCustomer }
func (h *CustomerHandler) RemoteRole() wire.Role          { return wire.RoleStore }
func (h *CustomerHandler) BindSession(s proto.SessionAPI) { h.session = s }
func (h *CustomerHandler) OnRegistered()                  {}
func (h *CustomerHandler) OnSessionOpened([]wire.SupportedProtocol, []wire.SupportedProtocol) {}
func (h *CustomerHandler) OnSessionClosed(string)                                             {}

func (h *CustomerHandler) HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	if header.MessageType != wire.DataspaceMsgGetDataspacesResponse {
		return fmt.Errorf("dataspace: customer side received unexpected message type %d", header.MessageType)
	}
	return nil
}

// StoreHandler answers PutDataspaces/GetDataspaces/DeleteDataspaces.
type StoreHandler struct {
	log     *slog.Logger
	session proto.SessionAPI
	backing Backing
}

func NewStore(log *slog.Logger, backing Backing) *StoreHandler {
	return &StoreHandler{log: log, backing: backing}
}

func (h *StoreHandler) Protocol() uint16               { return wire.ProtocolDataspace }
func (h *StoreHandler) ContractID() proto.ContractID   { return StoreContractID }
func (h *StoreHandler) LocalRole() wire.Role           { return wire.RoleStore }
func (h *StoreHandler) RemoteRole() wire.Role          { return wire.RoleCustomer }
func (h *StoreHandler) BindSession(s proto.SessionAPI) { h.session = s }
func (h *StoreHandler) OnRegistered()                  {}
func (h *StoreHandler) OnSessionOpened([]wire.SupportedProtocol, []wire.SupportedProtocol) {}
func (h *StoreHandler) OnSessionClosed(string)                                             {}

func (h *StoreHandler) HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	switch header.MessageType {
	case wire.DataspaceMsgPutDataspaces:
		return h.handlePut(ctx, header, body)
	case wire.DataspaceMsgGetDataspaces:
		return h.handleGet(ctx, header, body)
	case wire.DataspaceMsgDeleteDataspaces:
		return h.handleDelete(ctx, header, body)
	default:
		return fmt.Errorf("dataspace: store side received unexpected message type %d", header.MessageType)
	}
}

func (h *StoreHandler) handlePut(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	raw, _ := body["dataspaces"].([]any)
	dataspaces := make([]Dataspace, 0, len(raw))
	for _, r := range raw {
		dataspaces = append(dataspaces, dataspaceFromNative(r))
	}
	if err := h.backing.Put(ctx, dataspaces); err != nil {
		h.session.SendException(ctx, wire.ProtocolDataspace, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
	}
	return nil
}

func (h *StoreHandler) handleGet(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	var filter int64
	var hasFilter bool
	if raw, ok := body["storeLastWriteFilter"].(map[string]any); ok {
		if l, ok := raw["long"].(int64); ok {
			filter, hasFilter = l, true
		}
	}

	dataspaces, err := h.backing.List(ctx, filter, hasFilter)
	if err != nil {
		h.session.SendException(ctx, wire.ProtocolDataspace, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
		return nil
	}

	native := make([]any, 0, len(dataspaces))
	for _, d := range dataspaces {
		native = append(native, dataspaceToNative(d))
	}

	replyHeader := wire.MessageHeader{
		Protocol: wire.ProtocolDataspace, MessageType: wire.DataspaceMsgGetDataspacesResponse,
		CorrelationID: header.MessageID, MessageFlags: wire.FlagFinalPart,
	}
	_, err = h.session.SendMessage(ctx, replyHeader, map[string]any{"dataspaces": native}, nil)
	return err
}

func (h *StoreHandler) handleDelete(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	raw, _ := body["uris"].([]any)
	uris := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			uris = append(uris, s)
		}
	}
	if err := h.backing.Delete(ctx, uris); err != nil {
		h.session.SendException(ctx, wire.ProtocolDataspace, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
	}
	return nil
}
