// Package growingobject implements the GrowingObject protocol (5) handler,
// both roles (spec.md §4.6.4): GetRange, DeleteRange, PutPart, DeletePart,
// ReplacePartsByRange, with discriminated-union range endpoints. The
// uom/depthDatum annotations are read from requests and PutPart stores them
// with the part, but ObjectFragment replies and the parts written by
// ReplacePartsByRange do not carry them, and range matching ignores them.
package growingobject

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/energistics/etp/internal/proto"
	"github.com/energistics/etp/wire"
)

const (
	CustomerContractID proto.ContractID = "growingobject.customer"
	StoreContractID    proto.ContractID = "growingobject.store"
)

// IndexValue is one endpoint of a range, or one part's position: either a
// long (discrete index), a double (continuous depth/measure), or unset
// (open-ended range bound). Exactly zero or one of Long/Double is non-nil.
type IndexValue struct {
	Long   *int64
	Double *float64
}

func indexValueToNative(v IndexValue) any {
	switch {
	case v.Long != nil:
		return map[string]any{"long": *v.Long}
	case v.Double != nil:
		return map[string]any{"double": *v.Double}
	default:
		return nil
	}
}

func indexValueFromNative(v any) IndexValue {
	m, ok := v.(map[string]any)
	if !ok {
		return IndexValue{}
	}
	if l, ok := m["long"].(int64); ok {
		return IndexValue{Long: &l}
	}
	if d, ok := m["double"].(float64); ok {
		return IndexValue{Double: &d}
	}
	return IndexValue{}
}

func stringUnionToNative(s string, present bool) any {
	if !present {
		return nil
	}
	return map[string]any{"string": s}
}

func stringUnionFromNative(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m["string"].(string)
	return s, ok
}

// Range is the common (uri, startIndex, endIndex, uom, depthDatum) shape
// shared by GetRange and DeleteRange.
type Range struct {
	URI        string
	Start      IndexValue
	End        IndexValue
	UOM        string
	HasUOM     bool
	DepthDatum string
	HasDatum   bool
}

func rangeFromBody(body map[string]any) Range {
	r := Range{URI: uriOf(body)}
	r.Start = indexValueFromNative(body["startIndex"])
	r.End = indexValueFromNative(body["endIndex"])
	r.UOM, r.HasUOM = stringUnionFromNative(body["uom"])
	r.DepthDatum, r.HasDatum = stringUnionFromNative(body["depthDatum"])
	return r
}

func uriOf(body map[string]any) string {
	uri, _ := body["uri"].(string)
	return uri
}

// Part is one fragment of a growing object, as carried by ObjectFragment,
// PutPart, and ReplacePartsByRange.
type Part struct {
	URI   string
	Data  []byte
	Index IndexValue
}

// Backing is the store-side growing-object collection a StoreHandler
// dispatches against.
type Backing interface {
	GetRange(ctx context.Context, r Range) ([]Part, error)
	DeleteRange(ctx context.Context, r Range) error
	PutPart(ctx context.Context, uri string, index IndexValue, data []byte, uom string, hasUOM bool, depthDatum string, hasDatum bool) error
	DeletePart(ctx context.Context, uri string, index IndexValue) error
	ReplacePartsByRange(ctx context.Context, r Range, parts []Part) error
}

// CustomerHandler issues range/part requests via Session.Call; replies
// arrive correlated, so HandleMessage here only guards against misuse.
type CustomerHandler struct {
	log     *slog.Logger
	session proto.SessionAPI
}

func NewCustomer(log *slog.Logger) *CustomerHandler { return &CustomerHandler{log: log} }

func (h *CustomerHandler) Protocol() uint16               { return wire.ProtocolGrowingObject }
func (h *CustomerHandler) ContractID() proto.ContractID   { return CustomerContractID }
func (h *CustomerHandler) LocalRole() wire.Role           { return wire.RoleCustomer }
func (h *CustomerHandler) RemoteRole() wire.Role          { return wire.RoleStore }
func (h *CustomerHandler) BindSession(s proto.SessionAPI) { h.session = s }
func (h *CustomerHandler) OnRegistered()                  {}
func (h *CustomerHandler) OnSessionOpened([]wire.SupportedProtocol, []wire.SupportedProtocol) {}
func (h *CustomerHandler) OnSessionClosed(string)                                             {}

func (h *CustomerHandler) HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	if header.MessageType != wire.GrowingObjectMsgObjectFragment {
		return fmt.Errorf("growingobject: customer side received unexpected message type %d", header.MessageType)
	}
	return nil
}

// StoreHandler answers GetRange/DeleteRange/PutPart/DeletePart/ReplacePartsByRange.
type StoreHandler struct {
	log     *slog.Logger
	session proto.SessionAPI
	backing Backing
}

func NewStore(log *slog.Logger, backing Backing) *StoreHandler {
	return &StoreHandler{log: log, backing: backing}
}

func (h *StoreHandler) Protocol() uint16               { return wire.ProtocolGrowingObject }
func (h *StoreHandler) ContractID() proto.ContractID   { return StoreContractID }
func (h *StoreHandler) LocalRole() wire.Role           { return wire.RoleStore }
func (h *StoreHandler) RemoteRole() wire.Role          { return wire.RoleCustomer }
func (h *StoreHandler) BindSession(s proto.SessionAPI) { h.session = s }
func (h *StoreHandler) OnRegistered()                  {}
func (h *StoreHandler) OnSessionOpened([]wire.SupportedProtocol, []wire.SupportedProtocol) {}
func (h *StoreHandler) OnSessionClosed(string)                                             {}

func (h *StoreHandler) HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	switch header.MessageType {
	case wire.GrowingObjectMsgGetRange:
		return h.handleGetRange(ctx, header, body)
	case wire.GrowingObjectMsgDeleteRange:
		return h.handleDeleteRange(ctx, header, body)
	case wire.GrowingObjectMsgPutPart:
		return h.handlePutPart(ctx, header, body)
	case wire.GrowingObjectMsgDeletePart:
		return h.handleDeletePart(ctx, header, body)
	case wire.GrowingObjectMsgReplacePartsByRange:
		return h.handleReplacePartsByRange(ctx, header, body)
	default:
		return fmt.Errorf("growingobject: store side received unexpected message type %d", header.MessageType)
	}
}

func (h *StoreHandler) handleGetRange(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	r := rangeFromBody(body)
	parts, err := h.backing.GetRange(ctx, r)
	if err != nil {
		h.session.SendException(ctx, wire.ProtocolGrowingObject, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
		return nil
	}

	if len(parts) == 0 {
		replyHeader := wire.MessageHeader{
			Protocol: wire.ProtocolGrowingObject, MessageType: wire.GrowingObjectMsgObjectFragment,
			CorrelationID: header.MessageID, MessageFlags: wire.FlagFinalPart | wire.FlagNoData,
		}
		_, err := h.session.SendMessage(ctx, replyHeader, map[string]any{"uri": r.URI, "data": []byte{}, "index": indexValueToNative(IndexValue{})}, nil)
		return err
	}

	for i, p := range parts {
		flags := wire.FlagFinalPart
		switch {
		case len(parts) == 1:
			flags = wire.FlagFinalPart
		case i == len(parts)-1:
			flags = wire.FlagMultiPartAndFinalPart
		default:
			flags = wire.FlagMultiPart
		}
		replyHeader := wire.MessageHeader{
			Protocol: wire.ProtocolGrowingObject, MessageType: wire.GrowingObjectMsgObjectFragment,
			CorrelationID: header.MessageID, MessageFlags: flags,
		}
		replyBody := map[string]any{"uri": p.URI, "data": p.Data, "index": indexValueToNative(p.Index)}
		if _, err := h.session.SendMessage(ctx, replyHeader, replyBody, nil); err != nil {
			return err
		}
	}
	return nil
}

func (h *StoreHandler) handleDeleteRange(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	r := rangeFromBody(body)
	if err := h.backing.DeleteRange(ctx, r); err != nil {
		h.session.SendException(ctx, wire.ProtocolGrowingObject, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
	}
	return nil
}

func (h *StoreHandler) handlePutPart(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	uri := uriOf(body)
	index := indexValueFromNative(body["index"])
	data, _ := body["data"].([]byte)
	uom, hasUOM := stringUnionFromNative(body["uom"])
	datum, hasDatum := stringUnionFromNative(body["depthDatum"])

	if err := h.backing.PutPart(ctx, uri, index, data, uom, hasUOM, datum, hasDatum); err != nil {
		h.session.SendException(ctx, wire.ProtocolGrowingObject, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
	}
	return nil
}

func (h *StoreHandler) handleDeletePart(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	uri := uriOf(body)
	index := indexValueFromNative(body["index"])
	if err := h.backing.DeletePart(ctx, uri, index); err != nil {
		h.session.SendException(ctx, wire.ProtocolGrowingObject, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
	}
	return nil
}

func (h *StoreHandler) handleReplacePartsByRange(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	r := rangeFromBody(body)

	rawParts, _ := body["parts"].([]any)
	parts := make([]Part, 0, len(rawParts))
	for _, raw := range rawParts {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		data, _ := m["data"].([]byte)
		parts = append(parts, Part{URI: uriOf(m), Data: data, Index: indexValueFromNative(m["index"])})
	}

	if err := h.backing.ReplacePartsByRange(ctx, r, parts); err != nil {
		h.session.SendException(ctx, wire.ProtocolGrowingObject, header.MessageID, wire.NewProtocolException(wire.ErrorInvalidArgument, err.Error()))
	}
	return nil
}
