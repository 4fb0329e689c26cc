// Package discovery implements the Discovery protocol (3) handler:
// GetResources/GetResourcesResponse, a minimal second protocol beyond
// Store/GrowingObject included to prove the catalog/dispatch pattern
// generalizes (spec.md §4.6.2).
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/energistics/etp/internal/proto"
	"github.com/energistics/etp/wire"
)

// Resource is one entry of a GetResourcesResponse.
type Resource struct {
	URI          string
	Name         string
	ResourceType string
}

// Lister resolves a URI to the resources beneath it, store-side.
type Lister interface {
	ListResources(ctx context.Context, uri string) ([]Resource, error)
}

const customerContractID proto.ContractID = "discovery.customer"
const storeContractID proto.ContractID = "discovery.store"

// CustomerHandler issues GetResources calls and receives the
// GetResourcesResponse parts back via Session.Call; it does not need
// HandleMessage to do anything since replies are correlation-tracked.
type CustomerHandler struct {
	log     *slog.Logger
	session proto.SessionAPI
}

func NewCustomer(log *slog.Logger) *CustomerHandler { return &CustomerHandler{log: log} }

func (h *CustomerHandler) Protocol() uint16             { return wire.ProtocolDiscovery }
func (h *CustomerHandler) ContractID() proto.ContractID { return customerContractID }
func (h *CustomerHandler) LocalRole() wire.Role         { return wire.RoleCustomer }
func (h *CustomerHandler) RemoteRole() wire.Role        { return wire.RoleStore }
func (h *CustomerHandler) BindSession(s proto.SessionAPI) { h.session = s }
func (h *CustomerHandler) OnRegistered()                  {}
func (h *CustomerHandler) OnSessionOpened([]wire.SupportedProtocol, []wire.SupportedProtocol) {}
func (h *CustomerHandler) OnSessionClosed(string)                                             {}

// HandleMessage is a no-op here: GetResourcesResponse replies arrive
// correlated and are delivered to whoever called GetResources via
// Session.Call, not through this hook.
func (h *CustomerHandler) HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	if header.MessageType != wire.DiscoveryMsgGetResourcesResponse {
		return fmt.Errorf("discovery: customer side received unexpected message type %d", header.MessageType)
	}
	return nil
}

// StoreHandler answers GetResources with one GetResourcesResponse part per
// resource, calling Lister.ListResources and marking the final part with
// FlagFinalPart (FlagMultiPartAndFinalPart when more than one part exists).
type StoreHandler struct {
	log     *slog.Logger
	session proto.SessionAPI
	lister  Lister
}

func NewStore(log *slog.Logger, lister Lister) *StoreHandler {
	return &StoreHandler{log: log, lister: lister}
}

func (h *StoreHandler) Protocol() uint16             { return wire.ProtocolDiscovery }
func (h *StoreHandler) ContractID() proto.ContractID { return storeContractID }
func (h *StoreHandler) LocalRole() wire.Role         { return wire.RoleStore }
func (h *StoreHandler) RemoteRole() wire.Role        { return wire.RoleCustomer }
func (h *StoreHandler) BindSession(s proto.SessionAPI) { h.session = s }
func (h *StoreHandler) OnRegistered()                  {}
func (h *StoreHandler) OnSessionOpened([]wire.SupportedProtocol, []wire.SupportedProtocol) {}
func (h *StoreHandler) OnSessionClosed(string)                                             {}

func (h *StoreHandler) HandleMessage(ctx context.Context, header wire.MessageHeader, body map[string]any) error {
	if header.MessageType != wire.DiscoveryMsgGetResources {
		return fmt.Errorf("discovery: store side received unexpected message type %d", header.MessageType)
	}

	uri, _ := body["uri"].(string)
	resources, err := h.lister.ListResources(ctx, uri)
	if err != nil {
		h.session.SendException(ctx, wire.ProtocolDiscovery, header.MessageID, wire.NewProtocolException(
			wire.ErrorInvalidArgument, err.Error()))
		return nil
	}

	if len(resources) == 0 {
		replyHeader := wire.MessageHeader{
			Protocol:      wire.ProtocolDiscovery,
			MessageType:   wire.DiscoveryMsgGetResourcesResponse,
			CorrelationID: header.MessageID,
			MessageFlags:  wire.FlagFinalPart,
		}
		_, err := h.session.SendMessage(ctx, replyHeader, map[string]any{
			"resource": map[string]any{"uri": uri, "name": "", "resourceType": ""},
		}, nil)
		return err
	}

	for i, r := range resources {
		flags := wire.FlagFinalPart
		switch {
		case len(resources) == 1:
			flags = wire.FlagFinalPart
		case i == len(resources)-1:
			flags = wire.FlagMultiPartAndFinalPart
		default:
			flags = wire.FlagMultiPart
		}
		replyHeader := wire.MessageHeader{
			Protocol:      wire.ProtocolDiscovery,
			MessageType:   wire.DiscoveryMsgGetResourcesResponse,
			CorrelationID: header.MessageID,
			MessageFlags:  flags,
		}
		body := map[string]any{"resource": map[string]any{"uri": r.URI, "name": r.Name, "resourceType": r.ResourceType}}
		if _, err := h.session.SendMessage(ctx, replyHeader, body, nil); err != nil {
			return err
		}
	}
	return nil
}
