package wire

// Version identifies one of the two ETP wire versions this runtime speaks
// side by side. The Session, Codec, HandlerRegistry, and CorrelationTracker
// are version-neutral; only the MessageCatalog and handler set differ.
type Version string

const (
	Version11 Version = "1.1"
	Version12 Version = "1.2"
)

// Role is the side of a protocol a handler plays.
type Role string

const (
	RoleStore    Role = "store"
	RoleCustomer Role = "customer"
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// Well-known protocol ids. Only the ids this repository's catalogs and
// handlers actually use are named; the set is otherwise open per the ETP
// specification.
const (
	ProtocolCore          uint16 = 0
	ProtocolDiscovery     uint16 = 3
	ProtocolStore         uint16 = 4
	ProtocolGrowingObject uint16 = 5
	ProtocolDataspace     uint16 = 24
)

// Core protocol message types. ProtocolExceptionMessageType is shared by
// every protocol, not just Core: spec.md "ProtocolException is always message
// type 1000, regardless of protocol".
const (
	CoreMsgRequestSession uint16 = 1
	CoreMsgOpenSession    uint16 = 2
	CoreMsgCloseSession   uint16 = 3

	ProtocolExceptionMessageType uint16 = 1000
)

// Discovery protocol message types (catalog_v11.go/catalog_v12.go registerDiscovery).
const (
	DiscoveryMsgGetResources         uint16 = 1
	DiscoveryMsgGetResourcesResponse uint16 = 2
)

// Store protocol message types (registerStore).
const (
	StoreMsgGetObject    uint16 = 1
	StoreMsgObject       uint16 = 2
	StoreMsgPutObject    uint16 = 3
	StoreMsgDeleteObject uint16 = 4
)

// GrowingObject protocol message types (registerGrowingObject).
const (
	GrowingObjectMsgGetRange             uint16 = 1
	GrowingObjectMsgObjectFragment       uint16 = 2
	GrowingObjectMsgDeleteRange          uint16 = 3
	GrowingObjectMsgPutPart              uint16 = 4
	GrowingObjectMsgDeletePart           uint16 = 5
	GrowingObjectMsgReplacePartsByRange  uint16 = 6
)

// Dataspace protocol message types (registerDataspace).
const (
	DataspaceMsgPutDataspaces         uint16 = 1
	DataspaceMsgGetDataspaces         uint16 = 2
	DataspaceMsgGetDataspacesResponse uint16 = 3
	DataspaceMsgDeleteDataspaces      uint16 = 4
)

// SupportedProtocol is one entry of a negotiation request/response: a
// protocol id at an agreed version, played from one role, with an optional
// capability record. Equality for dedup purposes uses (Protocol, Role) only.
type SupportedProtocol struct {
	Protocol     uint16
	Version      Version
	Role         Role
	Capabilities Capabilities
}

// DedupKey returns the (protocol, role) pair used for equality/dedup.
func (s SupportedProtocol) DedupKey() ProtocolRole {
	return ProtocolRole{Protocol: s.Protocol, Role: s.Role}
}

// ProtocolRole is the (protocol, role) pair used throughout negotiation and
// registry bookkeeping.
type ProtocolRole struct {
	Protocol uint16
	Role     Role
}

// Capabilities holds known capability keys. The negotiation messages in this
// package's catalogs carry no capability record, so a peer's capabilities are
// never read.
type Capabilities map[string]any

// Well-known capability keys.
const (
	CapabilityMaxResponseCount         = "MaxResponseCount"
	CapabilityMaxTransactionCount       = "MaxTransactionCount"
	CapabilityTransactionTimeoutPeriod = "TransactionTimeoutPeriod"
	CapabilityMaxFrameSize             = "MaxFrameSize"
	CapabilityMaxPartSize               = "MaxPartSize"
)
