// Package wire defines the ETP on-the-wire envelope: the MessageHeader, its
// bitfield flags, the closed set of standard error codes, and the codec that
// turns a (header, body) pair into bytes in either framing.
package wire

import "fmt"

// MessageFlags is the header's bitfield. Values combine with bitwise OR.
type MessageFlags uint32

const (
	FlagNone                  MessageFlags = 0
	FlagMultiPart             MessageFlags = 1 << 0
	FlagFinalPart             MessageFlags = 1 << 1
	FlagCompressed            MessageFlags = 1 << 2
	FlagNoData                MessageFlags = 1 << 3
	FlagMultiPartAndFinalPart MessageFlags = FlagMultiPart | FlagFinalPart
)

func (f MessageFlags) Has(flag MessageFlags) bool { return f&flag == flag }

func (f MessageFlags) String() string {
	if f == FlagNone {
		return "None"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f.Has(FlagMultiPart) {
		add("MultiPart")
	}
	if f.Has(FlagFinalPart) {
		add("FinalPart")
	}
	if f.Has(FlagCompressed) {
		add("Compressed")
	}
	if f.Has(FlagNoData) {
		add("NoData")
	}
	return s
}

// MessageHeader is the uniform envelope carried by every ETP message, on both
// the binary and JSON framings.
type MessageHeader struct {
	Protocol      uint16       `json:"protocol"`
	MessageType   uint16       `json:"messageType"`
	MessageID     int64        `json:"messageId"`
	CorrelationID int64        `json:"correlationId"`
	MessageFlags  MessageFlags `json:"messageFlags"`
}

// IsRequestOrNotification reports whether this header initiates its own
// exchange, i.e. correlationId == 0 (spec invariant: "correlationId == 0 iff
// the message is a request or unsolicited notification").
func (h MessageHeader) IsRequestOrNotification() bool { return h.CorrelationID == 0 }

func (h MessageHeader) String() string {
	return fmt.Sprintf("protocol=%d messageType=%d messageId=%d correlationId=%d flags=%s",
		h.Protocol, h.MessageType, h.MessageID, h.CorrelationID, h.MessageFlags)
}

// Key identifies a catalog entry: the (protocol, messageType) pair that
// uniquely selects one record schema.
type Key struct {
	Protocol    uint16
	MessageType uint16
}

func (h MessageHeader) Key() Key { return Key{Protocol: h.Protocol, MessageType: h.MessageType} }
