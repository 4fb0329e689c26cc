package wire

import (
	"encoding/json"
	"fmt"

	"github.com/linkedin/goavro/v2"
)

// headerSchema is MessageHeader's Avro schema. It is fixed and
// version-neutral: every ETP wire version shares this envelope shape.
const headerSchema = `{
  "type": "record",
  "name": "MessageHeader",
  "namespace": "Energistics.Etp.v12.Datatypes",
  "fields": [
    {"name": "protocol", "type": "int"},
    {"name": "messageType", "type": "int"},
    {"name": "messageId", "type": "long"},
    {"name": "correlationId", "type": "long"},
    {"name": "messageFlags", "type": "int"}
  ]
}`

var headerCodec *goavro.Codec

func init() {
	c, err := goavro.NewCodec(headerSchema)
	if err != nil {
		panic(fmt.Sprintf("wire: invalid header schema: %v", err))
	}
	headerCodec = c
}

func headerToNative(h MessageHeader) map[string]any {
	return map[string]any{
		"protocol":      int32(h.Protocol),
		"messageType":   int32(h.MessageType),
		"messageId":     h.MessageID,
		"correlationId": h.CorrelationID,
		"messageFlags":  int32(h.MessageFlags),
	}
}

func nativeToHeader(native any) (MessageHeader, error) {
	m, ok := native.(map[string]any)
	if !ok {
		return MessageHeader{}, fmt.Errorf("wire: header native value is not a record")
	}
	protocol, _ := m["protocol"].(int32)
	messageType, _ := m["messageType"].(int32)
	messageID, _ := m["messageId"].(int64)
	correlationID, _ := m["correlationId"].(int64)
	flags, _ := m["messageFlags"].(int32)
	return MessageHeader{
		Protocol:      uint16(protocol),
		MessageType:   uint16(messageType),
		MessageID:     messageID,
		CorrelationID: correlationID,
		MessageFlags:  MessageFlags(flags),
	}, nil
}

// ErrUnknownMessage is returned when a header's (protocol, messageType) is
// absent from the catalog in use. The session translates this into an
// outbound ProtocolException; it is never fatal to the connection.
type ErrUnknownMessage struct {
	Key Key
}

func (e ErrUnknownMessage) Error() string {
	return fmt.Sprintf("wire: no catalog entry for protocol=%d messageType=%d", e.Key.Protocol, e.Key.MessageType)
}

// EncodeBinary renders (header, body) as a single Avro-binary frame: the
// header immediately followed by the body, with no length prefix between
// them (the header's fixed schema self-delimits it).
func EncodeBinary(catalog *Catalog, header MessageHeader, body map[string]any) ([]byte, error) {
	entry, ok := catalog.Lookup(header.Protocol, header.MessageType)
	if !ok {
		return nil, ErrUnknownMessage{Key: header.Key()}
	}

	buf, err := headerCodec.BinaryFromNative(nil, headerToNative(header))
	if err != nil {
		return nil, fmt.Errorf("wire: encode header: %w", err)
	}
	buf, err = entry.codec.BinaryFromNative(buf, body)
	if err != nil {
		return nil, fmt.Errorf("wire: encode body %s: %w", entry.Name, err)
	}
	return buf, nil
}

// DecodeBinaryHeader decodes just the header, returning the remaining bytes
// so the caller can inspect the header (to pick a body schema) before
// decoding the body — the same two-step shape the JSON framing requires.
func DecodeBinaryHeader(data []byte) (MessageHeader, []byte, error) {
	native, rest, err := headerCodec.NativeFromBinary(data)
	if err != nil {
		return MessageHeader{}, nil, fmt.Errorf("wire: decode header: %w", err)
	}
	h, err := nativeToHeader(native)
	if err != nil {
		return MessageHeader{}, nil, err
	}
	return h, rest, nil
}

// DecodeBinaryBody decodes a body given its header and catalog, the second
// half of the binary framing's two-step decode.
func DecodeBinaryBody(catalog *Catalog, header MessageHeader, rest []byte) (map[string]any, error) {
	entry, ok := catalog.Lookup(header.Protocol, header.MessageType)
	if !ok {
		return nil, ErrUnknownMessage{Key: header.Key()}
	}
	native, _, err := entry.codec.NativeFromBinary(rest)
	if err != nil {
		return nil, fmt.Errorf("wire: decode body %s: %w", entry.Name, err)
	}
	body, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("wire: decoded body %s is not a record", entry.Name)
	}
	return body, nil
}

// jsonFrame is the two-element array framing used on the wire:
// [header-avro-json, body-avro-json].
type jsonFrame [2]json.RawMessage

// EncodeJSON renders (header, body) as the JSON text-frame framing: a JSON
// array of exactly two Avro-JSON encoded elements.
func EncodeJSON(catalog *Catalog, header MessageHeader, body map[string]any) ([]byte, error) {
	entry, ok := catalog.Lookup(header.Protocol, header.MessageType)
	if !ok {
		return nil, ErrUnknownMessage{Key: header.Key()}
	}

	headerJSON, err := headerCodec.TextualFromNative(nil, headerToNative(header))
	if err != nil {
		return nil, fmt.Errorf("wire: encode header json: %w", err)
	}
	bodyJSON, err := entry.codec.TextualFromNative(nil, body)
	if err != nil {
		return nil, fmt.Errorf("wire: encode body json %s: %w", entry.Name, err)
	}

	frame := jsonFrame{json.RawMessage(headerJSON), json.RawMessage(bodyJSON)}
	return json.Marshal(frame)
}

// DecodeJSONHeader parses the outer two-element array and decodes only the
// header, returning the still-raw body element so the caller can dispatch
// body decoding after inspecting the header (required: body schema choice
// depends on the header).
func DecodeJSONHeader(data []byte) (MessageHeader, json.RawMessage, error) {
	var frame jsonFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return MessageHeader{}, nil, fmt.Errorf("wire: malformed json frame: %w", err)
	}
	if len(frame[0]) == 0 || len(frame[1]) == 0 {
		return MessageHeader{}, nil, fmt.Errorf("wire: json frame must have exactly two elements")
	}

	native, _, err := headerCodec.NativeFromTextual(frame[0])
	if err != nil {
		return MessageHeader{}, nil, fmt.Errorf("wire: decode header json: %w", err)
	}
	h, err := nativeToHeader(native)
	if err != nil {
		return MessageHeader{}, nil, err
	}
	return h, frame[1], nil
}

// DecodeJSONBody decodes the raw body element captured by DecodeJSONHeader.
func DecodeJSONBody(catalog *Catalog, header MessageHeader, rawBody json.RawMessage) (map[string]any, error) {
	entry, ok := catalog.Lookup(header.Protocol, header.MessageType)
	if !ok {
		return nil, ErrUnknownMessage{Key: header.Key()}
	}
	native, _, err := entry.codec.NativeFromTextual(rawBody)
	if err != nil {
		return nil, fmt.Errorf("wire: decode body json %s: %w", entry.Name, err)
	}
	body, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("wire: decoded body %s is not a record", entry.Name)
	}
	return body, nil
}
