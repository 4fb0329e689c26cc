package wire

// Encoding selects the session's wire framing, latched at open time from the
// etp-encoding handshake header.
type Encoding int

const (
	EncodingBinary Encoding = iota
	EncodingJSON
)

// Header name/value pairs used to negotiate the framing during the
// WebSocket upgrade. These are plain data here; reading/writing the actual
// HTTP header is the transport's job (spec.md: "global settings for
// encoding header name/value -> inject as configuration").
const (
	EncodingHeaderName     = "etp-encoding"
	EncodingHeaderBinary   = "etp+binary"
	EncodingHeaderJSON     = "etp+json"
)

// ParseEncodingHeader maps the handshake header value to an Encoding,
// defaulting to binary per spec.md §6 ("etp-encoding: etp+binary default").
func ParseEncodingHeader(value string) Encoding {
	if value == EncodingHeaderJSON {
		return EncodingJSON
	}
	return EncodingBinary
}

func (e Encoding) HeaderValue() string {
	if e == EncodingJSON {
		return EncodingHeaderJSON
	}
	return EncodingHeaderBinary
}

func (e Encoding) String() string { return e.HeaderValue() }

// Encode renders (header, body) using the session's negotiated framing.
func Encode(enc Encoding, catalog *Catalog, header MessageHeader, body map[string]any) ([]byte, error) {
	switch enc {
	case EncodingJSON:
		return EncodeJSON(catalog, header, body)
	default:
		return EncodeBinary(catalog, header, body)
	}
}

// DecodedFrame is the result of fully decoding one wire frame: a header plus
// its native-typed body record.
type DecodedFrame struct {
	Header MessageHeader
	Body   map[string]any
}

// Decode fully decodes one frame (header + body) in one step. Session does
// not call it: its receive loop uses the two-step Decode*Header/Decode*Body
// functions directly so it can classify an unknown protocol or message type
// from the header before attempting a body decode.
func Decode(enc Encoding, catalog *Catalog, data []byte) (DecodedFrame, error) {
	switch enc {
	case EncodingJSON:
		header, rawBody, err := DecodeJSONHeader(data)
		if err != nil {
			return DecodedFrame{}, err
		}
		body, err := DecodeJSONBody(catalog, header, rawBody)
		if err != nil {
			return DecodedFrame{}, err
		}
		return DecodedFrame{Header: header, Body: body}, nil
	default:
		header, rest, err := DecodeBinaryHeader(data)
		if err != nil {
			return DecodedFrame{}, err
		}
		body, err := DecodeBinaryBody(catalog, header, rest)
		if err != nil {
			return DecodedFrame{}, err
		}
		return DecodedFrame{Header: header, Body: body}, nil
	}
}

// DecodeHeaderOnly decodes just the header in the given framing and discards
// the body bytes. Session does not call it; its receive loop calls
// DecodeJSONHeader/DecodeBinaryHeader itself.
func DecodeHeaderOnly(enc Encoding, data []byte) (MessageHeader, error) {
	switch enc {
	case EncodingJSON:
		h, _, err := DecodeJSONHeader(data)
		return h, err
	default:
		h, _, err := DecodeBinaryHeader(data)
		return h, err
	}
}
