package wire

import (
	"fmt"

	"github.com/linkedin/goavro/v2"
)

// Direction documents who may originate a (protocol, messageType) record.
type Direction int

const (
	DirectionRequest Direction = iota
	DirectionResponse
	DirectionNotification
	DirectionBidirectional
)

func (d Direction) String() string {
	switch d {
	case DirectionRequest:
		return "request"
	case DirectionResponse:
		return "response"
	case DirectionNotification:
		return "notification"
	default:
		return "bidirectional"
	}
}

// CatalogEntry is one compiled (protocol, messageType) -> schema binding.
type CatalogEntry struct {
	Key         Key
	Name        string
	Direction   Direction
	Schema      string
	codec       *goavro.Codec
}

// Catalog is the compile-time-known table from (protocolId, messageTypeId) to
// typed-record schema. Lookup is O(1); building the table is the only place a
// new protocol/message type needs to be declared.
type Catalog struct {
	version Version
	byKey   map[Key]*CatalogEntry
}

// NewCatalog constructs an empty catalog for the given wire version.
func NewCatalog(version Version) *Catalog {
	return &Catalog{version: version, byKey: make(map[Key]*CatalogEntry)}
}

// Version reports which wire version this catalog was built for.
func (c *Catalog) Version() Version { return c.version }

// Register compiles one schema and adds it to the catalog. It panics on a
// malformed schema or a duplicate key, both of which are programmer errors
// caught at catalog-construction time (process start), never at runtime.
func (c *Catalog) Register(protocol, messageType uint16, name string, dir Direction, schema string) {
	key := Key{Protocol: protocol, MessageType: messageType}
	if _, exists := c.byKey[key]; exists {
		panic(fmt.Sprintf("wire: duplicate catalog entry for %+v (%s)", key, name))
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		panic(fmt.Sprintf("wire: invalid schema for %s (%+v): %v", name, key, err))
	}
	c.byKey[key] = &CatalogEntry{Key: key, Name: name, Direction: dir, Schema: schema, codec: codec}
}

// Lookup returns the entry for (protocol, messageType), or false if the pair
// is not in this catalog. ProtocolExceptionMessageType resolves to the
// ProtocolException entry registered under Core on every protocol.
func (c *Catalog) Lookup(protocol, messageType uint16) (*CatalogEntry, bool) {
	e, ok := c.byKey[Key{Protocol: protocol, MessageType: messageType}]
	if !ok && messageType == ProtocolExceptionMessageType {
		e, ok = c.byKey[Key{Protocol: ProtocolCore, MessageType: ProtocolExceptionMessageType}]
	}
	return e, ok
}

// LookupByName finds the entry for a schema name, mainly for send helpers
// that know the logical message name rather than its numeric type.
func (c *Catalog) LookupByName(protocol uint16, name string) (*CatalogEntry, bool) {
	for _, e := range c.byKey {
		if e.Key.Protocol == protocol && e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// HasProtocol reports whether any message type is registered for protocol.
func (c *Catalog) HasProtocol(protocol uint16) bool {
	for k := range c.byKey {
		if k.Protocol == protocol {
			return true
		}
	}
	return false
}
