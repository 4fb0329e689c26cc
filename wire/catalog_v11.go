package wire

// BuildV11 declares the v1.1 message catalog. Adding a protocol means adding
// one call list here; nothing in the dispatch path needs to change.
func BuildV11() *Catalog {
	c := NewCatalog(Version11)
	registerCore(c)
	registerDiscovery(c)
	registerStore(c)
	registerGrowingObject(c)
	registerDataspace(c, false)
	return c
}

func registerCore(c *Catalog) {
	c.Register(ProtocolCore, 1, "RequestSession", DirectionRequest, `{
		"type": "record", "name": "RequestSession", "namespace": "Energistics.Etp.v12.Protocol.Core",
		"fields": [
			{"name": "applicationName", "type": "string"},
			{"name": "applicationVersion", "type": "string"},
			{"name": "requestedProtocols", "type": {"type": "array", "items": {
				"type": "record", "name": "SupportedProtocol",
				"fields": [
					{"name": "protocol", "type": "int"},
					{"name": "protocolVersion", "type": "string"},
					{"name": "role", "type": "string"}
				]
			}}}
		]
	}`)

	c.Register(ProtocolCore, 2, "OpenSession", DirectionResponse, `{
		"type": "record", "name": "OpenSession", "namespace": "Energistics.Etp.v12.Protocol.Core",
		"fields": [
			{"name": "sessionId", "type": "string"},
			{"name": "supportedProtocols", "type": {"type": "array", "items": {
				"type": "record", "name": "SupportedProtocol",
				"fields": [
					{"name": "protocol", "type": "int"},
					{"name": "protocolVersion", "type": "string"},
					{"name": "role", "type": "string"}
				]
			}}}
		]
	}`)

	c.Register(ProtocolCore, 3, "CloseSession", DirectionNotification, `{
		"type": "record", "name": "CloseSession", "namespace": "Energistics.Etp.v12.Protocol.Core",
		"fields": [
			{"name": "reason", "type": "string"}
		]
	}`)

	c.Register(ProtocolCore, 1000, "ProtocolException", DirectionBidirectional, protocolExceptionSchema(false))
}

// protocolExceptionSchema returns the ProtocolException record schema.
// v1.2 adds a per-request error-collection map; v1.1 does not.
func protocolExceptionSchema(withSubErrors bool) string {
	if !withSubErrors {
		return `{
			"type": "record", "name": "ProtocolException", "namespace": "Energistics.Etp.v12.Datatypes",
			"fields": [
				{"name": "errorCode", "type": "int"},
				{"name": "errorMessage", "type": "string"}
			]
		}`
	}
	return `{
		"type": "record", "name": "ProtocolException", "namespace": "Energistics.Etp.v12.Datatypes",
		"fields": [
			{"name": "errorCode", "type": "int"},
			{"name": "errorMessage", "type": "string"},
			{"name": "errors", "type": {"type": "map", "values": {
				"type": "record", "name": "ErrorInfo",
				"fields": [
					{"name": "errorCode", "type": "int"},
					{"name": "errorMessage", "type": "string"}
				]
			}}, "default": {}}
		]
	}`
}

func registerDiscovery(c *Catalog) {
	c.Register(ProtocolDiscovery, 1, "GetResources", DirectionRequest, `{
		"type": "record", "name": "GetResources", "namespace": "Energistics.Etp.v12.Protocol.Discovery",
		"fields": [
			{"name": "uri", "type": "string"}
		]
	}`)

	c.Register(ProtocolDiscovery, 2, "GetResourcesResponse", DirectionResponse, `{
		"type": "record", "name": "GetResourcesResponse", "namespace": "Energistics.Etp.v12.Protocol.Discovery",
		"fields": [
			{"name": "resource", "type": {
				"type": "record", "name": "Resource",
				"fields": [
					{"name": "uri", "type": "string"},
					{"name": "name", "type": "string"},
					{"name": "resourceType", "type": "string"}
				]
			}}
		]
	}`)
}

func registerStore(c *Catalog) {
	c.Register(ProtocolStore, 1, "GetObject", DirectionRequest, `{
		"type": "record", "name": "GetObject", "namespace": "Energistics.Etp.v12.Protocol.Store",
		"fields": [
			{"name": "uri", "type": "string"}
		]
	}`)

	c.Register(ProtocolStore, 2, "Object", DirectionResponse, `{
		"type": "record", "name": "Object", "namespace": "Energistics.Etp.v12.Protocol.Store",
		"fields": [
			{"name": "uri", "type": "string"},
			{"name": "data", "type": "bytes"},
			{"name": "contentType", "type": "string", "default": "application/x-avro"}
		]
	}`)

	c.Register(ProtocolStore, 3, "PutObject", DirectionRequest, `{
		"type": "record", "name": "PutObject", "namespace": "Energistics.Etp.v12.Protocol.Store",
		"fields": [
			{"name": "uri", "type": "string"},
			{"name": "data", "type": "bytes"},
			{"name": "contentType", "type": "string", "default": "application/x-avro"}
		]
	}`)

	c.Register(ProtocolStore, 4, "DeleteObject", DirectionRequest, `{
		"type": "record", "name": "DeleteObject", "namespace": "Energistics.Etp.v12.Protocol.Store",
		"fields": [
			{"name": "uri", "type": "string"}
		]
	}`)
}

// indexValueUnionSchema is the Avro union representing a discriminated range
// endpoint: a long index or a double index, with null for an open bound. It
// has no separate timestamp branch. The
// unit-of-measure and depth-datum annotations sit alongside it in the
// enclosing record (spec.md §4.6, §9 "Polymorphic range endpoints").
const indexValueUnionSchema = `["null", "long", "double"]`

func registerGrowingObject(c *Catalog) {
	rangeFields := `
		{"name": "uri", "type": "string"},
		{"name": "startIndex", "type": ` + indexValueUnionSchema + `},
		{"name": "endIndex", "type": ` + indexValueUnionSchema + `},
		{"name": "uom", "type": ["null", "string"], "default": null},
		{"name": "depthDatum", "type": ["null", "string"], "default": null}
	`

	c.Register(ProtocolGrowingObject, 1, "GetRange", DirectionRequest, `{
		"type": "record", "name": "GetRange", "namespace": "Energistics.Etp.v12.Protocol.GrowingObject",
		"fields": [`+rangeFields+`]
	}`)

	c.Register(ProtocolGrowingObject, 2, "ObjectFragment", DirectionResponse, `{
		"type": "record", "name": "ObjectFragment", "namespace": "Energistics.Etp.v12.Protocol.GrowingObject",
		"fields": [
			{"name": "uri", "type": "string"},
			{"name": "data", "type": "bytes"},
			{"name": "index", "type": `+indexValueUnionSchema+`}
		]
	}`)

	c.Register(ProtocolGrowingObject, 3, "DeleteRange", DirectionRequest, `{
		"type": "record", "name": "DeleteRange", "namespace": "Energistics.Etp.v12.Protocol.GrowingObject",
		"fields": [`+rangeFields+`]
	}`)

	c.Register(ProtocolGrowingObject, 4, "PutPart", DirectionRequest, `{
		"type": "record", "name": "PutPart", "namespace": "Energistics.Etp.v12.Protocol.GrowingObject",
		"fields": [
			{"name": "uri", "type": "string"},
			{"name": "index", "type": `+indexValueUnionSchema+`},
			{"name": "data", "type": "bytes"},
			{"name": "uom", "type": ["null", "string"], "default": null},
			{"name": "depthDatum", "type": ["null", "string"], "default": null}
		]
	}`)

	c.Register(ProtocolGrowingObject, 5, "DeletePart", DirectionRequest, `{
		"type": "record", "name": "DeletePart", "namespace": "Energistics.Etp.v12.Protocol.GrowingObject",
		"fields": [
			{"name": "uri", "type": "string"},
			{"name": "index", "type": `+indexValueUnionSchema+`}
		]
	}`)

	c.Register(ProtocolGrowingObject, 6, "ReplacePartsByRange", DirectionRequest, `{
		"type": "record", "name": "ReplacePartsByRange", "namespace": "Energistics.Etp.v12.Protocol.GrowingObject",
		"fields": [`+rangeFields+`,
			{"name": "parts", "type": {"type": "array", "items": {
				"type": "record", "name": "ObjectFragment",
				"fields": [
					{"name": "uri", "type": "string"},
					{"name": "data", "type": "bytes"},
					{"name": "index", "type": `+indexValueUnionSchema+`}
				]
			}}}
		]
	}`)
}

// registerDataspace declares the Dataspace protocol catalog. v1.2 sessions
// carry an additional storeLastWrite timestamp on each Dataspace record
// (withStoreLastWrite=true); v1.1 sessions do not, matching spec.md's note
// that 1.1 and 1.2 "share this structure but differ in message catalogs".
func registerDataspace(c *Catalog, withStoreLastWrite bool) {
	lastWriteField := ""
	if withStoreLastWrite {
		lastWriteField = `, {"name": "storeLastWrite", "type": ["null", "long"], "default": null}`
	}

	dataspaceRecord := `{
		"type": "record", "name": "Dataspace", "namespace": "Energistics.Etp.v12.Protocol.Dataspace",
		"fields": [
			{"name": "uri", "type": "string"},
			{"name": "path", "type": "string"}` + lastWriteField + `
		]
	}`

	c.Register(ProtocolDataspace, 1, "PutDataspaces", DirectionRequest, `{
		"type": "record", "name": "PutDataspaces", "namespace": "Energistics.Etp.v12.Protocol.Dataspace",
		"fields": [
			{"name": "dataspaces", "type": {"type": "array", "items": `+dataspaceRecord+`}}
		]
	}`)

	c.Register(ProtocolDataspace, 2, "GetDataspaces", DirectionRequest, `{
		"type": "record", "name": "GetDataspaces", "namespace": "Energistics.Etp.v12.Protocol.Dataspace",
		"fields": [
			{"name": "storeLastWriteFilter", "type": ["null", "long"], "default": null}
		]
	}`)

	c.Register(ProtocolDataspace, 3, "GetDataspacesResponse", DirectionResponse, `{
		"type": "record", "name": "GetDataspacesResponse", "namespace": "Energistics.Etp.v12.Protocol.Dataspace",
		"fields": [
			{"name": "dataspaces", "type": {"type": "array", "items": `+dataspaceRecord+`}}
		]
	}`)

	c.Register(ProtocolDataspace, 4, "DeleteDataspaces", DirectionRequest, `{
		"type": "record", "name": "DeleteDataspaces", "namespace": "Energistics.Etp.v12.Protocol.Dataspace",
		"fields": [
			{"name": "uris", "type": {"type": "array", "items": "string"}}
		]
	}`)
}
