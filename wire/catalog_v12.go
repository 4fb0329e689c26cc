package wire

// BuildV12 declares the v1.2 message catalog. It shares the Core, Discovery,
// Store, and GrowingObject shapes with v1.1 but upgrades ProtocolException to
// carry per-request error collections, and Dataspace to carry a
// storeLastWrite timestamp (spec.md: "1.1 and 1.2 share this structure but
// differ in message catalogs").
func BuildV12() *Catalog {
	c := NewCatalog(Version12)
	registerCoreV12(c)
	registerDiscovery(c)
	registerStore(c)
	registerGrowingObject(c)
	registerDataspace(c, true)
	return c
}

func registerCoreV12(c *Catalog) {
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

	c.Register(ProtocolCore, 1000, "ProtocolException", DirectionBidirectional, protocolExceptionSchema(true))
}
