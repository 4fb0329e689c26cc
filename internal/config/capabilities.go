// Package config loads the static negotiation defaults: per-protocol
// capability records (MaxResponseCount, MaxTransactionCount,
// TransactionTimeoutPeriod, MaxFrameSize, MaxPartSize) and the application
// identity. The application identity is sent in RequestSession only
// (OpenSession has no application fields). The capability records are not
// sent during negotiation: the SupportedProtocol wire record has no
// capabilities field.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/energistics/etp/wire"
)

// Capabilities is the on-disk shape of a capabilities YAML file.
type Capabilities struct {
	ApplicationName    string                        `yaml:"application_name"`
	ApplicationVersion string                        `yaml:"application_version"`
	Protocols          map[string]ProtocolDefaults    `yaml:"protocols"`
}

// ProtocolDefaults is the capability record offered for one protocol id,
// keyed by its decimal string in the YAML file (map keys must be strings).
type ProtocolDefaults struct {
	MaxResponseCount         int64 `yaml:"max_response_count"`
	MaxTransactionCount      int64 `yaml:"max_transaction_count"`
	TransactionTimeoutPeriod int64 `yaml:"transaction_timeout_period"`
	MaxFrameSize             int64 `yaml:"max_frame_size"`
	MaxPartSize              int64 `yaml:"max_part_size"`
}

// ToWire converts a ProtocolDefaults into the wire.Capabilities map a
// SupportedProtocol record carries. A zero field is omitted rather than
// sent as an explicit 0, since ETP treats an absent capability as "peer has
// no opinion" rather than "peer demands zero".
func (d ProtocolDefaults) ToWire() wire.Capabilities {
	caps := wire.Capabilities{}
	if d.MaxResponseCount > 0 {
		caps[wire.CapabilityMaxResponseCount] = d.MaxResponseCount
	}
	if d.MaxTransactionCount > 0 {
		caps[wire.CapabilityMaxTransactionCount] = d.MaxTransactionCount
	}
	if d.TransactionTimeoutPeriod > 0 {
		caps[wire.CapabilityTransactionTimeoutPeriod] = d.TransactionTimeoutPeriod
	}
	if d.MaxFrameSize > 0 {
		caps[wire.CapabilityMaxFrameSize] = d.MaxFrameSize
	}
	if d.MaxPartSize > 0 {
		caps[wire.CapabilityMaxPartSize] = d.MaxPartSize
	}
	return caps
}

// Default returns the built-in capabilities used when no file is
// configured: conservative limits wide enough for the bundled handlers.
func Default() Capabilities {
	return Capabilities{
		ApplicationName:    "etp-reference-server",
		ApplicationVersion: "1.0.0",
		Protocols: map[string]ProtocolDefaults{
			"0":  {MaxFrameSize: 1 << 20},
			"3":  {MaxResponseCount: 1000, MaxFrameSize: 1 << 20},
			"4":  {MaxFrameSize: 16 << 20, MaxPartSize: 16 << 20},
			"5":  {MaxResponseCount: 10000, MaxFrameSize: 4 << 20, MaxPartSize: 1 << 20},
			"24": {MaxResponseCount: 1000, MaxFrameSize: 1 << 20},
		},
	}
}

// Load reads a capabilities file from disk. An empty path returns Default().
func Load(path string) (Capabilities, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Capabilities{}, fmt.Errorf("config: read capabilities file: %w", err)
	}

	caps := Default()
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return Capabilities{}, fmt.Errorf("config: parse capabilities file: %w", err)
	}
	return caps, nil
}

// For looks up the capability record for a protocol id, falling back to an
// empty record (no constraints advertised) when the file doesn't mention it.
func (c Capabilities) For(protocol uint16) wire.Capabilities {
	key := fmt.Sprintf("%d", protocol)
	d, ok := c.Protocols[key]
	if !ok {
		return wire.Capabilities{}
	}
	return d.ToWire()
}
