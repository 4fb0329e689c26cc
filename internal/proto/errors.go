package proto

import (
	"errors"
	"fmt"
)

// ErrRegistryFrozen is returned by Register once a session has negotiated
// and the registry has been frozen against further mutation.
var ErrRegistryFrozen = errors.New("proto: registry is frozen after negotiation")

// ErrContractNotRegistered is returned by accessors such as
// Session.Handler[Contract] when the requested contract was never
// registered, or was dropped by UnregisterUnsupported.
var ErrContractNotRegistered = errors.New("proto: contract not registered or not supported")

// DuplicateProtocolError reports an attempt to register a second, distinct
// handler under a protocol id that already has one (spec.md §4.3: "Duplicate
// protocol id -> reject").
type DuplicateProtocolError struct {
	Protocol uint16
}

func (e DuplicateProtocolError) Error() string {
	return fmt.Sprintf("proto: protocol %d already has a registered handler", e.Protocol)
}
