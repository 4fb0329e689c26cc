package proto

import (
	"log/slog"
	"sync"

	"github.com/energistics/etp/wire"
)

// HandlerRegistry is the dual-keyed container spec.md §4.3 describes: a
// handler is reachable by its numeric protocol id (the receive path's key)
// and by its stable contract identity (the key application code uses to
// fetch a handler). It follows the teacher's Hub: a small RWMutex-guarded map
// built once at session setup and frozen against mutation after negotiation.
// Steady-state lookups are not lock-free: each one takes the read lock.
type HandlerRegistry struct {
	log *slog.Logger

	mu         sync.RWMutex
	byProtocol map[uint16]Handler
	byContract map[ContractID]uint16
	frozen     bool
}

// NewHandlerRegistry constructs an empty registry.
func NewHandlerRegistry(log *slog.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		log:        log,
		byProtocol: make(map[uint16]Handler),
		byContract: make(map[ContractID]uint16),
	}
}

// Register inserts h under both keys, binds the session to it, and fires
// OnRegistered. A duplicate contract id replaces the previous handler with a
// warning; a duplicate protocol id is rejected (spec.md §4.3).
func (r *HandlerRegistry) Register(session SessionAPI, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}

	protocol := h.Protocol()
	contract := h.ContractID()

	if existing, ok := r.byProtocol[protocol]; ok && existing.ContractID() != contract {
		return DuplicateProtocolError{Protocol: protocol}
	}

	if _, ok := r.byContract[contract]; ok {
		r.log.Warn("registry.contract.replaced", "contract", string(contract), "protocol", protocol)
	}

	r.byProtocol[protocol] = h
	r.byContract[contract] = protocol

	h.BindSession(session)
	h.OnRegistered()
	return nil
}

// ByProtocol is the receive path's lookup: absent protocol means "route to
// Core as UnsupportedProtocol" (spec.md §4.5 step 3).
func (r *HandlerRegistry) ByProtocol(protocol uint16) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byProtocol[protocol]
	return h, ok
}

// ByContract is the application-facing accessor
// (Session.handler<Contract>()/canHandle<Contract>() in spec.md §4.5).
func (r *HandlerRegistry) ByContract(contract ContractID) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	protocol, ok := r.byContract[contract]
	if !ok {
		return nil, false
	}
	return r.byProtocol[protocol], true
}

// All returns every registered handler in an unspecified order. Callers that
// need registration order (OnSessionOpened, OnSessionClosed) must track it
// themselves at Register time; Session does this (see session.go).
func (r *HandlerRegistry) All() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, 0, len(r.byProtocol))
	for _, h := range r.byProtocol {
		out = append(out, h)
	}
	return out
}

// UnregisterUnsupported removes any handler whose (protocol, role) is not in
// the negotiated set, Core excepted (spec.md §4.3, §4.5 negotiation step).
// Called once, after negotiation; it also freezes the registry, so later
// Register calls fail with ErrRegistryFrozen.
func (r *HandlerRegistry) UnregisterUnsupported(negotiated map[wire.ProtocolRole]struct{}) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Handler
	for protocol, h := range r.byProtocol {
		if protocol == wire.ProtocolCore {
			continue
		}
		key := wire.ProtocolRole{Protocol: protocol, Role: h.LocalRole()}
		if _, ok := negotiated[key]; ok {
			continue
		}
		delete(r.byProtocol, protocol)
		delete(r.byContract, h.ContractID())
		removed = append(removed, h)
	}
	r.frozen = true
	return removed
}
