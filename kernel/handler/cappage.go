package handler

import "github.com/vsrinivas/coyotos/kernel/invoke"

// CapPageHandler handles opcodes for CapPage capabilities: AddressSpace
// -> Memory -> Cap, per spec.md §4.6. fetch/store/extendedFetch/
// extendedStore report CapAccessTypeError for a CapPage target (handled
// inside addrFetch/addrStore), since a CapPage's 256 slots hold
// capabilities, not byte-addressable data.
type CapPageHandler struct{}

func (CapPageHandler) Invoke(ctx *invoke.Context) invoke.Result {
	return addressSpaceOpcode(ctx)
}
