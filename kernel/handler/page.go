package handler

import "github.com/vsrinivas/coyotos/kernel/invoke"

// PageHandler handles opcodes for Page capabilities: the Memory family
// plus getType/destroy, per spec.md §4.6's chain (Page -> Memory -> Cap;
// Page never gains an AddressSpace link since its data is reached only
// by a walk rooted at some containing GPT, never by direct slot index).
type PageHandler struct{}

func (PageHandler) Invoke(ctx *invoke.Context) invoke.Result {
	return memoryOpcode(ctx)
}
