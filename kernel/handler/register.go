package handler

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/invoke"
)

// NewHandlerTable builds the invoke.HandlerTable mapping every
// capability type to its handler, per spec.md §4.6's linear fallthrough
// chain: CapPage/GPT reach AddressSpace then Memory then Cap; Page
// reaches Memory then Cap; Process/Endpoint handle their own opcode set
// and fall through to the Cap base (getType/destroy) for anything else.
// Range/Discrim/CapBits/AppInt/AppNotice/IrqWait/Sleep/KernLog/SysCtl
// handle only their own opcode set: every other opcode, getType and
// destroy included, reports UnknownRequest. Window/LocalWindow/Background/Null/Entry/
// Schedule have no entry: Window and its kin are only ever encountered
// mid-walk by package walker, never dispatched to directly; Entry is
// consumed by the send-phase rendezvous in package invoke before
// dispatch ever runs; Schedule has no opcodes of its own in this
// simulation kernel (see DESIGN.md).
func NewHandlerTable() invoke.HandlerTable {
	return invoke.HandlerTable{
		capx.TypePage:      PageHandler{},
		capx.TypeCapPage:   CapPageHandler{},
		capx.TypeGPT:       GPTHandler{},
		capx.TypeProcess:   ProcessHandler{},
		capx.TypeEndpoint:  EndpointHandler{},
		capx.TypeRange:     RangeHandler{},
		capx.TypeDiscrim:   DiscrimHandler{},
		capx.TypeCapBits:   CapBitsHandler{},
		capx.TypeAppInt:    AppIntHandler{},
		capx.TypeAppNotice: AppIntHandler{},
		capx.TypeIrqWait:   IrqWaitHandler{},
		capx.TypeSleep:     SleepHandler{},
		capx.TypeKernLog:   KernLogHandler{},
		capx.TypeSysCtl:    SysCtlHandler{},
	}
}
