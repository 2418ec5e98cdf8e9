// Package handler implements the per-capability-type opcode dispatch
// from spec.md §4.6: a linear fallthrough chain (CapPage -> AddressSpace
// -> Memory -> Cap) where a narrower handler either handles an opcode
// itself or falls through to the next-broader one.
//
// Grounded on the teacher's console.Ega/tty.Vt layered-driver pattern: a
// narrow concrete type (Ega) implementing the few operations it actually
// specializes and delegating everything else to the broader type (Vt) it
// embeds. Here the "broader type" relationship is expressed as a plain
// opcode-range dispatch inside each handler's Invoke rather than a Go
// embedding chain, since the handlers differ in which base families they
// inherit (GPT/CapPage both get AddressSpace+Memory; Page only gets
// Memory; Process/Endpoint/Range/etc. get neither).
package handler

// Opcodes 0 and 1 (getType, destroy) are defined in package invoke
// (OpGetType, OpDestroy) since every capability type shares them.

// Memory family opcodes, shared by Page/CapPage/GPT per spec.md §4.6.
const (
	opGetRestrictions uint32 = 2 + iota
	opReduce
	opGetGuard
	opSetGuard
)

// AddressSpace family opcodes, shared by CapPage/GPT.
const (
	opFetch uint32 = 10 + iota
	opStore
	opGetSlot
	opSetSlot
	opGuardedSetSlot
	opExtendedFetch
	opExtendedStore
	opCopyFrom
	opErase
)

// GPT-specific opcodes.
const (
	opGetL2V uint32 = 20 + iota
	opSetL2V
	opGetBG
	opSetBG
	opGetHA
	opSetHA
)

// Process opcodes.
const (
	opGetCapReg uint32 = 30 + iota
	opSetCapReg
	opGetRunState
	opSetRunState
	opGetFaultInfo
	opSetFaultInfo
	opGetAddrSpace
	opSetAddrSpace
	opGetSchedule
	opSetSchedule
	opGetFixedRegs
	opSetFixedRegs
	opGetFloatRegs
	opSetFloatRegs
	opGetCohort
	opSetCohort
	opGetBrand
	opSetBrand
	opGetIOSpace
	opSetIOSpace
	opGetHandler
	opSetHandler
)

// Endpoint opcodes.
const (
	opSetRecipient uint32 = 60 + iota
	opSetPayloadMatch
	opSetEndpointID
	opGetEndpointID
	opMakeEntryCap
	opMakeAppNotifier
)

// Range opcodes.
const (
	opEnumerate uint32 = 70 + iota
	opIdentify
	opRescind
	opGetCap
	opWaitCap
	opGetProcess
	opWaitProcess
)

// Discrim opcodes.
const (
	opClassify uint32 = 80 + iota
	opIsDiscreet
	opCompare
)

// CapBits opcode.
const opGetCapBits uint32 = 90

// AppInt/AppNotice opcodes.
const (
	opPost uint32 = 95 + iota
	opWaitNotice
)

// IrqWait opcodes.
const (
	opIrqWait uint32 = 100 + iota
	opIrqEnable
	opIrqDisable
)

// Sleep opcodes.
const (
	opSleepTill uint32 = 105 + iota
	opSleepFor
)

// KernLog opcode.
const opKernLogLog uint32 = 110

// SysCtl opcodes.
const (
	opSysCtlHalt uint32 = 115 + iota
	opSysCtlPowerdown
	opSysCtlReboot
)
