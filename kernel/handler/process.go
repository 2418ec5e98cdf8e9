package handler

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/invoke"
	"github.com/vsrinivas/coyotos/kernel/objcache"
)

// ProcessHandler handles opcodes for Process capabilities: capability
// registers, run state, fault info, the address-space/schedule/brand/
// cohort/ioSpace/handler capability slots, and the fixed/float register
// files, per spec.md §3.2's ProcessFrame fields.
type ProcessHandler struct{}

func (ProcessHandler) Invoke(ctx *invoke.Context) invoke.Result {
	pf, ok := ctx.TargetHeader.Process()
	if !ok {
		ctx.Transaction.CommitPoint()
		return invoke.RequestError
	}

	switch ctx.Params.Opcode() {
	case opGetCapReg:
		idx := int(ctx.Params.DataWords[1])
		if idx < 0 || idx >= len(pf.CapRegs) {
			ctx.Transaction.CommitPoint()
			return invoke.NoSuchSlot
		}
		ctx.Reply.CapWords[0] = pf.CapRegs[idx]
		ctx.Reply.CapCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSetCapReg:
		idx := int(ctx.Params.DataWords[1])
		if idx < 0 || idx >= len(pf.CapRegs) {
			ctx.Transaction.CommitPoint()
			return invoke.NoSuchSlot
		}
		cap, result := resolveArgCap(ctx)
		if result != invoke.OK {
			ctx.Transaction.CommitPoint()
			return result
		}
		pf.CapRegs[idx] = cap
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opGetRunState:
		ctx.Reply.DataWords[0] = uint64(pf.RunState)
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSetRunState:
		pf.RunState = objcache.RunState(ctx.Params.DataWords[1])
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opGetFaultInfo:
		ctx.Reply.DataWords[0] = uint64(pf.FaultCode)
		ctx.Reply.DataWords[1] = pf.FaultInfo
		ctx.Reply.DataCount = 2
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSetFaultInfo:
		pf.FaultCode = uint32(ctx.Params.DataWords[1])
		pf.FaultInfo = ctx.Params.DataWords[2]
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opGetAddrSpace:
		return capFieldGet(ctx, pf.AddrSpace)
	case opSetAddrSpace:
		return capFieldSet(ctx, &pf.AddrSpace)
	case opGetSchedule:
		return capFieldGet(ctx, pf.Schedule)
	case opSetSchedule:
		return capFieldSet(ctx, &pf.Schedule)
	case opGetCohort:
		return capFieldGet(ctx, pf.Cohort)
	case opSetCohort:
		return capFieldSet(ctx, &pf.Cohort)
	case opGetBrand:
		return capFieldGet(ctx, pf.Brand)
	case opSetBrand:
		return capFieldSet(ctx, &pf.Brand)
	case opGetIOSpace:
		return capFieldGet(ctx, pf.IOSpace)
	case opSetIOSpace:
		return capFieldSet(ctx, &pf.IOSpace)
	case opGetHandler:
		return capFieldGet(ctx, pf.Handler)
	case opSetHandler:
		return capFieldSet(ctx, &pf.Handler)

	case opGetFixedRegs:
		return regBlockGet(ctx, pf.FixedRegs[:])
	case opSetFixedRegs:
		return regBlockSet(ctx, pf.FixedRegs[:])
	case opGetFloatRegs:
		return regBlockGet(ctx, pf.FloatRegs[:])
	case opSetFloatRegs:
		return regBlockSet(ctx, pf.FloatRegs[:])

	default:
		return handleBase(ctx)
	}
}

// resolveArgCap resolves the capability argument conventionally carried
// in SendCapLocs[0] for single-capability set opcodes (setCapReg,
// setAddrSpace, setSchedule, ...).
func resolveArgCap(ctx *invoke.Context) (capx.Capability, invoke.Result) {
	if ctx.ResolveCap == nil {
		return capx.Null, invoke.RequestError
	}
	return ctx.ResolveCap(ctx.Params.SendCapLocs[0])
}

func capFieldGet(ctx *invoke.Context, cap capx.Capability) invoke.Result {
	ctx.Reply.CapWords[0] = cap
	ctx.Reply.CapCount = 1
	ctx.Transaction.CommitPoint()
	return invoke.OK
}

func capFieldSet(ctx *invoke.Context, field *capx.Capability) invoke.Result {
	cap, result := resolveArgCap(ctx)
	if result != invoke.OK {
		ctx.Transaction.CommitPoint()
		return result
	}
	*field = cap
	ctx.Transaction.CommitPoint()
	return invoke.OK
}

// regBlockGet/regBlockSet transfer entries of a register file starting at
// the index named by DataWords[1]: regBlockGet up to MaxDataWords, and
// regBlockSet up to the MaxDataWords-2 values in DataWords[2:]. A real
// architecture would stage this transfer across potential page faults on
// a user-supplied buffer; this simulation kernel has no user address
// space for the register file itself, so the transfer is a direct copy,
// documented as a simplification in DESIGN.md.
func regBlockGet(ctx *invoke.Context, regs []uint64) invoke.Result {
	start := int(ctx.Params.DataWords[1])
	if start < 0 || start >= len(regs) {
		ctx.Transaction.CommitPoint()
		return invoke.RequestError
	}
	n := copy(ctx.Reply.DataWords[:], regs[start:])
	ctx.Reply.DataCount = n
	ctx.Transaction.CommitPoint()
	return invoke.OK
}

func regBlockSet(ctx *invoke.Context, regs []uint64) invoke.Result {
	start := int(ctx.Params.DataWords[1])
	if start < 0 || start >= len(regs) {
		ctx.Transaction.CommitPoint()
		return invoke.RequestError
	}
	src := ctx.Params.DataWords[2:]
	copy(regs[start:], src)
	ctx.Transaction.CommitPoint()
	return invoke.OK
}
