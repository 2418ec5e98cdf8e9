package handler

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/invoke"
)

// RangeHandler handles opcodes for Range capabilities: a Range names a
// contiguous run of OIDs (base in Target.OID(), count in
// Target.AllocCount()) a process may enumerate, identify, rescind, or
// fetch capabilities into, without itself being an object -- Range is
// never swizzled, per capx.Type.IsObjectType, so ctx.TargetHeader is
// always nil here.
//
// waitCap/waitProcess are specified to block until the named object is
// resident; this simulation kernel has no background page-in scheduler
// (there is no process blocked on I/O to wake later), so every Prepare/
// Load call below is synchronous and always immediately satisfiable --
// waitCap/waitProcess therefore behave identically to getCap/getProcess.
// Recorded as a simplification in DESIGN.md.
type RangeHandler struct{}

func (RangeHandler) Invoke(ctx *invoke.Context) invoke.Result {
	base := ctx.Target.OID()
	count := uint64(ctx.Target.AllocCount())

	switch ctx.Params.Opcode() {
	case opEnumerate:
		ctx.Reply.DataWords[0] = base
		ctx.Reply.DataWords[1] = count
		ctx.Reply.DataCount = 2
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opIdentify:
		offset := ctx.Params.DataWords[1]
		if offset >= count {
			ctx.Transaction.CommitPoint()
			return invoke.RangeErr
		}
		typ := capx.Type(ctx.Params.DataWords[2])
		_, resident := ctx.Cache.Lookup(typ, base+offset)
		ctx.Reply.DataWords[0] = uint64(typ)
		if resident {
			ctx.Reply.DataWords[1] = 1
		}
		ctx.Reply.DataCount = 2
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opRescind:
		offset := ctx.Params.DataWords[1]
		if offset >= count {
			ctx.Transaction.CommitPoint()
			return invoke.RangeErr
		}
		typ := capx.Type(ctx.Params.DataWords[2])
		hdr, err := ctx.Cache.Load(typ, base+offset)
		if err != nil {
			ctx.Transaction.CommitPoint()
			return invoke.InvalidDataReference
		}
		hdr.Lock()
		newCount := ctx.Cache.Rescind(hdr)
		// Whack every PTE/mapping-table entry still pointing at hdr
		// before releasing its lock, so no walker can observe a
		// destroyed OTE through a live hardware translation -- the
		// rescind/shootdown ordering decided in DESIGN.md.
		ctx.RevMap.Whack(ctx.HAL, hdr)
		hdr.Unlock()
		ctx.Reply.DataWords[0] = uint64(newCount)
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opGetCap, opWaitCap:
		return rangeFetchCap(ctx, base, count, false)

	case opGetProcess, opWaitProcess:
		return rangeFetchCap(ctx, base, count, true)

	default:
		ctx.Transaction.CommitPoint()
		return invoke.UnknownRequest
	}
}

// rangeFetchCap mints a fresh, correctly-generationed OID-form capability
// to the object at base+offset, loading it into the cache first if
// necessary. forceProcess restricts the lookup to TypeProcess, for
// getProcess/waitProcess.
func rangeFetchCap(ctx *invoke.Context, base, count uint64, forceProcess bool) invoke.Result {
	offset := ctx.Params.DataWords[1]
	if offset >= count {
		ctx.Transaction.CommitPoint()
		return invoke.RangeErr
	}
	typ := capx.Type(ctx.Params.DataWords[2])
	if forceProcess {
		typ = capx.TypeProcess
	}
	hdr, err := ctx.Cache.Load(typ, base+offset)
	if err != nil {
		ctx.Transaction.CommitPoint()
		return invoke.InvalidDataReference
	}
	ctx.Reply.CapWords[0] = capx.NewOIDCapability(typ, 0, hdr.AllocCount, 0, hdr.OID)
	ctx.Reply.CapCount = 1
	ctx.Transaction.CommitPoint()
	return invoke.OK
}
