package handler

import (
	"encoding/binary"

	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/invoke"
	"github.com/vsrinivas/coyotos/kernel/objcache"
	"github.com/vsrinivas/coyotos/kernel/walker"
)

// addressSpaceOpcode implements the AddressSpace family shared by
// CapPage/GPT: fetch/store/getSlot/setSlot/guardedSetSlot/extendedFetch/
// extendedStore/copyFrom/erase. Falls back to memoryOpcode, completing
// the AddressSpace -> Memory link of the chain.
func addressSpaceOpcode(ctx *invoke.Context) invoke.Result {
	switch ctx.Params.Opcode() {
	case opFetch:
		return addrFetch(ctx, false)
	case opStore:
		return addrStore(ctx, false)
	case opGetSlot:
		return getSlot(ctx)
	case opSetSlot:
		return setSlot(ctx)
	case opGuardedSetSlot:
		return guardedSetSlot(ctx)
	case opExtendedFetch:
		return addrFetch(ctx, true)
	case opExtendedStore:
		return addrStore(ctx, true)
	case opCopyFrom:
		return copyFrom(ctx)
	case opErase:
		ctx.Cache.Clear(ctx.TargetHeader)
		ctx.Transaction.CommitPoint()
		return invoke.OK
	default:
		return memoryOpcode(ctx)
	}
}

// slots returns the addressable capability-slot array for ctx.Target
// (GPT or CapPage) and its length, or nil if ctx.Target is not
// slot-addressable at all (e.g. Page, which is byte-addressable only
// through its leaf data, never through a slot array).
func slots(ctx *invoke.Context) ([]capx.Capability, int) {
	if gpt, ok := ctx.TargetHeader.GPT(); ok {
		s := gpt.Slots[:gpt.AddressableSlots()]
		return s, len(s)
	}
	if cp, ok := ctx.TargetHeader.CapPage(); ok {
		s := cp.Slots[:]
		return s, len(s)
	}
	return nil, 0
}

func getSlot(ctx *invoke.Context) invoke.Result {
	s, n := slots(ctx)
	if s == nil {
		ctx.Transaction.CommitPoint()
		return invoke.CapAccessTypeError
	}
	idx := int(ctx.Params.DataWords[1])
	if idx < 0 || idx >= n {
		ctx.Transaction.CommitPoint()
		return invoke.NoSuchSlot
	}
	ctx.Reply.CapWords[0] = s[idx]
	ctx.Reply.CapCount = 1
	ctx.Transaction.CommitPoint()
	return invoke.OK
}

func setSlot(ctx *invoke.Context) invoke.Result {
	s, n := slots(ctx)
	if s == nil {
		ctx.Transaction.CommitPoint()
		return invoke.CapAccessTypeError
	}
	idx := int(ctx.Params.DataWords[1])
	if idx < 0 || idx >= n {
		ctx.Transaction.CommitPoint()
		return invoke.NoSuchSlot
	}
	if ctx.ResolveCap == nil {
		ctx.Transaction.CommitPoint()
		return invoke.RequestError
	}
	cap, result := ctx.ResolveCap(ctx.Params.SendCapLocs[0])
	if result != invoke.OK {
		ctx.Transaction.CommitPoint()
		return result
	}
	writeSlot(ctx, s, idx, cap)
	ctx.Transaction.CommitPoint()
	return invoke.OK
}

func guardedSetSlot(ctx *invoke.Context) invoke.Result {
	s, n := slots(ctx)
	if s == nil {
		ctx.Transaction.CommitPoint()
		return invoke.CapAccessTypeError
	}
	idx := int(ctx.Params.DataWords[1])
	if idx < 0 || idx >= n {
		ctx.Transaction.CommitPoint()
		return invoke.NoSuchSlot
	}
	if ctx.ResolveCap == nil {
		ctx.Transaction.CommitPoint()
		return invoke.RequestError
	}
	cap, result := ctx.ResolveCap(ctx.Params.SendCapLocs[0])
	if result != invoke.OK {
		ctx.Transaction.CommitPoint()
		return result
	}
	l2g := uint8(ctx.Params.DataWords[2])
	match := uint32(ctx.Params.DataWords[3])
	writeSlot(ctx, s, idx, cap.WithGuard(l2g, match))
	ctx.Transaction.CommitPoint()
	return invoke.OK
}

// writeSlot installs cap at s[idx] and marks the containing frame dirty.
// Hardware-translation bookkeeping (Depend/RevMap) is recorded only when
// the walker actually installs a PTE against this slot during a later
// walk, not at slot-write time -- a slot can hold a capability for a long
// time before (or without ever) being walked through.
func writeSlot(ctx *invoke.Context, s []capx.Capability, idx int, cap capx.Capability) {
	s[idx] = cap
	ctx.TargetHeader.SetFlags(objcache.FlagDirty)
}

func copyFrom(ctx *invoke.Context) invoke.Result {
	if ctx.ResolveCap == nil {
		ctx.Transaction.CommitPoint()
		return invoke.RequestError
	}
	srcCap, result := ctx.ResolveCap(ctx.Params.SendCapLocs[0])
	if result != invoke.OK {
		ctx.Transaction.CommitPoint()
		return result
	}
	resolved, srcHeader, err := ctx.Cache.Prepare(srcCap)
	if err != nil || srcHeader == nil {
		ctx.Transaction.CommitPoint()
		return invoke.InvalidDataReference
	}
	if resolved.Type() != ctx.Target.Type() {
		ctx.Transaction.CommitPoint()
		return invoke.RequestError
	}
	switch resolved.Type() {
	case capx.TypeGPT:
		srcGPT, _ := srcHeader.GPT()
		dstGPT, _ := ctx.TargetHeader.GPT()
		dstGPT.Slots = srcGPT.Slots
		dstGPT.L2V = srcGPT.L2V
		dstGPT.BG = srcGPT.BG
		dstGPT.HA = srcGPT.HA
	case capx.TypeCapPage:
		srcCP, _ := srcHeader.CapPage()
		dstCP, _ := ctx.TargetHeader.CapPage()
		dstCP.Slots = srcCP.Slots
	default:
		ctx.Transaction.CommitPoint()
		return invoke.CapAccessTypeError
	}
	ctx.TargetHeader.SetFlags(objcache.FlagDirty)
	ctx.Transaction.CommitPoint()
	return invoke.OK
}

// addrFetch/addrStore implement fetch/store (and their extended
// variants) by walking from ctx.Target as the root memory capability,
// per spec.md §4.3/§4.4, and reading/writing one little-endian data word
// through the HAL's transient mapping window at the walk's leaf page.
func addrFetch(ctx *invoke.Context, extended bool) invoke.Result {
	if _, ok := ctx.TargetHeader.CapPage(); ok {
		ctx.Transaction.CommitPoint()
		return invoke.CapAccessTypeError
	}
	addr := ctx.Params.DataWords[1]
	t, err := doWalk(ctx, addr, extended, false)
	if err != nil {
		ctx.Transaction.CommitPoint()
		return invoke.InvalidDataReference
	}
	if t.Result != walker.Success {
		ctx.Transaction.CommitPoint()
		return walkResult(t.Result)
	}
	leaf := t.Steps[len(t.Steps)-1]
	page, ok := leaf.Header.Page()
	if !ok {
		ctx.Transaction.CommitPoint()
		return invoke.CapAccessTypeError
	}
	off := int(leaf.RemAddr) &^ 7
	if off+8 > len(page.Data) {
		ctx.Transaction.CommitPoint()
		return invoke.InvalidDataReference
	}
	ctx.Reply.DataWords[0] = binary.LittleEndian.Uint64(page.Data[off : off+8])
	ctx.Reply.DataCount = 1
	ctx.Transaction.CommitPoint()
	return invoke.OK
}

func addrStore(ctx *invoke.Context, extended bool) invoke.Result {
	if _, ok := ctx.TargetHeader.CapPage(); ok {
		ctx.Transaction.CommitPoint()
		return invoke.CapAccessTypeError
	}
	addr := ctx.Params.DataWords[1]
	val := ctx.Params.DataWords[2]
	t, err := doWalk(ctx, addr, extended, true)
	if err != nil {
		ctx.Transaction.CommitPoint()
		return invoke.InvalidDataReference
	}
	if t.Result != walker.Success {
		ctx.Transaction.CommitPoint()
		return walkResult(t.Result)
	}
	leaf := t.Steps[len(t.Steps)-1]
	page, ok := leaf.Header.Page()
	if !ok {
		ctx.Transaction.CommitPoint()
		return invoke.CapAccessTypeError
	}
	off := int(leaf.RemAddr) &^ 7
	if off+8 > len(page.Data) {
		ctx.Transaction.CommitPoint()
		return invoke.InvalidDataReference
	}
	binary.LittleEndian.PutUint64(page.Data[off:off+8], val)
	leaf.Header.SetFlags(objcache.FlagDirty)
	ctx.Transaction.CommitPoint()
	return invoke.OK
}

func doWalk(ctx *invoke.Context, addr uint64, extended bool, forWrite bool) (walker.Transcript, error) {
	if extended {
		l2stop := uint8(ctx.Params.DataWords[2])
		return walker.ExtendedWalk(ctx.Cache, ctx.Target, addr, l2stop, forWrite)
	}
	return walker.Walk(ctx.Cache, ctx.Target, addr, forWrite)
}

func walkResult(r walker.Result) invoke.Result {
	switch r {
	case walker.InvalidDataReference:
		return invoke.InvalidDataReference
	case walker.MalformedSpace:
		return invoke.MalformedSpace
	case walker.AccessViolation:
		return invoke.AccessViolation
	default:
		return invoke.RequestError
	}
}
