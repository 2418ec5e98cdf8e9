package handler

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/invoke"
	"github.com/vsrinivas/coyotos/kernel/objcache"
)

// AppIntHandler handles opcodes for AppInt and AppNotice capabilities.
// Both share the target Process frame's lifetime rather than having a
// distinct cache frame of their own (per objcache.typeForObjectCap's
// comment), so ctx.TargetHeader is always nil here and the handler
// resolves the target Process frame itself from ctx.Target.OID().
//
// post delivers a numbered software interrupt/notice bit into the target
// process's SoftInts and wakes it. This simulation kernel has no
// background scheduler loop driving a receive-queue wake, so "wake" is
// modeled as a direct RunState flip (Receiving -> Running) rather than a
// full stall-queue pop, per the corresponding DESIGN.md entry.
type AppIntHandler struct{}

func (AppIntHandler) Invoke(ctx *invoke.Context) invoke.Result {
	target, ok := ctx.Cache.Lookup(capx.TypeProcess, ctx.Target.OID())
	if !ok {
		ctx.Transaction.CommitPoint()
		return invoke.InvalidDataReference
	}
	pf, ok := target.Process()
	if !ok {
		ctx.Transaction.CommitPoint()
		return invoke.InvalidDataReference
	}

	switch ctx.Params.Opcode() {
	case opPost:
		bit := ctx.Params.DataWords[1] & 31
		pf.SoftInts |= 1 << bit
		if pf.RunState == objcache.RunReceiving {
			pf.RunState = objcache.RunRunning
		}
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opWaitNotice:
		ctx.Reply.DataWords[0] = uint64(pf.SoftInts)
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	default:
		ctx.Transaction.CommitPoint()
		return invoke.UnknownRequest
	}
}
