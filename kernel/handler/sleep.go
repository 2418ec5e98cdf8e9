package handler

import (
	"github.com/vsrinivas/coyotos/kernel/invoke"
	"github.com/vsrinivas/coyotos/kernel/objcache"
	"github.com/vsrinivas/coyotos/kernel/sched"
)

// SleepHandler handles opcodes for Sleep capabilities, per spec.md §5
// "Cancellation and timeouts": "Sleep capabilities carry absolute wake
// times; an external timer tick calls interval_wakeup, which wakes all
// sleepers whose wake time has passed." Sleep is never swizzled, so the
// capability carries no OID of its own; a process invokes its own Sleep
// capability to park itself, so the frame mutated is ctx.Invoker's, not
// ctx.Target's.
type SleepHandler struct{}

func (SleepHandler) Invoke(ctx *invoke.Context) invoke.Result {
	pf, ok := ctx.Invoker.Process()
	if !ok {
		ctx.Transaction.CommitPoint()
		return invoke.RequestError
	}

	switch ctx.Params.Opcode() {
	case opSleepTill:
		wakeUsec := ctx.Params.DataWords[1]
		pf.WakeAtUsec = wakeUsec
		pf.RunState = objcache.RunFaulted
		ctx.Sleep.Park(sched.ProcOID(ctx.InvokerOID), wakeUsec)
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSleepFor:
		durationUsec := ctx.Params.DataWords[1]
		wakeUsec := pf.WakeAtUsec + durationUsec
		pf.WakeAtUsec = wakeUsec
		pf.RunState = objcache.RunFaulted
		ctx.Sleep.Park(sched.ProcOID(ctx.InvokerOID), wakeUsec)
		ctx.Transaction.CommitPoint()
		return invoke.OK

	default:
		ctx.Transaction.CommitPoint()
		return invoke.UnknownRequest
	}
}
