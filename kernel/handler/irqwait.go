package handler

import (
	"github.com/vsrinivas/coyotos/kernel/invoke"
	"github.com/vsrinivas/coyotos/kernel/sched"
)

// IrqWaitHandler handles opcodes for IrqWait capabilities: per spec.md
// §8 scenario 5, waiting on a vector unmasks it at the controller (if not
// already) and clears pending on wake. IrqWait is never swizzled
// (capx.Type.IsObjectType), so ctx.TargetHeader is always nil; the
// vector number is carried directly in ctx.Target.Payload() rather than
// resolved through the object cache.
//
// This simulation kernel has no hardware interrupt controller driving an
// asynchronous wake, so opIrqWait does not suspend the invoker: it
// unmasks the vector, and if the vector is already pending it clears
// pending and returns OK immediately; otherwise it pushes the invoker
// onto the vector's stall queue and reports RequestWouldBlock.
type IrqWaitHandler struct{}

func (IrqWaitHandler) Invoke(ctx *invoke.Context) invoke.Result {
	vector := uint32(ctx.Target.Payload())

	switch ctx.Params.Opcode() {
	case opIrqWait:
		wasMasked := ctx.IRQ.Unmask(vector)
		_ = wasMasked
		if ctx.IRQ.Pending(vector) {
			ctx.IRQ.SetPending(vector, false)
			ctx.Transaction.CommitPoint()
			return invoke.OK
		}
		ctx.IRQ.QueueFor(vector).PushBack(sched.ProcOID(ctx.InvokerOID))
		ctx.Transaction.CommitPoint()
		return invoke.RequestWouldBlock

	case opIrqEnable:
		ctx.IRQ.Unmask(vector)
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opIrqDisable:
		ctx.IRQ.Mask(vector)
		ctx.Transaction.CommitPoint()
		return invoke.OK

	default:
		ctx.Transaction.CommitPoint()
		return invoke.UnknownRequest
	}
}
