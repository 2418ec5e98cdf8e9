package handler

import (
	"github.com/vsrinivas/coyotos/kernel/invoke"
)

// DiscrimHandler handles opcodes for Discrim capabilities: classify
// reports a compact, forgeable-safe description of the argument
// capability's type and restriction bits (never its OID, since that
// would leak identity across a protection boundary); isDiscreet reports
// whether the argument is one of the kernel-service types that never
// carries object identity; compare reports whether two argument
// capabilities designate the same object, again without revealing OID
// to a caller that doesn't already hold an OID-bearing capability to it.
type DiscrimHandler struct{}

func (DiscrimHandler) Invoke(ctx *invoke.Context) invoke.Result {
	switch ctx.Params.Opcode() {
	case opClassify:
		arg, result := resolveArgCap(ctx)
		if result != invoke.OK {
			ctx.Transaction.CommitPoint()
			return result
		}
		ctx.Reply.DataWords[0] = uint64(arg.Type())
		ctx.Reply.DataWords[1] = uint64(arg.Restrictions())
		ctx.Reply.DataCount = 2
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opIsDiscreet:
		arg, result := resolveArgCap(ctx)
		if result != invoke.OK {
			ctx.Transaction.CommitPoint()
			return result
		}
		if !arg.Type().IsObjectType() {
			ctx.Reply.DataWords[0] = 1
		}
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opCompare:
		a, result := resolveArgCap(ctx)
		if result != invoke.OK {
			ctx.Transaction.CommitPoint()
			return result
		}
		locB := ctx.Params.SendCapLocs[1]
		b, result := ctx.ResolveCap(locB)
		if result != invoke.OK {
			ctx.Transaction.CommitPoint()
			return result
		}
		same := a.Type() == b.Type() && a.OID() == b.OID() && a.AllocCount() == b.AllocCount()
		if same {
			ctx.Reply.DataWords[0] = 1
		}
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	default:
		ctx.Transaction.CommitPoint()
		return invoke.UnknownRequest
	}
}
