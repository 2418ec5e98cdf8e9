package handler

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/invoke"
)

// memoryOpcode implements the Memory family shared by Page/CapPage/GPT:
// getRestrictions, reduce, getGuard, setGuard. It falls back to
// handleBase for anything it does not recognize, completing the
// Memory -> Cap link of the fallthrough chain.
func memoryOpcode(ctx *invoke.Context) invoke.Result {
	switch ctx.Params.Opcode() {
	case opGetRestrictions:
		ctx.Reply.DataWords[0] = uint64(ctx.Target.Restrictions())
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opReduce:
		want := capx.Restr(ctx.Params.DataWords[1])
		reduced := ctx.Target.Restrict(want)
		if ctx.WriteInvoked == nil {
			ctx.Transaction.CommitPoint()
			return invoke.RequestError
		}
		result := ctx.WriteInvoked(reduced)
		ctx.Transaction.CommitPoint()
		return result

	case opGetGuard:
		ctx.Reply.DataWords[0] = uint64(ctx.Target.L2G())
		ctx.Reply.DataWords[1] = uint64(ctx.Target.Match())
		ctx.Reply.DataCount = 2
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSetGuard:
		l2g := uint8(ctx.Params.DataWords[1])
		match := uint32(ctx.Params.DataWords[2])
		if l2g > 63 {
			ctx.Transaction.CommitPoint()
			return invoke.RequestError
		}
		guarded := ctx.Target.WithGuard(l2g, match)
		if ctx.WriteInvoked == nil {
			ctx.Transaction.CommitPoint()
			return invoke.RequestError
		}
		result := ctx.WriteInvoked(guarded)
		ctx.Transaction.CommitPoint()
		return result

	default:
		return handleBase(ctx)
	}
}
