package handler

import "github.com/vsrinivas/coyotos/kernel/invoke"

// CapBitsHandler handles the CapBits capability's single opcode: expose
// the argument capability's raw 16-byte representation as two data
// words, for the rare debugging/checkpoint tool that needs the bits
// rather than the ability to use the capability.
type CapBitsHandler struct{}

func (CapBitsHandler) Invoke(ctx *invoke.Context) invoke.Result {
	switch ctx.Params.Opcode() {
	case opGetCapBits:
		arg, result := resolveArgCap(ctx)
		if result != invoke.OK {
			ctx.Transaction.CommitPoint()
			return result
		}
		ctx.Reply.DataWords[0] = arg.Word0()
		ctx.Reply.DataWords[1] = arg.OID()
		ctx.Reply.DataCount = 2
		ctx.Transaction.CommitPoint()
		return invoke.OK

	default:
		ctx.Transaction.CommitPoint()
		return invoke.UnknownRequest
	}
}
