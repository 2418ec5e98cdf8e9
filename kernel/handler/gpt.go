package handler

import "github.com/vsrinivas/coyotos/kernel/invoke"

// GPTHandler handles opcodes for Guarded Page Table capabilities:
// GPT-specific l2v/bg/ha accessors, then AddressSpace -> Memory -> Cap,
// per spec.md §4.6 and §3.6.
type GPTHandler struct{}

func (GPTHandler) Invoke(ctx *invoke.Context) invoke.Result {
	switch ctx.Params.Opcode() {
	case opGetL2V:
		gpt, _ := ctx.TargetHeader.GPT()
		ctx.Reply.DataWords[0] = uint64(gpt.L2V)
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSetL2V:
		gpt, _ := ctx.TargetHeader.GPT()
		l2v := uint8(ctx.Params.DataWords[1])
		if l2v > 63 {
			ctx.Transaction.CommitPoint()
			return invoke.RequestError
		}
		gpt.L2V = l2v
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opGetBG:
		gpt, _ := ctx.TargetHeader.GPT()
		if gpt.BG {
			ctx.Reply.DataWords[0] = 1
		}
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSetBG:
		gpt, _ := ctx.TargetHeader.GPT()
		gpt.BG = ctx.Params.DataWords[1] != 0
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opGetHA:
		gpt, _ := ctx.TargetHeader.GPT()
		if gpt.HA {
			ctx.Reply.DataWords[0] = 1
		}
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSetHA:
		gpt, _ := ctx.TargetHeader.GPT()
		gpt.HA = ctx.Params.DataWords[1] != 0
		ctx.Transaction.CommitPoint()
		return invoke.OK

	default:
		return addressSpaceOpcode(ctx)
	}
}
