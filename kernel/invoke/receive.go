package invoke

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/objcache"
)

// replyCapAllocCount is the allocation count stamped on a freshly minted
// reply Entry capability; reply caps are transient and never compared
// against a stale-generation check, so this is always zero.
const replyCapAllocCount = 0

// deliverReceivePhase implements spec.md §4.5's receive-phase contract
// for a process-to-process rendezvous: "copy up to 4 data words and up
// to 4 capabilities from sender to receiver; set the receiver's epID to
// the endpoint's; reply-cap delivery, if requested, mints a transient
// Entry capability to an endpoint designated for reply."
//
// The sender is ctx.Invoker; recipient is the process header resolved by
// prepareForInvocation, which prepares it without locking it. This
// function only copies fields and does not itself acquire locks.
func (e *Engine) deliverReceivePhase(ctx *Context, recipient *objcache.Header) {
	rf, ok := recipient.Process()
	if !ok {
		return
	}
	sf, _ := ctx.Invoker.Process()

	ef, _ := ctx.TargetHeader.Endpoint()

	n := len(ctx.Params.Data(ctx.ICW))
	if n > 4 { // the receive phase transfers at most 4 data words
		n = 4
	}
	copy(rf.FixedRegs[:n], ctx.Params.DataWords[:n])

	if ctx.ICW.SendCaps() && sf != nil {
		for i, loc := range ctx.Params.SendCaps(ctx.ICW) {
			if i >= len(rf.CapRegs) {
				break
			}
			cap, result := e.resolveCapLocation(ctx.Invoker, loc, nil)
			if result != OK {
				continue
			}
			rf.CapRegs[i] = e.Cache.Deprepare(cap)
		}
	}

	rf.ReceiveEpID = ef.EndpointID
	rf.RunState = objcache.RunRunning

	if ctx.ICW.ExpectReplyCap() {
		replyCap := capx.NewOIDCapability(capx.TypeEntry, 0, replyCapAllocCount, ctx.Target.ProtectedPayload(), ctx.Target.OID())
		rf.CapRegs[0] = replyCap
	}
}

// DeliverException implements spec.md §4.5's exception reply: "set the
// EX bit in the receiver's output ICW and write the 64-bit exception
// code into the first data-word pair."
func DeliverException(outICW *ICW, outData *[MaxDataWords]uint64, code Result) {
	*outICW = outICW.WithException()
	outData[0] = uint64(code)
}
