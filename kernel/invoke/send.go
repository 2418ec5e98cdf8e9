package invoke

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/objcache"
	"github.com/vsrinivas/coyotos/kernel/sched"
)

// MemCapResolver reads the capability at a user virtual address out of
// the invoker's address space, used for CapLocMem locations. Resolving a
// VA requires the memory walker (package walker) plus the invoker's
// AddrSpace capability, which is outside this package's concern; the
// caller of Engine.InvokeCap passes one in.
type MemCapResolver func(invoker *objcache.Header, addr uint64) (capx.Capability, Result)

// MemCapWriter writes a replacement capability back to the exact user
// virtual address a MEM-form invoked-capability location was read from,
// the dual of MemCapResolver; used to build ctx.WriteInvoked for opcodes
// that mutate the invoked capability in place (reduce, setGuard,
// guardedSetSlot's guard half).
type MemCapWriter func(invoker *objcache.Header, addr uint64, cap capx.Capability) Result

// InvokeCap runs one full InvokeCap trap to completion (including
// Restart retries), returning the reply to deliver to the invoker and
// the final driver outcome (Completed or Park -- Restart never escapes
// Drive). This is the entry point entry-glue calls once per trap.
func (e *Engine) InvokeCap(invokerOID uint64, invoker *objcache.Header, icw ICW, params *InvParameterBlock, resolveMem MemCapResolver, writeMem MemCapWriter) (Reply, sched.Outcome) {
	var final Reply
	outcome := sched.Drive(func(t *sched.Transaction) sched.Outcome {
		ctx := &Context{
			Transaction: t,
			ICW:         icw,
			Params:      params,
			InvokerOID:  invokerOID,
			Invoker:     invoker,
			Cache:       e.Cache,
			HAL:         e.HAL,
			RevMap:      e.RevMap,
			Depend:      e.Depend,
			IRQ:         e.IRQ,
			Sleep:       e.Sleep,
		}
		ctx.ResolveCap = func(loc CapLocation) (capx.Capability, Result) {
			return e.resolveCapLocation(invoker, loc, resolveMem)
		}
		out := e.step(ctx, resolveMem, writeMem)
		final = ctx.Reply
		return out
	})
	return final, outcome
}

// step runs the send phase (if any) followed by the receive phase (if
// any) of a single invocation attempt, per spec.md §4.5.
func (e *Engine) step(ctx *Context, resolveMem MemCapResolver, writeMem MemCapWriter) sched.Outcome {
	if !ctx.ICW.SendPhase() {
		ctx.Transaction.CommitPoint()
		ctx.Reply.Result = OK
		return sched.Completed
	}

	target, result := e.resolveCapLocation(ctx.Invoker, ctx.Params.InvokedCap, resolveMem)
	if result != OK {
		return e.abandonWithException(ctx, result)
	}

	resolved, header, recipient, outcome, result := e.prepareForInvocation(ctx, target)
	if outcome != sched.Completed {
		return outcome
	}
	if result != OK {
		return e.abandonWithException(ctx, result)
	}

	ctx.Target = resolved
	ctx.TargetHeader = header
	ctx.WriteInvoked = func(cap capx.Capability) Result {
		loc := ctx.Params.InvokedCap
		switch loc.Kind {
		case CapLocReg:
			pf, ok := ctx.Invoker.Process()
			if !ok || loc.Reg < 0 || loc.Reg >= len(pf.CapRegs) {
				return RequestError
			}
			pf.CapRegs[loc.Reg] = cap
			return OK
		case CapLocMem:
			if writeMem == nil {
				return RequestError
			}
			return writeMem(ctx.Invoker, loc.Addr, cap)
		default:
			return RequestError
		}
	}

	if recipient != nil {
		// Entry rendezvous: a process-to-process send, not a kernel
		// capability invocation, so there is no opcode handler to run
		// (spec.md §4.5 step 4 only applies "for kernel capabilities").
		e.deliverReceivePhase(ctx, recipient)
		ctx.Reply.Result = OK
		ctx.Transaction.CommitPoint()
		return sched.Completed
	}

	if RestrictedToGetType(resolved) && ctx.Params.Opcode() != OpGetType {
		return e.abandonWithException(ctx, NoAccess)
	}

	var result2 Result
	if ctx.TargetHeader != nil {
		ctx.TargetHeader.Lock()
		result2 = e.dispatch(ctx)
		ctx.TargetHeader.Unlock()
	} else {
		result2 = e.dispatch(ctx)
	}
	result = result2
	if !ctx.Transaction.Committed() {
		// A handler that returns without reaching its commit point and
		// without abandoning/restarting is a programming error; treat
		// it as an internal request error rather than silently
		// committing on its behalf.
		return e.abandonWithException(ctx, RequestError)
	}
	ctx.Reply.Result = result
	if result != OK {
		ctx.Reply.DataWords[0] = uint64(result)
		ctx.Reply.DataCount = 1
	}
	return sched.Completed
}

// abandonWithException reports result as an exception reply without
// retrying -- spec.md §7: "errors are surfaced to the invoker as
// exception replies ... They are never retried by the kernel."
func (e *Engine) abandonWithException(ctx *Context, result Result) sched.Outcome {
	ctx.Reply.Result = result
	ctx.Reply.DataWords[0] = uint64(result)
	ctx.Reply.DataCount = 1
	ctx.Transaction.CommitPoint()
	return sched.Completed
}

// resolveCapLocation reads the capability named by loc out of the
// invoker's register file or memory.
func (e *Engine) resolveCapLocation(invoker *objcache.Header, loc CapLocation, resolveMem MemCapResolver) (capx.Capability, Result) {
	switch loc.Kind {
	case CapLocReg:
		pf, ok := invoker.Process()
		if !ok {
			return capx.Null, RequestError
		}
		if loc.Reg < 0 || loc.Reg >= len(pf.CapRegs) {
			return capx.Null, RequestError
		}
		return pf.CapRegs[loc.Reg], OK
	case CapLocMem:
		if resolveMem == nil {
			return capx.Null, RequestError
		}
		return resolveMem(invoker, loc.Addr)
	default:
		return capx.Null, RequestError
	}
}

// prepareForInvocation implements prepare_for_invocation from spec.md
// §4.5 step 3: for Entry capabilities, verify the endpoint's
// protected-payload match, resolve the recipient process, and check
// receiver readiness (enqueueing or reporting RequestWouldBlock);
// for any other capability, a plain objcache Prepare suffices and there
// is no recipient to rendezvous with.
func (e *Engine) prepareForInvocation(ctx *Context, target capx.Capability) (resolved capx.Capability, header *objcache.Header, recipient *objcache.Header, outcome sched.Outcome, result Result) {
	if target.Type() != capx.TypeEntry {
		resolved, header, err := e.Cache.Prepare(target)
		if err != nil {
			if _, ok := err.(*objcache.ErrRetryTransaction); ok {
				return capx.Null, nil, nil, ctx.Transaction.RestartTransaction(), OK
			}
			return capx.Null, nil, nil, sched.Completed, RequestError
		}
		return resolved, header, nil, sched.Completed, OK
	}

	endpoint, err := e.Cache.Load(capx.TypeEndpoint, target.OID())
	if err != nil {
		if _, ok := err.(*objcache.ErrRetryTransaction); ok {
			return capx.Null, nil, nil, ctx.Transaction.RestartTransaction(), OK
		}
		return capx.Null, nil, nil, sched.Completed, InvalidDataReference
	}
	ef, ok := endpoint.Endpoint()
	if !ok {
		return capx.Null, nil, nil, sched.Completed, InvalidDataReference
	}
	if ef.PayloadMatch && ef.ProtPayload != target.ProtectedPayload() {
		return capx.Null, nil, nil, sched.Completed, NoAccess
	}

	recipCap, recipHeader, err := e.Cache.Prepare(ef.Recipient)
	if err != nil {
		if _, ok := err.(*objcache.ErrRetryTransaction); ok {
			return capx.Null, nil, nil, ctx.Transaction.RestartTransaction(), OK
		}
		return capx.Null, nil, nil, sched.Completed, RequestError
	}
	if recipCap.Type() != capx.TypeProcess || recipHeader == nil {
		return capx.Null, nil, nil, sched.Completed, Closed
	}

	pf, _ := recipHeader.Process()
	ready := pf.RunState == objcache.RunReceiving && receiverAcceptsOpenWait(pf, ef.EndpointID)

	if !ready {
		if ctx.ICW.NonBlocking() {
			return capx.Null, nil, nil, sched.Completed, RequestWouldBlock
		}
		e.queueFor(ef.EndpointID).PushBack(sched.ProcOID(ctx.InvokerOID))
		return capx.Null, nil, nil, ctx.Transaction.AbandonTransaction(), OK
	}

	return target, endpoint, recipHeader, sched.Completed, OK
}

// receiverAcceptsOpenWait reports whether a receiver waiting without
// ClosedWait (ReceiveEpID == 0, an open wait) or waiting on exactly epID
// will accept a send on epID, per spec.md §4.5's "or open wait" clause.
func receiverAcceptsOpenWait(pf *objcache.ProcessFrame, epID uint64) bool {
	return pf.ReceiveEpID == 0 || pf.ReceiveEpID == epID
}
