package invoke

import (
	"sync"

	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/hal"
	"github.com/vsrinivas/coyotos/kernel/objcache"
	"github.com/vsrinivas/coyotos/kernel/sched"
	"github.com/vsrinivas/coyotos/kernel/walker"
)

// Handler dispatches the opcodes of one capability type (or family),
// per spec.md §4.6's linear fallthrough chain (CapPage -> AddressSpace
// -> Memory -> Cap). Implementations live in package handler; this
// package only defines the seam so it never has to import handler
// (which itself imports invoke for Context/Result), avoiding an import
// cycle.
type Handler interface {
	// Invoke runs one opcode against ctx.Target/ctx.TargetHeader,
	// writing results into ctx.Reply before calling
	// ctx.Transaction.CommitPoint. It returns the result code to report
	// to the invoker (OK on success).
	Invoke(ctx *Context) Result
}

// HandlerTable maps a capability type to the Handler responsible for it.
// A type with no entry is handled by the bareCapHandler fallback in
// Engine.dispatch, which answers getType and reports every other opcode,
// destroy included, as UnknownRequest.
type HandlerTable map[capx.Type]Handler

// Reply accumulates the output of one kernel-capability invocation step:
// the result code plus outgoing data/capability words a handler writes
// before its commit point, per spec.md §4.5's send-phase contract step 4.
type Reply struct {
	Result    Result
	DataWords [MaxDataWords]uint64
	DataCount int
	CapWords  [MaxCapWords]capx.Capability
	CapCount  int
}

// Context is the per-invocation state threaded through capability
// preparation, handler dispatch, and reply delivery. It is the
// generalization of the teacher's vmm fault context: one struct built
// fresh per trap, passed by pointer, torn down when the driver loop
// returns.
type Context struct {
	Transaction *sched.Transaction

	ICW    ICW
	Params *InvParameterBlock

	InvokerOID uint64
	Invoker    *objcache.Header // Process frame of the invoking process

	// Target is the resolved (possibly re-swizzled or nulled)
	// capability named by Params.InvokedCap; TargetHeader is its
	// resident frame, or nil for non-object types.
	Target       capx.Capability
	TargetHeader *objcache.Header

	// Cache/HAL/RevMap/Depend/IRQ/Sleep are the shared kernel-state
	// tables a per-type handler (package handler) needs beyond the
	// already-resolved Target: object allocation/prepare, the walker's
	// translation-cache tables, and the IRQ/sleep stall-queue tables.
	// They are the same instances Engine was constructed with -- no
	// handler ever constructs its own.
	Cache  *objcache.Cache
	HAL    hal.HAL
	RevMap *walker.RevMap
	Depend *walker.DependTable
	IRQ    *sched.IRQTable
	Sleep  *sched.SleepQueue

	// ResolveCap resolves an argument capability location (e.g. a
	// SendCapLocs entry naming the object passed to Range.rescind),
	// using the same REG/MEM resolution rules as the invoked capability
	// itself.
	ResolveCap func(loc CapLocation) (capx.Capability, Result)

	// WriteInvoked writes a replacement capability back into the exact
	// slot the invoked capability was read from, per spec.md §4.6
	// opcodes that mutate the capability in place (reduce, setGuard,
	// guardedSetSlot's guard half). Returns RequestError if the
	// invocation provided no means to write back (e.g. a MEM location
	// with no memory accessor configured).
	WriteInvoked func(cap capx.Capability) Result

	Reply Reply
}

// Engine ties capability preparation (objcache), the handler table, and
// the commit-point driver loop (sched) together into the send/receive
// phase protocol from spec.md §4.5. It holds no process-table of its
// own: callers of InvokeCap own the mapping from OID to resident Process
// frame and pass resolved headers in.
type Engine struct {
	HAL      hal.HAL
	Cache    *objcache.Cache
	Handlers HandlerTable
	RevMap   *walker.RevMap
	Depend   *walker.DependTable
	IRQ      *sched.IRQTable
	Sleep    *sched.SleepQueue

	mu         sync.Mutex
	recvQueues map[uint64]*sched.Queue // endpoint ID -> waiting senders
}

// NewEngine constructs an Engine over the given HAL, object cache, and
// handler table, with fresh (empty) RevMap/DependTable/IRQTable/
// SleepQueue instances. Callers that need to share these tables with
// other subsystems (e.g. a fault-dispatch path installing translations
// outside of an invocation) should construct the Engine field-by-field
// instead and assign the shared instances directly.
func NewEngine(h hal.HAL, cache *objcache.Cache, handlers HandlerTable) *Engine {
	return &Engine{
		HAL:        h,
		Cache:      cache,
		Handlers:   handlers,
		RevMap:     walker.NewRevMap(),
		Depend:     walker.NewDependTable(),
		IRQ:        sched.NewIRQTable(),
		Sleep:      sched.NewSleepQueue(),
		recvQueues: make(map[uint64]*sched.Queue),
	}
}

// queueFor returns (creating if necessary) the send-blocked queue for
// endpoint epID.
func (e *Engine) queueFor(epID uint64) *sched.Queue {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, ok := e.recvQueues[epID]
	if !ok {
		q = sched.NewQueue()
		e.recvQueues[epID] = q
	}
	return q
}

// dispatch resolves the handler chain for typ and runs it, defaulting to
// bareCapHandler for types with no registered Handler, per spec.md
// §4.6's "getType is always overridden; destroy defaults to invoking the
// space bank's destroy path; unknown opcodes produce UnknownRequest."
func (e *Engine) dispatch(ctx *Context) Result {
	typ := ctx.Target.Type()
	if h, ok := e.Handlers[typ]; ok {
		return h.Invoke(ctx)
	}
	return bareCapHandler(ctx)
}

// bareCapHandler implements the base of the fallthrough chain directly:
// it answers getType (opcode 0); destroy (opcode 1) and every other
// opcode report UnknownRequest.
func bareCapHandler(ctx *Context) Result {
	switch ctx.Params.Opcode() {
	case OpGetType:
		ctx.Reply.DataWords[0] = uint64(ctx.Target.Type())
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return OK
	case OpDestroy:
		// Destroying an object outside of its owning Range/space-bank
		// handler is not modeled at this base level; report the
		// opcode as unimplemented here rather than silently no-op.
		return UnknownRequest
	default:
		return UnknownRequest
	}
}

// Opcodes shared by every capability type per spec.md §4.6's Cap base
// handler. Type-specific opcodes are defined alongside their handlers in
// package handler.
const (
	OpGetType uint32 = 0
	OpDestroy uint32 = 1
)

// RestrictedToGetType reports whether cap's restrictions limit the
// invoker to the bare getType opcode, per spec.md §4.6: "Handlers must
// enforce that Restart-restricted process capabilities may only invoke
// getType."
func RestrictedToGetType(cap capx.Capability) bool {
	return cap.Restrictions().Has(capx.RestrNoCall)
}
