package invoke

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/objcache"
)

// CapWriter writes a capability to a CapLocation, the dual of
// resolveCapLocation/MemCapResolver; used by CopyCap's destination slot.
type CapWriter func(invoker *objcache.Header, loc CapLocation, cap capx.Capability) Result

// BuildCapWriter adapts a MemCapWriter (addr-keyed) into a full CapWriter
// that also handles CapLocReg by writing directly into the invoker's
// register file, so callers only have to supply the memory half.
func BuildCapWriter(writeMem MemCapWriter) CapWriter {
	return func(invoker *objcache.Header, loc CapLocation, cap capx.Capability) Result {
		switch loc.Kind {
		case CapLocReg:
			pf, ok := invoker.Process()
			if !ok || loc.Reg < 0 || loc.Reg >= len(pf.CapRegs) {
				return RequestError
			}
			pf.CapRegs[loc.Reg] = cap
			return OK
		case CapLocMem:
			if writeMem == nil {
				return RequestError
			}
			return writeMem(invoker, loc.Addr, cap)
		default:
			return RequestError
		}
	}
}

// CopyCap implements the CopyCap(src,dst) numeric operation from
// spec.md §6: copy the capability at src to dst, applying Weaken so the
// destination can never carry more authority than a Restrict-weakened
// view would allow a non-privileged slot to hold. This never touches the
// object cache or the scheduler -- it is a pure register/memory
// operation, hence it is not driven through sched.Drive.
func (e *Engine) CopyCap(invoker *objcache.Header, src, dst CapLocation, resolveMem MemCapResolver, writeCap CapWriter) Result {
	cap, result := e.resolveCapLocation(invoker, src, resolveMem)
	if result != OK {
		return result
	}
	if writeCap == nil {
		return RequestError
	}
	return writeCap(invoker, dst, capx.Weaken(cap))
}

// Yield implements the Yield numeric operation from spec.md §6: give up
// the remainder of the current quantum without otherwise changing
// process state. The scheduler (package sched) owns what "give up the
// CPU" means in terms of the ready queue; this package-level function
// value is the one seam for that choice. Its default does nothing.
var Yield = func() {}
