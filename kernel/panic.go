package kernel

import (
	"github.com/vsrinivas/coyotos/kernel/klog"
)

var (
	// haltFn is mocked by tests; its default blocks forever. Kept as a
	// package-level function value the same way the teacher mocks
	// cpu.Halt.
	haltFn = func() { select {} }

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// Fatal logs the supplied error (if any) and halts the kernel. Calls to
// Fatal never return. It corresponds to the source's fatal()/bug() family:
// both indicate an invariant violation rather than a recoverable condition
// and so are never retried by the scheduler (see package sched).
func Fatal(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	default:
		err = errRuntimePanic
	}

	if err != nil {
		klog.L().WithField("module", err.Module).Errorf("unrecoverable error: %s", err.Message)
	}
	klog.L().Error("*** kernel panic: system halted ***")

	haltFn()
}

// Bug reports an internal invariant violation detected by construction
// (commit-point discipline, lock-ordering, etc.) rather than a runtime
// input error. It is the non-elidable counterpart of Assert below.
func Bug(module, message string) {
	Fatal(&Error{Module: module, Message: message})
}

// Assert panics via Fatal when cond is false. Assert is elided (becomes a
// no-op) when the NDEBUG build tag is set, mirroring the source's assert
// macro, which disappears entirely under NDEBUG rather than being merely
// downgraded to a warning.
func Assert(cond bool, module, message string) {
	assertImpl(cond, module, message)
}
