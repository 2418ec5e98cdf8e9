// Package klog provides the kernel's structured logging sink. It backs
// both internal diagnostic logging (boot milestones, aging-list
// transitions, rescind events) and the KernLog capability's bounded
// user-string emission.
//
// The teacher (gopher-os) logs through an allocation-free printf
// (kfmt/early) because it runs before the Go runtime's allocator is
// available. That constraint does not apply to this hosted simulation
// kernel (see SPEC_FULL.md §1.1), so klog follows the logging idiom used
// elsewhere in the retrieved corpus (nestybox-libs) instead: a
// package-level *logrus.Logger configured once at boot.
package klog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.Mutex
	logger = logrus.New()
)

// L returns the package-level kernel logger.
func L() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// SetLevel adjusts the minimum severity the kernel logger emits.
func SetLevel(level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(level)
}

// SetOutput redirects where log records are written; tests use this to
// capture output into a buffer instead of stderr.
func SetOutput(w interface{ Write([]byte) (int, error) }) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// MaxKernLogBytes is the bound on a single KernLog.log invocation's
// message length, per spec.md §4.6.
const MaxKernLogBytes = 255

// KernLogResult is returned by Emit so the KernLog capability handler can
// translate truncation into the appropriate invocation result code
// without this package needing to know about invoke.Result.
type KernLogResult uint8

const (
	// KernLogOK indicates the message was accepted and logged in full.
	KernLogOK KernLogResult = iota
	// KernLogTooLong indicates msg exceeded MaxKernLogBytes and was
	// rejected outright (the handler must not silently truncate, since
	// a truncated log message could hide information from an operator
	// relying on it, and the bound exists precisely to keep a single
	// hostile process from flooding the log).
	KernLogTooLong
)

// Emit logs a single bounded KernLog message tagged with the originating
// process's OID.
func Emit(processOID uint64, msg string) KernLogResult {
	if len(msg) > MaxKernLogBytes {
		return KernLogTooLong
	}
	L().WithField("process", processOID).Info(msg)
	return KernLogOK
}
