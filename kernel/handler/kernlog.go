package handler

import (
	"bytes"
	"encoding/binary"

	"github.com/vsrinivas/coyotos/kernel/invoke"
	"github.com/vsrinivas/coyotos/kernel/klog"
)

// KernLogHandler handles the KernLog capability's single opcode, per
// spec.md §4.6. KernLog is never swizzled, so there is no TargetHeader;
// the message itself is small enough to fit in the parameter block's
// data words (7 words, 56 bytes) rather than needing the bulk send
// buffer a real KernLog.log would use for klog.MaxKernLogBytes (255) --
// this simulation kernel has no generic user-memory byte reader wired
// into invoke.Context, so a message is at most the 56 bytes of those
// words (up to the first NUL byte), a narrower bound than
// klog.MaxKernLogBytes, recorded as a simplification in DESIGN.md. Since
// 56 bytes is under klog.MaxKernLogBytes, the KernLogTooLong branch below
// is never taken from this handler.
type KernLogHandler struct{}

func (KernLogHandler) Invoke(ctx *invoke.Context) invoke.Result {
	switch ctx.Params.Opcode() {
	case opKernLogLog:
		var buf bytes.Buffer
		for _, w := range ctx.Params.DataWords[1:] {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], w)
			buf.Write(b[:])
		}
		msg := buf.Bytes()
		if n := bytes.IndexByte(msg, 0); n >= 0 {
			msg = msg[:n]
		}
		switch klog.Emit(ctx.InvokerOID, string(msg)) {
		case klog.KernLogTooLong:
			ctx.Transaction.CommitPoint()
			return invoke.RequestError
		default:
			ctx.Transaction.CommitPoint()
			return invoke.OK
		}

	default:
		ctx.Transaction.CommitPoint()
		return invoke.UnknownRequest
	}
}
