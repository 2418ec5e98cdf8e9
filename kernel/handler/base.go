package handler

import (
	"github.com/vsrinivas/coyotos/kernel/invoke"
)

// handleBase implements the Cap base of the fallthrough chain for the
// handlers that call it: getType reports the target's type, and destroy
// destroys the target's cache frame (NoAccess if there is none), per
// spec.md §4.6: "destroy defaults to invoking the space bank's destroy
// path." invoke.Engine's bareCapHandler is used only for types with no
// registered handler. Any opcode handleBase doesn't recognize is
// UnknownRequest.
func handleBase(ctx *invoke.Context) invoke.Result {
	switch ctx.Params.Opcode() {
	case invoke.OpGetType:
		ctx.Reply.DataWords[0] = uint64(ctx.Target.Type())
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK
	case invoke.OpDestroy:
		if ctx.TargetHeader == nil {
			ctx.Transaction.CommitPoint()
			return invoke.NoAccess
		}
		ctx.Cache.Destroy(ctx.TargetHeader)
		ctx.Transaction.CommitPoint()
		return invoke.OK
	default:
		ctx.Transaction.CommitPoint()
		return invoke.UnknownRequest
	}
}
