package handler

import (
	"github.com/vsrinivas/coyotos/kernel/invoke"
	"github.com/vsrinivas/coyotos/kernel/klog"
)

// SysCtlHandler handles opcodes for the SysCtl capability: halt,
// powerdown, and reboot. SysCtl is never swizzled, so there is no
// TargetHeader; this simulation kernel has no real hardware to power
// down or reset, so each opcode logs its request at the klog Warn level
// and reports OK; nothing is halted, powered down or reset.
type SysCtlHandler struct{}

func (SysCtlHandler) Invoke(ctx *invoke.Context) invoke.Result {
	switch ctx.Params.Opcode() {
	case opSysCtlHalt:
		klog.L().Warn("sysctl: halt requested")
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSysCtlPowerdown:
		klog.L().Warn("sysctl: powerdown requested")
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSysCtlReboot:
		klog.L().Warn("sysctl: reboot requested")
		ctx.Transaction.CommitPoint()
		return invoke.OK

	default:
		ctx.Transaction.CommitPoint()
		return invoke.UnknownRequest
	}
}
