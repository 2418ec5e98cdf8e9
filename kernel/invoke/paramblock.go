package invoke

import "github.com/vsrinivas/coyotos/kernel/capx"

// MaxDataWords/MaxCapWords are the fixed transfer limits from spec.md §6:
// "up to 8 data words ... up to 4 send-cap locations, up to 4 receive-cap
// locations".
const (
	MaxDataWords = 8
	MaxCapWords  = 4
)

// InvParameterBlock is the architecture-independent view of the
// InvokeCap parameter block described in spec.md §6: the ICW plus the
// fields an entry-glue trap handler would otherwise have scattered across
// registers and a user-memory tail. Only the soft (non-ICW) fields are
// snapshotted here; the ICW itself is threaded separately so callers can
// rewrite it (e.g. Sleep's restart-safe ICW rewrite from spec.md §4.5)
// without re-reading the whole block.
type InvParameterBlock struct {
	// DataWords holds up to MaxDataWords words of send/receive payload;
	// only the first ICW.LastDataWord()+1 are meaningful.
	DataWords [MaxDataWords]uint64

	// InvokedCap names the capability being invoked.
	InvokedCap CapLocation

	// SendCapLocs/RecvCapLocs name the up-to-4 capability locations
	// transferred on send/receive; only the first
	// ICW.LastCapWord()+1 are meaningful.
	SendCapLocs [MaxCapWords]CapLocation
	RecvCapLocs [MaxCapWords]CapLocation

	// SendLen/SendPtr describe an optional bulk send buffer in user
	// memory; RecvBound/RecvPtr describe the matching receive buffer.
	SendLen   uint64
	SendPtr   uint64
	RecvBound uint64
	RecvPtr   uint64

	// EndpointID is the 64-bit endpoint identifier used for closed-wait
	// matching (ICW.ClosedWait()).
	EndpointID uint64
}

// SendCaps returns the subslice of SendCapLocs actually in use, per the
// ICW's last-cap-word index.
func (p *InvParameterBlock) SendCaps(w ICW) []CapLocation {
	return p.SendCapLocs[:clampIndex(w.LastCapWord())]
}

// RecvCaps returns the subslice of RecvCapLocs actually in use.
func (p *InvParameterBlock) RecvCaps(w ICW) []CapLocation {
	return p.RecvCapLocs[:clampIndex(w.LastCapWord())]
}

// Data returns the subslice of DataWords actually in use.
func (p *InvParameterBlock) Data(w ICW) []uint64 {
	return p.DataWords[:clampIndex(w.LastDataWord())]
}

func clampIndex(lastIdx int) int {
	n := lastIdx + 1
	if n < 0 {
		return 0
	}
	if n > MaxDataWords {
		return MaxDataWords
	}
	return n
}

// Opcode returns the handler opcode, conventionally carried in the first
// data word per INV_REQUIRE_ARGS's argument-count convention (the opcode
// itself is not a transferred argument, so handlers that need it consult
// DataWords[0] directly; this accessor documents that convention in one
// place).
func (p *InvParameterBlock) Opcode() uint32 { return uint32(p.DataWords[0]) }

// CapSlot resolves a CapLocation to the capability it currently names,
// using regs for REG locations and mem for MEM locations. mem is supplied
// by the caller (normally a CapPage lookup keyed by the process's
// address space) since resolving a user VA requires the memory walker.
func (p *InvParameterBlock) CapSlot(loc CapLocation, regs *[16]capx.Capability, mem func(addr uint64) (capx.Capability, Result)) (capx.Capability, Result) {
	switch loc.Kind {
	case CapLocReg:
		if loc.Reg < 0 || loc.Reg >= len(regs) {
			return capx.Null, RequestError
		}
		return regs[loc.Reg], OK
	case CapLocMem:
		if mem == nil {
			return capx.Null, RequestError
		}
		return mem(loc.Addr)
	default:
		return capx.Null, RequestError
	}
}
