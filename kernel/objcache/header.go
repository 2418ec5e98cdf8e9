// Package objcache implements the fixed-size object cache from spec.md
// §3.2-§3.4 and §4.2: frame headers, the object-table, per-type aging
// pools (active/check/reclaim), the object hash, and the Prepare/
// PrepAndLock/Deprepare/GC capability operations from spec.md §4.1 (which
// live here rather than in package capx because they need header/lock
// access -- capx stays a pure value-type package, see DESIGN.md).
package objcache

import (
	"container/list"
	"sync"

	"github.com/vsrinivas/coyotos/kernel/capx"
)

// Flags are the per-header bits from spec.md §3.2.
type Flags uint8

const (
	FlagCurrent Flags = 1 << iota
	FlagSnapshot
	FlagDirty
	FlagPinned
	FlagHasDiskCaps
)

// AgingList names which of a type's three aging lists a frame currently
// occupies, per spec.md §3.4.
type AgingList uint8

const (
	ListNone AgingList = iota
	ListActive
	ListCheck
	ListReclaim
)

// Header is the common frame header shared by every cacheable object
// type, per spec.md §3.2.
type Header struct {
	mu sync.Mutex

	Type       capx.Type
	OID        uint64
	AllocCount uint32
	Flags      Flags

	// OTEPtr mirrors the source's header->otIndex: the object-table
	// entry recording this frame's identity at the moment it was last
	// swizzled into a capability.
	OTEPtr *capx.OTE

	// frame holds the type-specific payload (PageFrame, CapPageFrame,
	// GPTFrame, ProcessFrame, EndpointFrame); callers use the typed
	// accessors below (Page, GPT, Process, ...) rather than reaching
	// into this field.
	frame interface{}

	agingList AgingList
	agingElem *list.Element // this header's node in its current aging list
}

// Lock/Unlock implement the per-object lock referenced throughout §4 and
// §5. It is a plain mutex here; the generation-valued *transient*
// semantics described in spec.md §5 belong to process locks (package
// sched), not object locks -- object locks are held for the duration of
// a single handler step and released explicitly, never gang-released.
func (h *Header) Lock()   { h.mu.Lock() }
func (h *Header) Unlock() { h.mu.Unlock() }

// HasFlags reports whether all bits of want are set.
func (h *Header) HasFlags(want Flags) bool { return h.Flags&want == want }

// SetFlags/ClearFlags mutate the header's flag bitmask, mirroring the
// teacher's pageTableEntry.SetFlags/ClearFlags idiom.
func (h *Header) SetFlags(f Flags)   { h.Flags |= f }
func (h *Header) ClearFlags(f Flags) { h.Flags &^= f }

// PageFrame is a Page object's extra state, per spec.md §3.2.
type PageFrame struct {
	Data    []byte
	Product []*Header // GPT frames this page has produced, i.e. page-table pages
}

// CapPageFrame is a CapPage object's extra state: 256 capability slots.
type CapPageFrame struct {
	Slots [256]capx.Capability
}

// GPTFrame is a Guarded Page Table object's extra state, per spec.md
// §3.2 and §3.6. Slot 15 is the handler slot when HA is set; slot 14 is
// the background slot when BG is set; when BG is set only the lower 8
// slots are addressable.
type GPTFrame struct {
	L2V   uint8
	HA    bool
	BG    bool
	Slots [16]capx.Capability
}

// AddressableSlots returns the number of slots a walker may index into,
// per spec.md §4.3 step 2.
func (g *GPTFrame) AddressableSlots() int {
	if g.BG {
		return 8
	}
	return 16
}

// RunState is a Process object's execution state, per spec.md §3.2.
type RunState uint8

const (
	RunRunning RunState = iota
	RunReceiving
	RunFaulted
)

// ProcessFrame is a Process object's extra state.
type ProcessFrame struct {
	RunState    RunState
	Flags       uint32
	SoftInts    uint32
	FaultCode   uint32
	FaultInfo   uint64
	FixedRegs   [32]uint64
	FloatRegs   [32]uint64
	SoftRegs    [8]uint64
	CapRegs     [16]capx.Capability
	Schedule    capx.Capability
	AddrSpace   capx.Capability
	Brand       capx.Capability
	Cohort      capx.Capability
	IOSpace     capx.Capability
	Handler     capx.Capability
	ReceiveEpID uint64

	// SavedICW models the soft per-process state the invocation
	// engine reads and writes across a trap; kept here rather than in
	// package invoke since it is part of this frame's persistent state.
	SavedICW uint64

	// WakeAtUsec is the absolute wake time (microseconds since an
	// engine-defined epoch) recorded by the Sleep capability's
	// sleepTill opcode, per spec.md §4.6/§8 scenario 6. Zero means the
	// process is not parked on the sleep queue.
	WakeAtUsec uint64
}

// EndpointFrame is an Endpoint object's extra state.
type EndpointFrame struct {
	PayloadMatch bool
	ProtPayload  uint32
	EndpointID   uint64
	Recipient    capx.Capability // must be Process or Null
}

// Page returns the header's PageFrame payload; ok is false if h is not a
// Page.
func (h *Header) Page() (*PageFrame, bool) { f, ok := h.frame.(*PageFrame); return f, ok }

// CapPage returns the header's CapPageFrame payload.
func (h *Header) CapPage() (*CapPageFrame, bool) { f, ok := h.frame.(*CapPageFrame); return f, ok }

// GPT returns the header's GPTFrame payload.
func (h *Header) GPT() (*GPTFrame, bool) { f, ok := h.frame.(*GPTFrame); return f, ok }

// Process returns the header's ProcessFrame payload.
func (h *Header) Process() (*ProcessFrame, bool) { f, ok := h.frame.(*ProcessFrame); return f, ok }

// Endpoint returns the header's EndpointFrame payload.
func (h *Header) Endpoint() (*EndpointFrame, bool) { f, ok := h.frame.(*EndpointFrame); return f, ok }
