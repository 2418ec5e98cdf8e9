// Package hal defines the boundary between the kernel object/invocation
// engine and architecture-specific code, per spec.md §1: TLB/mapping
// primitives, register save-area accessors, interrupt masking and atomic
// primitives, and a physical allocator with a transient mapping window.
//
// This mirrors the teacher's kernel/hal package, which exists for exactly
// one reason: to let kernel logic be written, and tested, without
// depending on real hardware. The teacher's HAL wraps a text console; this
// HAL wraps the capability engine's actual hardware dependencies.
package hal

// PhysPage is an opaque handle to one physical page frame, analogous to
// the teacher's pmm.Frame.
type PhysPage uint64

// InvalidPhysPage is returned by allocators on failure.
const InvalidPhysPage PhysPage = ^PhysPage(0)

// PTE is an opaque hardware page-table-entry handle installed by the
// walker's translation cache (package walker). Its concrete shape is
// architecture-specific; the engine only ever compares PTE values for
// equality and passes them back to HAL.InvalidatePTE.
type PTE uint64

// RegSet names one of the per-process register save areas accessed via
// get_pw/set_pw (soft/parameter words) and get_icw/set_icw (the
// invocation control word), per spec.md §1 and §6.
type RegSet uint8

const (
	// RegParamWord identifies the parameter-word save area (get_pw/set_pw).
	RegParamWord RegSet = iota
	// RegICW identifies the invocation-control-word save area (get_icw/set_icw).
	RegICW
)

// HAL is the interface the capability engine programs against. Production
// deployments satisfy it with an architecture backend (out of scope for
// this repository, per spec.md §1); kernel/hal/simhal provides the
// reference implementation used by this repository's own tests and by
// cmd/coyoboot in simulation mode.
type HAL interface {
	// AllocPhysPage reserves one zeroed physical page frame.
	AllocPhysPage() (PhysPage, error)
	// FreePhysPage releases a page frame previously returned by AllocPhysPage.
	FreePhysPage(PhysPage)
	// MapTransient maps a physical page into the kernel's transient
	// mapping window so its contents can be read or written, returning
	// the byte slice backing the page and an unmap function.
	MapTransient(PhysPage) (page []byte, unmap func())

	// InstallPTE publishes a hardware translation for virtAddr ->
	// physPage with the given write permission, returning a handle to
	// the installed entry for later invalidation.
	InstallPTE(virtAddr uint64, physPage PhysPage, writable bool) PTE
	// InvalidatePTE removes a previously installed translation and
	// performs any required TLB shootdown across CPUs currently running
	// against it.
	InvalidatePTE(PTE)

	// GetParamWord/SetParamWord access the n-th parameter-word register
	// (get_pw/set_pw in spec.md §1).
	GetParamWord(proc uint64, n int) uint64
	SetParamWord(proc uint64, n int, v uint64)
	// GetICW/SetICW access the invocation control word register.
	GetICW(proc uint64) uint64
	SetICW(proc uint64, v uint64)
	// GetInvokeCap returns the raw capability location word the
	// trap identified as the invoked capability.
	GetInvokeCap(proc uint64) uint64

	// DisableInterrupts/EnableInterrupts implement the interrupt-masking
	// primitive used around transient-lock gang release.
	DisableInterrupts() (wasEnabled bool)
	EnableInterrupts()

	// PendingIPI reports whether a TLB-shootdown IPI is pending against
	// the calling CPU, consumed at the pre-return-to-user-mode check
	// described in spec.md §5 "TLB consistency".
	PendingIPI() bool
}
