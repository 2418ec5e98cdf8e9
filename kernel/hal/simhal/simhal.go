// Package simhal is the reference HAL implementation used by this
// repository's own tests and by cmd/coyoboot when run without real
// hardware. It models physical memory as a bitmap-tracked arena of
// in-process byte pages, grounded on the teacher's
// kernel/mem/pmm/allocator.BitmapAllocator (pool/bitmap reservation,
// freeCount fast-skip) -- generalized here from "reserve pages for the
// vmm" to "reserve pages for anything that asks the HAL".
package simhal

import (
	"math/bits"
	"sync"

	"github.com/vsrinivas/coyotos/kernel/hal"
)

const wordBits = 64

// SimHAL is a single-process, single-"CPU" HAL good enough to drive every
// invariant in spec.md §8 under go test. PTE installation and shootdown
// are modeled as plain map operations rather than real TLB manipulation.
type SimHAL struct {
	mu sync.Mutex

	pageSize  int
	numPages  uint64
	freeBits  []uint64 // 1 == reserved, 0 == free, mirrors the teacher's bit sense
	freeCount uint64
	pages     [][]byte

	nextPTE hal.PTE
	ptes    map[hal.PTE]struct{}

	paramWords map[uint64][8]uint64
	icw        map[uint64]uint64
	invokeCap  map[uint64]uint64

	interruptsEnabled bool
	pendingIPI        bool
}

// New creates a SimHAL backed by numPages pages of pageSize bytes each.
func New(numPages uint64, pageSize int) *SimHAL {
	words := (numPages + wordBits - 1) / wordBits
	return &SimHAL{
		pageSize:          pageSize,
		numPages:          numPages,
		freeBits:          make([]uint64, words),
		freeCount:         numPages,
		pages:             make([][]byte, numPages),
		ptes:              make(map[hal.PTE]struct{}),
		paramWords:        make(map[uint64][8]uint64),
		icw:               make(map[uint64]uint64),
		invokeCap:         make(map[uint64]uint64),
		interruptsEnabled: true,
	}
}

// AllocPhysPage implements hal.HAL.
func (h *SimHAL) AllocPhysPage() (hal.PhysPage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.freeCount == 0 {
		return hal.InvalidPhysPage, errOutOfMemory
	}

	for block := range h.freeBits {
		word := h.freeBits[block]
		if word == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^word)
		frame := uint64(block)*wordBits + uint64(bit)
		if frame >= h.numPages {
			continue
		}
		h.freeBits[block] |= 1 << uint(bit)
		h.freeCount--
		h.pages[frame] = make([]byte, h.pageSize)
		return hal.PhysPage(frame), nil
	}
	return hal.InvalidPhysPage, errOutOfMemory
}

// FreePhysPage implements hal.HAL.
func (h *SimHAL) FreePhysPage(p hal.PhysPage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	frame := uint64(p)
	if frame >= h.numPages {
		return
	}
	block, bit := frame/wordBits, frame%wordBits
	if h.freeBits[block]&(1<<bit) == 0 {
		return // double free, ignored like markFrame(markFree) on an already-free frame
	}
	h.freeBits[block] &^= 1 << bit
	h.freeCount++
	h.pages[frame] = nil
}

// MapTransient implements hal.HAL.
func (h *SimHAL) MapTransient(p hal.PhysPage) ([]byte, func()) {
	h.mu.Lock()
	page := h.pages[uint64(p)]
	h.mu.Unlock()
	return page, func() {}
}

// InstallPTE implements hal.HAL.
func (h *SimHAL) InstallPTE(virtAddr uint64, physPage hal.PhysPage, writable bool) hal.PTE {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextPTE++
	h.ptes[h.nextPTE] = struct{}{}
	return h.nextPTE
}

// InvalidatePTE implements hal.HAL.
func (h *SimHAL) InvalidatePTE(p hal.PTE) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.ptes, p)
}

// GetParamWord implements hal.HAL.
func (h *SimHAL) GetParamWord(proc uint64, n int) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paramWords[proc][n]
}

// SetParamWord implements hal.HAL.
func (h *SimHAL) SetParamWord(proc uint64, n int, v uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	words := h.paramWords[proc]
	words[n] = v
	h.paramWords[proc] = words
}

// GetICW implements hal.HAL.
func (h *SimHAL) GetICW(proc uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.icw[proc]
}

// SetICW implements hal.HAL.
func (h *SimHAL) SetICW(proc uint64, v uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.icw[proc] = v
}

// GetInvokeCap implements hal.HAL.
func (h *SimHAL) GetInvokeCap(proc uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invokeCap[proc]
}

// SetInvokeCap is a simulation-only helper for tests to stage the invoked
// capability location word before driving an invocation.
func (h *SimHAL) SetInvokeCap(proc uint64, v uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invokeCap[proc] = v
}

// DisableInterrupts implements hal.HAL.
func (h *SimHAL) DisableInterrupts() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	was := h.interruptsEnabled
	h.interruptsEnabled = false
	return was
}

// EnableInterrupts implements hal.HAL.
func (h *SimHAL) EnableInterrupts() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interruptsEnabled = true
}

// PendingIPI implements hal.HAL.
func (h *SimHAL) PendingIPI() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.pendingIPI
	h.pendingIPI = false
	return p
}

// RaiseIPI marks a shootdown IPI as pending; used by tests that exercise
// the "pending IPI examined before return to user mode" check in
// spec.md §5.
func (h *SimHAL) RaiseIPI() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingIPI = true
}

// FreePages reports the number of unreserved pages, mirroring the
// teacher's BitmapAllocator.printStats diagnostic.
func (h *SimHAL) FreePages() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freeCount
}

type simError string

func (e simError) Error() string { return string(e) }

const errOutOfMemory = simError("simhal: out of physical pages")
