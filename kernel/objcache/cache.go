package objcache

import (
	"sync"

	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/hal"
	"github.com/vsrinivas/coyotos/kernel/store"
)

type hashKey struct {
	typ capx.Type
	oid uint64
}

// Sizes are the per-type boot-time cache-sizing hints from spec.md §4.2
// and §6.1; zero means "use the fixed default in defaultSizes". The
// depend hint has no field here.
type Sizes struct {
	Processes int
	GPTs      int
	CapPages  int
	Endpoints int
	Pages     int
}

// defaultSizes fills each zero hint with a fixed constant; the defaults
// do not depend on how much memory is available.
func defaultSizes(s Sizes) Sizes {
	if s.Processes == 0 {
		s.Processes = 256
	}
	if s.GPTs == 0 {
		s.GPTs = 512
	}
	if s.CapPages == 0 {
		s.CapPages = 512
	}
	if s.Endpoints == 0 {
		s.Endpoints = 256
	}
	if s.Pages == 0 {
		s.Pages = 4096
	}
	return s
}

func countForType(s Sizes, t capx.Type) int {
	switch t {
	case capx.TypePage:
		return s.Pages
	case capx.TypeCapPage:
		return s.CapPages
	case capx.TypeGPT:
		return s.GPTs
	case capx.TypeProcess:
		return s.Processes
	case capx.TypeEndpoint:
		return s.Endpoints
	default:
		return 0
	}
}

// Cache is the fixed-size object cache from spec.md §4.2: one
// ObFrameCache (aging pool) per frame type, the object hash, and the
// object-table entries that give prepared capabilities their notion of
// identity.
type Cache struct {
	mu sync.Mutex

	hal   hal.HAL
	store store.Store

	byType map[capx.Type]*ObFrameCache
	hash   map[hashKey]*Header
	otes   map[uint64]*capx.OTE // by OID, so rescind can find a live OTE without a frame

	sizes Sizes
}

// New constructs a Cache sized per sizes (zero fields take defaults),
// backed by h for physical pages and st for load/write-back of frames
// not currently resident.
func New(h hal.HAL, st store.Store, sizes Sizes) *Cache {
	sizes = defaultSizes(sizes)
	c := &Cache{
		hal:    h,
		store:  st,
		byType: make(map[capx.Type]*ObFrameCache),
		hash:   make(map[hashKey]*Header),
		otes:   make(map[uint64]*capx.OTE),
		sizes:  sizes,
	}
	for _, t := range []capx.Type{capx.TypePage, capx.TypeCapPage, capx.TypeGPT, capx.TypeProcess, capx.TypeEndpoint} {
		ofc := newObFrameCache(t)
		for i := 0; i < countForType(sizes, t); i++ {
			ofc.insert(&Header{Type: t, frame: newFramePayload(t)}, ListReclaim)
		}
		c.byType[t] = ofc
	}
	return c
}

// ErrRetryTransaction signals that Alloc (or Prepare) could not be
// satisfied immediately and the caller must sched_abandon_transaction and
// retry, per spec.md §4.2's "soft back-pressure" rule: the engine must
// never block past the commit point.
type ErrRetryTransaction struct{ Reason string }

func (e *ErrRetryTransaction) Error() string { return "objcache: retry: " + e.Reason }

func newFramePayload(typ capx.Type) interface{} {
	switch typ {
	case capx.TypePage:
		return &PageFrame{}
	case capx.TypeCapPage:
		return &CapPageFrame{}
	case capx.TypeGPT:
		return &GPTFrame{}
	case capx.TypeProcess:
		return &ProcessFrame{}
	case capx.TypeEndpoint:
		return &EndpointFrame{}
	default:
		return nil
	}
}

// Alloc draws a free header from the reclaim list for typ. If the
// reclaim list is empty it first runs one check -> reclaim sweep; if that
// still yields nothing the allocation fails with ErrRetryTransaction so
// the calling transaction can abandon and retry, per spec.md §4.2.
func (c *Cache) Alloc(typ capx.Type) (*Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ofc := c.byType[typ]
	if ofc == nil {
		return nil, &ErrRetryTransaction{Reason: "unsupported type"}
	}

	h := ofc.popReclaim()
	if h == nil {
		ofc.scanCheckList(c.markOTEDestroyedLocked)
		h = ofc.popReclaim()
	}
	if h == nil {
		// Nothing reclaimable; try to demote one active frame to
		// begin the observation window for next time, but this
		// transaction must not block waiting for it.
		ofc.demoteOneActive()
		return nil, &ErrRetryTransaction{Reason: "no reclaimable frame for type"}
	}

	if h.HasFlags(FlagDirty) {
		c.writeBackLocked(h)
	}
	delete(c.hash, hashKey{typ: h.Type, oid: h.OID})

	*h = Header{Type: typ, frame: newFramePayload(typ)}
	ofc.insert(h, ListActive)
	return h, nil
}

// Install registers h in the object hash under (h.Type, h.OID) and
// records it as the current version, per spec.md §3.5.
func (c *Cache) Install(h *Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.SetFlags(FlagCurrent)
	c.hash[hashKey{typ: h.Type, oid: h.OID}] = h
}

// Lookup returns the current resident header for (typ, oid), if any.
func (c *Cache) Lookup(typ capx.Type, oid uint64) (*Header, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hash[hashKey{typ: typ, oid: oid}]
	return h, ok
}

// Load brings (typ, oid) into the cache from the backing store if it is
// not already resident, allocating a frame and deserializing its
// contents. May return ErrRetryTransaction if no frame is currently
// available.
func (c *Cache) Load(typ capx.Type, oid uint64) (*Header, error) {
	if h, ok := c.Lookup(typ, oid); ok {
		return h, nil
	}

	h, err := c.Alloc(typ)
	if err != nil {
		return nil, err
	}
	h.OID = oid

	if c.store != nil {
		if err := c.store.Load(uint8(typ), oid, h); err != nil {
			if !store.IsNotFound(err) {
				return nil, err
			}
			// Not found on backing store: treat as a
			// freshly-allocated zero frame, per the image-load
			// boot path semantics (kernel/image seeds frames that
			// do exist; anything else starts zeroed).
		}
	}

	c.Install(h)
	return h, nil
}

// WriteBack flushes h to the backing store if it is dirty, per spec.md
// §4.2: "required only when dirty and only for the current version".
func (c *Cache) WriteBack(h *Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeBackLocked(h)
}

func (c *Cache) writeBackLocked(h *Header) error {
	if !h.HasFlags(FlagDirty) || !h.HasFlags(FlagCurrent) {
		return nil
	}
	if c.store == nil {
		h.ClearFlags(FlagDirty)
		return nil
	}
	if err := c.store.Store(uint8(h.Type), h.OID, h); err != nil {
		return err
	}
	h.ClearFlags(FlagDirty)
	return nil
}

// Clear resets h to its zero frame contents in place, used by
// AddressSpace.erase and similar destructive opcodes.
func (c *Cache) Clear(h *Header) {
	h.frame = newFramePayload(h.Type)
	h.SetFlags(FlagDirty)
}

// UpgradeAge installs a fresh OTE for h (used when a stale prepare
// discovers the object still exists) and moves it back onto the active
// list if it had drifted to check.
func (c *Cache) UpgradeAge(h *Header, newOTE *capx.OTE) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.OTEPtr = newOTE
	if ofc := c.byType[h.Type]; ofc != nil && h.agingList == ListCheck {
		ofc.move(h, ListActive)
	}
}

// GetPhysPage/ReleasePhysPage delegate to the HAL's physical allocator,
// used by Page frames to back their Data.
func (c *Cache) GetPhysPage() (hal.PhysPage, error) { return c.hal.AllocPhysPage() }
func (c *Cache) ReleasePhysPage(p hal.PhysPage)      { c.hal.FreePhysPage(p) }

// OTEFor returns (creating if necessary) the live OTE for the object
// identified by oid. Multiple frame types never share an OID space in
// practice, but the OTE itself is type-agnostic per spec.md §3.3.
func (c *Cache) OTEFor(oid uint64) *capx.OTE {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oteForLocked(oid)
}

func (c *Cache) oteForLocked(oid uint64) *capx.OTE {
	if ote, ok := c.otes[oid]; ok {
		return ote
	}
	ote := &capx.OTE{OID: oid}
	c.otes[oid] = ote
	return ote
}

// DestroyedOTE reports whether the OTE for oid is marked destroyed and
// whether it has been assigned an OTE at all (false, false means the
// object was never swizzled and is not known to be destroyed).
func (c *Cache) DestroyedOTE(oid uint64) (destroyed bool, known bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ote, ok := c.otes[oid]
	if !ok {
		return false, false
	}
	return ote.Destroyed, true
}

func (c *Cache) markOTEDestroyedLocked(h *Header) {
	if h.OTEPtr != nil {
		h.OTEPtr.Destroyed = true
	}
	if ote, ok := c.otes[h.OID]; ok {
		ote.Destroyed = true
	}
}

// Rescind implements the allocation-count bump half of spec.md §4.6's
// Range.rescind: "increments the object's allocation count so that all
// outstanding capabilities become stale." Per the Open Question
// resolution recorded in DESIGN.md, the object itself survives (it is
// not destroyed, merely re-keyed): the header's current OTE, if any, is
// marked destroyed in place -- invalidating every swizzled capability
// still holding a live Go pointer to it, per Prepare's swizzled-path
// check -- and a fresh, non-destroyed OTE is installed for the same OID
// so that freshly minted capabilities (carrying the bumped AllocCount)
// continue to resolve normally. Returns the new allocation count.
func (c *Cache) Rescind(h *Header) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h.OTEPtr != nil {
		h.OTEPtr.Destroyed = true
	}

	h.AllocCount++

	fresh := &capx.OTE{OID: h.OID}
	c.otes[h.OID] = fresh
	h.OTEPtr = fresh

	return h.AllocCount
}

// Destroy immediately reclaims h: clears its contents, removes it from
// the object hash, marks any outstanding OTE destroyed, and returns the
// frame directly to the reclaim list for its type, per spec.md §4.6:
// "destroy defaults to invoking the space bank's destroy path."
func (c *Cache) Destroy(h *Header) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.markOTEDestroyedLocked(h)
	delete(c.hash, hashKey{typ: h.Type, oid: h.OID})

	if ofc := c.byType[h.Type]; ofc != nil {
		ofc.remove(h)
		typ := h.Type
		*h = Header{Type: typ, frame: newFramePayload(typ)}
		ofc.insert(h, ListReclaim)
	}
}

// AgingCounts reports the active/check/reclaim sizes for typ.
func (c *Cache) AgingCounts(typ capx.Type) (active, check, reclaim int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ofc := c.byType[typ]
	if ofc == nil {
		return 0, 0, 0
	}
	return ofc.counts()
}
