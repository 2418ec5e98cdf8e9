package walker

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/vsrinivas/coyotos/kernel/hal"
	"github.com/vsrinivas/coyotos/kernel/objcache"
)

// DependEntry records that walking through producer's slotMask slots
// produced the PTEs basePTE+slotBias*stride through
// basePTE+(slotMask-bit-count)*stride, per spec.md §4.4. Entries sharing
// (Producer, Map, L2SlotSpan) are merged by OR-ing SlotMask and lowering
// BasePTE/SlotBias in lockstep.
type DependEntry struct {
	Producer   *objcache.Header // the GPT frame this entry depends on
	Map        *objcache.Header // the mapping-table frame the PTEs live under, nil for process-direct
	SlotMask   uint32
	BasePTE    hal.PTE
	L2SlotSpan uint8
	SlotBias   uint32
}

// DependTable is the producer-GPT -> produced-PTEs index from spec.md
// §4.4. Grounded on the id/group-set idiom in
// nestybox-sysbox-libs/idShiftUtils.GetDirIDs (mapset.NewSet() accumulating
// membership discovered while walking a tree), reused here to track the
// set of PTEs dependent on a producer rather than a set of uids/gids.
type DependTable struct {
	// byProducer maps a GPT header to the set of DependEntry indices
	// (into entries) recorded against it, so invalidation can find every
	// entry for a producer without a linear scan.
	byProducer map[*objcache.Header]mapset.Set
	entries    []*DependEntry
}

// NewDependTable constructs an empty DependTable.
func NewDependTable() *DependTable {
	return &DependTable{byProducer: make(map[*objcache.Header]mapset.Set)}
}

// Record adds (or merges into an existing) DependEntry for producer.
// Merge candidates are entries matching (Producer, Map, L2SlotSpan); on
// merge, SlotMask is OR'd and BasePTE/SlotBias are lowered to the
// minimum of the two entries, per spec.md §4.4.
func (d *DependTable) Record(e DependEntry) {
	set, ok := d.byProducer[e.Producer]
	if !ok {
		set = mapset.NewSet()
		d.byProducer[e.Producer] = set
	}

	for it := range set.Iter() {
		idx := it.(int)
		existing := d.entries[idx]
		if existing.Map == e.Map && existing.L2SlotSpan == e.L2SlotSpan {
			existing.SlotMask |= e.SlotMask
			if e.BasePTE < existing.BasePTE {
				existing.BasePTE = e.BasePTE
			}
			if e.SlotBias < existing.SlotBias {
				existing.SlotBias = e.SlotBias
			}
			return
		}
	}

	idx := len(d.entries)
	d.entries = append(d.entries, &e)
	set.Add(idx)
}

// EntriesFor returns every DependEntry recorded against producer.
func (d *DependTable) EntriesFor(producer *objcache.Header) []*DependEntry {
	set, ok := d.byProducer[producer]
	if !ok {
		return nil
	}
	out := make([]*DependEntry, 0, set.Cardinality())
	for it := range set.Iter() {
		out = append(out, d.entries[it.(int)])
	}
	return out
}

// Invalidate removes every entry recorded against producer and returns
// the set of PTEs they describe, for the caller to pass to
// hal.HAL.InvalidatePTE. The slot mask is expanded into one PTE per set
// bit using BasePTE/SlotBias/L2SlotSpan.
func (d *DependTable) Invalidate(producer *objcache.Header) []hal.PTE {
	entries := d.EntriesFor(producer)
	var ptes []hal.PTE
	for _, e := range entries {
		for bit := 0; bit < 32; bit++ {
			if e.SlotMask&(1<<uint(bit)) == 0 {
				continue
			}
			ptes = append(ptes, e.BasePTE+hal.PTE(uint32(bit)+e.SlotBias)<<e.L2SlotSpan)
		}
	}
	delete(d.byProducer, producer)
	return ptes
}
