package walker

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/vsrinivas/coyotos/kernel/hal"
	"github.com/vsrinivas/coyotos/kernel/objcache"
)

// Referent identifies one entry in the reverse map: either a PTE
// installed against a Page/mapping table (indirect), or a process's
// top-level address-space mapping slot (direct), per spec.md §4.4's
// three install primitives (process-mapping, pte-mapping, pte-page).
type Referent struct {
	PTE      hal.PTE
	ProcOID  uint64 // set instead of PTE for a process-mapping referent
	IsProc   bool
	FromPage *objcache.Header // the Page or Mapping header this referent was installed from, for bookkeeping
}

// RevMap is the reverse map from spec.md §4.4: for each Page and each
// Mapping table, the set of referents that point at it. Grounded on the
// same mapset.Set membership idiom as DependTable.
type RevMap struct {
	byTarget map[*objcache.Header]mapset.Set
}

// NewRevMap constructs an empty RevMap.
func NewRevMap() *RevMap {
	return &RevMap{byTarget: make(map[*objcache.Header]mapset.Set)}
}

// InstallProcessMapping records that process procOID's top-level mapping
// slot references target directly.
func (r *RevMap) InstallProcessMapping(target *objcache.Header, procOID uint64) {
	r.set(target).Add(Referent{ProcOID: procOID, IsProc: true, FromPage: target})
}

// InstallPTEMapping records that the PTE pte, installed against an
// indirect mapping table, references target.
func (r *RevMap) InstallPTEMapping(target *objcache.Header, pte hal.PTE) {
	r.set(target).Add(Referent{PTE: pte, FromPage: target})
}

// InstallPTEPage records that the PTE pte, installed as a leaf
// translation, references the Page target.
func (r *RevMap) InstallPTEPage(target *objcache.Header, pte hal.PTE) {
	r.set(target).Add(Referent{PTE: pte, FromPage: target})
}

func (r *RevMap) set(target *objcache.Header) mapset.Set {
	s, ok := r.byTarget[target]
	if !ok {
		s = mapset.NewSet()
		r.byTarget[target] = s
	}
	return s
}

// Whack walks every revmap entry referencing target, invalidates the
// corresponding PTE through h (which performs any required TLB
// shootdown), and removes target's bucket entirely, per spec.md §4.4's
// invariant: "after whacking a page [or mapping], no hardware PTE
// anywhere refers to that frame."
func (r *RevMap) Whack(h hal.HAL, target *objcache.Header) {
	s, ok := r.byTarget[target]
	if !ok {
		return
	}
	for it := range s.Iter() {
		ref := it.(Referent)
		if ref.IsProc {
			continue // process top-level slots are cleared by the caller, not via PTE invalidation
		}
		h.InvalidatePTE(ref.PTE)
	}
	delete(r.byTarget, target)
}

// ReferentsFor returns every referent currently recorded against target,
// primarily for tests.
func (r *RevMap) ReferentsFor(target *objcache.Header) []Referent {
	s, ok := r.byTarget[target]
	if !ok {
		return nil
	}
	out := make([]Referent, 0, s.Cardinality())
	for it := range s.Iter() {
		out = append(out, it.(Referent))
	}
	return out
}
