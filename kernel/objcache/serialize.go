package objcache

import (
	"encoding/binary"
	"io"

	"github.com/vsrinivas/coyotos/kernel/capx"
)

// byteOrder matches kernel/store's on-disk convention: little-endian
// always, per SPEC_FULL.md §3.7.
var byteOrder = binary.LittleEndian

func writeCap(w io.Writer, c capx.Capability) error {
	// A capability never crosses the store boundary swizzled: OTE
	// pointers are only ever valid within one cache instance's
	// lifetime, so frames are always written back via their unswizzled
	// (OID) form. word0/OID round-trip through capx.Capability.Word0
	// and capx.FromWireWords, the single place that knows the packed
	// layout, rather than duplicating the shift/mask scheme here.
	if err := binary.Write(w, byteOrder, c.Word0()); err != nil {
		return err
	}
	return binary.Write(w, byteOrder, c.OID())
}

func readCap(r io.Reader) (capx.Capability, error) {
	var word0, word1 uint64
	if err := binary.Read(r, byteOrder, &word0); err != nil {
		return capx.Capability{}, err
	}
	if err := binary.Read(r, byteOrder, &word1); err != nil {
		return capx.Capability{}, err
	}
	return capx.FromWireWords(word0, word1), nil
}

// SerializeFrame writes h's type-specific payload in the on-disk wire
// format described in SPEC_FULL.md §3.7. It satisfies kernel/store.Frame.
func (h *Header) SerializeFrame(w io.Writer) error {
	switch f := h.frame.(type) {
	case *PageFrame:
		_, err := w.Write(f.Data)
		return err
	case *CapPageFrame:
		for _, c := range f.Slots {
			if err := writeCap(w, c); err != nil {
				return err
			}
		}
		return nil
	case *GPTFrame:
		if err := binary.Write(w, byteOrder, f.L2V); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, packBools(f.HA, f.BG)); err != nil {
			return err
		}
		for _, c := range f.Slots {
			if err := writeCap(w, c); err != nil {
				return err
			}
		}
		return nil
	case *ProcessFrame:
		return serializeProcessFrame(w, f)
	case *EndpointFrame:
		if err := binary.Write(w, byteOrder, packBools(f.PayloadMatch, false)); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, f.ProtPayload); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, f.EndpointID); err != nil {
			return err
		}
		return writeCap(w, f.Recipient)
	default:
		return nil
	}
}

// DeserializeFrame reads h's type-specific payload, allocating h.frame if
// necessary. It satisfies kernel/store.Frame.
func (h *Header) DeserializeFrame(r io.Reader) error {
	if h.frame == nil {
		h.frame = newFramePayload(h.Type)
	}
	switch f := h.frame.(type) {
	case *PageFrame:
		if f.Data == nil {
			f.Data = make([]byte, 4096)
		}
		_, err := io.ReadFull(r, f.Data)
		return err
	case *CapPageFrame:
		for i := range f.Slots {
			c, err := readCap(r)
			if err != nil {
				return err
			}
			f.Slots[i] = c
		}
		return nil
	case *GPTFrame:
		if err := binary.Read(r, byteOrder, &f.L2V); err != nil {
			return err
		}
		var packed uint8
		if err := binary.Read(r, byteOrder, &packed); err != nil {
			return err
		}
		f.HA, f.BG = unpackBools(packed)
		for i := range f.Slots {
			c, err := readCap(r)
			if err != nil {
				return err
			}
			f.Slots[i] = c
		}
		return nil
	case *ProcessFrame:
		return deserializeProcessFrame(r, f)
	case *EndpointFrame:
		var packed uint8
		if err := binary.Read(r, byteOrder, &packed); err != nil {
			return err
		}
		f.PayloadMatch, _ = unpackBools(packed)
		if err := binary.Read(r, byteOrder, &f.ProtPayload); err != nil {
			return err
		}
		if err := binary.Read(r, byteOrder, &f.EndpointID); err != nil {
			return err
		}
		c, err := readCap(r)
		if err != nil {
			return err
		}
		f.Recipient = c
		return nil
	default:
		return nil
	}
}

func packBools(a, b bool) uint8 {
	var v uint8
	if a {
		v |= 1
	}
	if b {
		v |= 2
	}
	return v
}

func unpackBools(v uint8) (a, b bool) {
	return v&1 != 0, v&2 != 0
}

func serializeProcessFrame(w io.Writer, f *ProcessFrame) error {
	if err := binary.Write(w, byteOrder, f.RunState); err != nil {
		return err
	}
	for _, v := range []uint32{f.Flags, f.SoftInts, f.FaultCode} {
		if err := binary.Write(w, byteOrder, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, byteOrder, f.FaultInfo); err != nil {
		return err
	}
	for _, arr := range [][]uint64{f.FixedRegs[:], f.FloatRegs[:], f.SoftRegs[:]} {
		if err := binary.Write(w, byteOrder, arr); err != nil {
			return err
		}
	}
	for _, c := range f.CapRegs {
		if err := writeCap(w, c); err != nil {
			return err
		}
	}
	for _, c := range []capx.Capability{f.Schedule, f.AddrSpace, f.Brand, f.Cohort, f.IOSpace, f.Handler} {
		if err := writeCap(w, c); err != nil {
			return err
		}
	}
	if err := binary.Write(w, byteOrder, f.ReceiveEpID); err != nil {
		return err
	}
	return binary.Write(w, byteOrder, f.SavedICW)
}

func deserializeProcessFrame(r io.Reader, f *ProcessFrame) error {
	if err := binary.Read(r, byteOrder, &f.RunState); err != nil {
		return err
	}
	for _, v := range []*uint32{&f.Flags, &f.SoftInts, &f.FaultCode} {
		if err := binary.Read(r, byteOrder, v); err != nil {
			return err
		}
	}
	if err := binary.Read(r, byteOrder, &f.FaultInfo); err != nil {
		return err
	}
	for _, arr := range [][]uint64{f.FixedRegs[:], f.FloatRegs[:], f.SoftRegs[:]} {
		if err := binary.Read(r, byteOrder, arr); err != nil {
			return err
		}
	}
	for i := range f.CapRegs {
		c, err := readCap(r)
		if err != nil {
			return err
		}
		f.CapRegs[i] = c
	}
	dests := []*capx.Capability{&f.Schedule, &f.AddrSpace, &f.Brand, &f.Cohort, &f.IOSpace, &f.Handler}
	for _, d := range dests {
		c, err := readCap(r)
		if err != nil {
			return err
		}
		*d = c
	}
	if err := binary.Read(r, byteOrder, &f.ReceiveEpID); err != nil {
		return err
	}
	return binary.Read(r, byteOrder, &f.SavedICW)
}
