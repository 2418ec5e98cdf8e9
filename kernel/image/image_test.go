package image

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/hal/simhal"
	"github.com/vsrinivas/coyotos/kernel/objcache"
	"github.com/vsrinivas/coyotos/kernel/store"
)

func newCache() *objcache.Cache {
	h := simhal.New(256, 4096)
	st := store.NewFSStore(afero.NewMemMapFs(), "/obj")
	return objcache.New(h, st, objcache.Sizes{})
}

func buildImage(t *testing.T, pages [][]byte, oids []uint64) []byte {
	t.Helper()
	var buf bytes.Buffer
	hdr := CoyImgHdr{
		Magic:     Magic,
		Version:   1,
		TargetID:  1,
		PageSize:  4096,
		NumFrames: uint32(len(pages)),
	}
	require.NoError(t, binary.Write(&buf, byteOrder, hdr))
	for i, data := range pages {
		eh := entryHeader{Type: uint8(capx.TypePage), OID: oids[i], AllocCount: 1}
		require.NoError(t, binary.Write(&buf, byteOrder, eh))
		buf.Write(data)
	}
	return buf.Bytes()
}

func TestLoadInstallsPageFrames(t *testing.T) {
	cache := newCache()
	page0 := make([]byte, 4096)
	page0[0] = 0xAB
	page1 := make([]byte, 4096)
	page1[1] = 0xCD

	raw := buildImage(t, [][]byte{page0, page1}, []uint64{100, 101})

	hdr, err := Load(bytes.NewReader(raw), cache)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), hdr.NumFrames)

	got, ok := cache.Lookup(capx.TypePage, 100)
	require.True(t, ok)
	pf, _ := got.Page()
	assert.Equal(t, byte(0xAB), pf.Data[0])

	got2, ok := cache.Lookup(capx.TypePage, 101)
	require.True(t, ok)
	pf2, _ := got2.Page()
	assert.Equal(t, byte(0xCD), pf2.Data[1])
}

func TestLoadRejectsBadMagic(t *testing.T) {
	cache := newCache()
	var buf bytes.Buffer
	hdr := CoyImgHdr{Magic: [8]byte{'x', 'x', 'x', 'x', 'x', 'x', 'x', 'x'}}
	require.NoError(t, binary.Write(&buf, byteOrder, hdr))

	_, err := Load(&buf, cache)
	assert.ErrorIs(t, err, ErrBadMagic)
}
