package font

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/testutil"
)

func tablesOf(t *testing.T, ttf []byte) map[string][]byte {
	t.Helper()
	f, err := parseSFNT(ttf)
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, tb := range f.tables {
		out[tb.tag] = tb.data
	}
	return out
}

func TestToWOFF_RoundTripsTables(t *testing.T) {
	ttf := testutil.TTF()
	want := tablesOf(t, ttf)

	woff, err := ToWOFF(ttf)
	require.NoError(t, err)

	be := binary.BigEndian
	require.Equal(t, uint32(woffSignature), be.Uint32(woff[0:4]))
	assert.Equal(t, uint32(0x00010000), be.Uint32(woff[4:8]), "flavor")
	assert.Equal(t, uint32(len(woff)), be.Uint32(woff[8:12]), "length")
	n := int(be.Uint16(woff[12:14]))
	require.Equal(t, len(want), n)

	var prev string
	for i := range n {
		e := woff[woffHeaderSize+i*woffEntrySize:]
		tag := string(e[0:4])
		assert.Greater(t, tag, prev, "directory sorted by tag")
		prev = tag

		off, compLen, origLen := be.Uint32(e[4:8]), be.Uint32(e[8:12]), be.Uint32(e[12:16])
		assert.Zero(t, off%4, "table %s is 4-byte aligned", tag)
		data := woff[off : off+compLen]
		if compLen < origLen {
			zr, err := zlib.NewReader(bytes.NewReader(data))
			require.NoError(t, err)
			data, err = io.ReadAll(zr)
			require.NoError(t, err)
		}
		assert.Equal(t, want[tag], data, "table %s", tag)
	}
}

func TestToWOFF2_Container(t *testing.T) {
	ttf := testutil.TTF()
	want := tablesOf(t, ttf)

	woff2, err := ToWOFF2(ttf)
	require.NoError(t, err)

	be := binary.BigEndian
	require.Equal(t, uint32(woff2Signature), be.Uint32(woff2[0:4]))
	assert.Equal(t, uint32(len(woff2)), be.Uint32(woff2[8:12]))
	assert.Zero(t, len(woff2)%4)
	n := int(be.Uint16(woff2[12:14]))
	compLen := be.Uint32(woff2[20:24])

	// Walk the table directory.
	pos := woff2HeaderSize
	type dirEntry struct {
		tag    string
		length uint32
	}
	var dir []dirEntry
	for range n {
		flags := woff2[pos]
		pos++
		tag := ""
		if idx := flags & 0x3f; idx == arbitraryTag {
			tag = string(woff2[pos : pos+4])
			pos += 4
		} else {
			tag = knownTags[idx]
		}
		if tag == "glyf" || tag == "loca" {
			assert.Equal(t, byte(nullTransform), flags>>6, "%s uses the null transform", tag)
		}
		length, size := readBase128(woff2[pos:])
		pos += size
		dir = append(dir, dirEntry{tag, length})
	}

	var tags []string
	for _, d := range dir {
		tags = append(tags, d.tag)
	}
	assert.Equal(t, []string{"cmap", "glyf", "loca", "head", "maxp", "name"}, tags)

	stream, err := io.ReadAll(brotli.NewReader(bytes.NewReader(woff2[pos : pos+int(compLen)])))
	require.NoError(t, err)
	for _, d := range dir {
		assert.Equal(t, want[d.tag], stream[:d.length], "table %s", d.tag)
		stream = stream[d.length:]
	}
	assert.Empty(t, stream)
}

func readBase128(b []byte) (uint32, int) {
	var v uint32
	for i := range 5 {
		v = v<<7 | uint32(b[i]&0x7f)
		if b[i]&0x80 == 0 {
			return v, i + 1
		}
	}
	return v, 5
}

func TestBase128(t *testing.T) {
	assert.Equal(t, []byte{0x00}, base128(0))
	assert.Equal(t, []byte{0x7f}, base128(127))
	assert.Equal(t, []byte{0x81, 0x00}, base128(128))
	v, n := readBase128(base128(63000))
	assert.Equal(t, uint32(63000), v)
	assert.Equal(t, 3, n)
	assert.Len(t, knownTags, 63)
}

func TestConvert_Deterministic(t *testing.T) {
	ttf := testutil.TTF()
	a, err := ToWOFF2(ttf)
	require.NoError(t, err)
	b, err := ToWOFF2(ttf)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConvert_RejectsNonFont(t *testing.T) {
	_, err := ToWOFF([]byte("definitely not a font"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategorySource))

	in := []*pipeline.Asset{{Source: "src/fonts/bad.ttf", Path: "bad.ttf", Contents: []byte("nope")}}
	_, err = WOFF2Step("woff2").Fn(t.Context(), in)
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "src/fonts/bad.ttf", ce.Location())
}

func TestSteps_RenameExtension(t *testing.T) {
	in := []*pipeline.Asset{{Source: "src/fonts/Inter.ttf", Path: "Inter.ttf", Contents: testutil.TTF()}}

	out, err := WOFFStep("woff").Fn(t.Context(), in)
	require.NoError(t, err)
	assert.Equal(t, "Inter.woff", out[0].Path)

	out, err = WOFF2Step("woff2").Fn(t.Context(), in)
	require.NoError(t, err)
	assert.Equal(t, "Inter.woff2", out[0].Path)
}
