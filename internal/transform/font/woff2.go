package font

import (
	"bytes"
	"encoding/binary"

	"github.com/andybalholm/brotli"
)

const (
	woff2Signature  = 0x774F4632 // 'wOF2'
	woff2HeaderSize = 48

	// nullTransform marks glyf/loca as stored untransformed; for every other
	// table version 0 already means untransformed.
	nullTransform = 3
	arbitraryTag  = 63
)

// knownTags is the WOFF2 table-tag dictionary; the index is stored instead of the tag.
var knownTags = []string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

var knownTagIndex = func() map[string]byte {
	m := make(map[string]byte, len(knownTags))
	for i, t := range knownTags {
		m[t] = byte(i)
	}
	return m
}()

// ToWOFF2 wraps a font in a WOFF2 container. Tables are stored with the null
// transform and compressed together as a single brotli stream.
func ToWOFF2(ttf []byte) ([]byte, error) {
	f, err := parseSFNT(ttf)
	if err != nil {
		return nil, err
	}
	tables := woff2Order(f.tables)

	var dir bytes.Buffer
	var stream bytes.Buffer
	for _, t := range tables {
		flags, known := knownTagIndex[t.tag]
		if !known {
			flags = arbitraryTag
		}
		if t.tag == "glyf" || t.tag == "loca" {
			flags |= nullTransform << 6
		}
		dir.WriteByte(flags)
		if !known {
			dir.WriteString(t.tag)
		}
		dir.Write(base128(uint32(len(t.data))))
		stream.Write(t.data)
	}

	var compressed bytes.Buffer
	bw := brotli.NewWriterLevel(&compressed, brotli.BestCompression)
	if _, err := bw.Write(stream.Bytes()); err != nil {
		return nil, err
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}

	compLen := uint32(compressed.Len())
	total := pad4(uint32(woff2HeaderSize+dir.Len()) + compLen)

	var buf bytes.Buffer
	buf.Grow(int(total))
	w := func(v any) { _ = binary.Write(&buf, binary.BigEndian, v) }
	w(uint32(woff2Signature))
	w(f.flavor)
	w(total)
	w(uint16(len(tables)))
	w(uint16(0))
	w(f.sfntSize())
	w(compLen)
	w(uint16(1)) // major version
	w(uint16(0))
	w([5]uint32{}) // no metadata or private block
	buf.Write(dir.Bytes())
	buf.Write(compressed.Bytes())
	buf.Write(make([]byte, int(total)-buf.Len()))
	return buf.Bytes(), nil
}

// woff2Order keeps tag order but places loca directly after glyf.
func woff2Order(in []table) []table {
	out := make([]table, 0, len(in))
	var loca *table
	for i := range in {
		if in[i].tag == "loca" {
			loca = &in[i]
		}
	}
	for _, t := range in {
		switch t.tag {
		case "loca":
			continue
		case "glyf":
			out = append(out, t)
			if loca != nil {
				out = append(out, *loca)
				loca = nil
			}
		default:
			out = append(out, t)
		}
	}
	if loca != nil {
		out = append(out, *loca)
	}
	return out
}

// base128 encodes v as a WOFF2 UIntBase128: big-endian 7-bit groups, no leading zeros.
func base128(v uint32) []byte {
	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7f)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
	}
	return append([]byte(nil), tmp[i:]...)
}
