package font

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/zlib"
)

const (
	woffSignature  = 0x774F4646 // 'wOFF'
	woffHeaderSize = 44
	woffEntrySize  = 20
)

// ToWOFF wraps a TrueType/OpenType font in a WOFF 1.0 container. Each table is
// zlib-compressed unless that would not make it smaller.
func ToWOFF(ttf []byte) ([]byte, error) {
	f, err := parseSFNT(ttf)
	if err != nil {
		return nil, err
	}

	type entry struct {
		offset, compLen, origLen uint32
		data                     []byte
	}
	entries := make([]entry, len(f.tables))
	offset := uint32(woffHeaderSize + woffEntrySize*len(f.tables))
	for i, t := range f.tables {
		data := t.data
		if c, cerr := deflate(t.data); cerr == nil && len(c) < len(t.data) {
			data = c
		}
		entries[i] = entry{offset: offset, compLen: uint32(len(data)), origLen: uint32(len(t.data)), data: data}
		offset += pad4(uint32(len(data)))
	}

	var buf bytes.Buffer
	buf.Grow(int(offset))
	w := func(v any) { _ = binary.Write(&buf, binary.BigEndian, v) }
	w(uint32(woffSignature))
	w(f.flavor)
	w(offset) // total length
	w(uint16(len(f.tables)))
	w(uint16(0))
	w(f.sfntSize())
	w(uint16(1)) // major version
	w(uint16(0))
	w([5]uint32{}) // no metadata or private block

	for i, t := range f.tables {
		buf.WriteString(t.tag)
		w(entries[i].offset)
		w(entries[i].compLen)
		w(entries[i].origLen)
		w(t.checksum)
	}
	for _, e := range entries {
		buf.Write(e.data)
		buf.Write(make([]byte, pad4(e.compLen)-e.compLen))
	}
	return buf.Bytes(), nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
