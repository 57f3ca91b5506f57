// Package font converts TrueType fonts into the WOFF and WOFF2 web font containers.
package font

import (
	"encoding/binary"
	"sort"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

const (
	sfntHeaderSize = 12
	sfntEntrySize  = 16
)

type table struct {
	tag      string
	checksum uint32
	data     []byte
}

type sfnt struct {
	flavor uint32
	tables []table // sorted by tag
}

func parseSFNT(data []byte) (*sfnt, error) {
	if len(data) < sfntHeaderSize {
		return nil, malformed("file shorter than sfnt header").Build()
	}
	flavor := binary.BigEndian.Uint32(data[0:4])
	switch flavor {
	case 0x00010000, 0x4F54544F, 0x74727565: // TrueType, 'OTTO', 'true'
	case 0x74746366: // 'ttcf'
		return nil, malformed("font collections are not supported").Build()
	default:
		return nil, malformed("not an sfnt font").Build()
	}
	n := int(binary.BigEndian.Uint16(data[4:6]))
	if n == 0 {
		return nil, malformed("font has no tables").Build()
	}
	if len(data) < sfntHeaderSize+n*sfntEntrySize {
		return nil, malformed("truncated table directory").Build()
	}

	f := &sfnt{flavor: flavor, tables: make([]table, 0, n)}
	for i := range n {
		e := data[sfntHeaderSize+i*sfntEntrySize:]
		off := binary.BigEndian.Uint32(e[8:12])
		length := binary.BigEndian.Uint32(e[12:16])
		if uint64(off)+uint64(length) > uint64(len(data)) {
			return nil, malformed("table extends past end of file").WithContext("table", string(e[0:4])).Build()
		}
		f.tables = append(f.tables, table{
			tag:      string(e[0:4]),
			checksum: binary.BigEndian.Uint32(e[4:8]),
			data:     data[off : off+length],
		})
	}
	sort.Slice(f.tables, func(i, j int) bool { return f.tables[i].tag < f.tables[j].tag })
	return f, nil
}

// sfntSize is the size of the font once decoded back to sfnt, padding included.
func (f *sfnt) sfntSize() uint32 {
	size := uint32(sfntHeaderSize + sfntEntrySize*len(f.tables))
	for _, t := range f.tables {
		size += pad4(uint32(len(t.data)))
	}
	return size
}

func pad4(n uint32) uint32 { return (n + 3) &^ 3 }

func malformed(msg string) *ferrors.ErrorBuilder {
	return ferrors.SourceError(msg)
}
