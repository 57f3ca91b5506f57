package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
)

// PNG returns a w x h gradient encoded without compression, so any optimizer shrinks it.
func PNG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 20), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// SVG returns a small standalone icon with a single path.
func SVG(d string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!-- exported icon -->
<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10" viewBox="0 0 10 10">
  <path d="%s" stroke="black"/>
</svg>
`, d)
}

// TTF returns a structurally valid TrueType file with a handful of tables.
func TTF() []byte {
	head := make([]byte, 54)
	binary.BigEndian.PutUint32(head[0:], 0x00010000)
	binary.BigEndian.PutUint32(head[12:], 0x5F0F3CF5) // magic
	binary.BigEndian.PutUint16(head[18:], 1000)       // unitsPerEm

	maxp := []byte{0x00, 0x00, 0x50, 0x00, 0x00, 0x02} // version 0.5, two glyphs
	loca := []byte{0, 0, 0, 0, 0, 6}
	glyf := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	name := bytes.Repeat([]byte("Inter Regular "), 16)
	cmap := []byte{0, 0, 0, 1, 0, 3, 0, 1, 0, 0, 0, 12}

	return SFNT(map[string][]byte{
		"head": head, "maxp": maxp, "loca": loca, "glyf": glyf, "name": name, "cmap": cmap,
	})
}

// SFNT assembles an sfnt file from raw tables.
func SFNT(tables map[string][]byte) []byte {
	tags := make([]string, 0, len(tables))
	for tag := range tables {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.BigEndian, v) }
	n := uint16(len(tags))
	w(uint32(0x00010000))
	w(n)
	w(uint16(0)) // searchRange etc. are advisory
	w(uint16(0))
	w(uint16(0))

	offset := uint32(12 + 16*len(tags))
	for _, tag := range tags {
		data := tables[tag]
		buf.WriteString(tag)
		w(checksum(data))
		w(offset)
		w(uint32(len(data)))
		offset += (uint32(len(data)) + 3) &^ 3
	}
	for _, tag := range tags {
		data := tables[tag]
		buf.Write(data)
		buf.Write(make([]byte, (4-len(data)%4)%4))
	}
	return buf.Bytes()
}

func checksum(data []byte) uint32 {
	var sum uint32
	padded := append(append([]byte(nil), data...), make([]byte, (4-len(data)%4)%4)...)
	for i := 0; i < len(padded); i += 4 {
		sum += binary.BigEndian.Uint32(padded[i:])
	}
	return sum
}
