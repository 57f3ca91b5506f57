// Package sprite combines SVG icons into one symbol sprite sheet.
//
// Each source becomes a <symbol> whose id is its path below the sprite source
// directory, without extension and with "/" replaced by "--". Pages reference
// icons with <svg><use href="images/sprite.svg#icons--close"/></svg>.
package sprite

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

const (
	svgNS        = "http://www.w3.org/2000/svg"
	xlinkNS      = "http://www.w3.org/1999/xlink"
	svgMediaType = "image/svg+xml"
)

var minifier = func() *minify.M {
	m := minify.New()
	m.AddFunc(svgMediaType, svg.Minify)
	return m
}()

// Minify compacts the inner markup of a symbol.
func (s *Symbol) Minify() error {
	body, err := minifier.Bytes(svgMediaType, s.Body)
	if err != nil {
		return err
	}
	s.Body = body
	return nil
}

// SymbolID derives the symbol id for a path relative to the sprite source base.
func SymbolID(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	return strings.ReplaceAll(rel, "/", "--")
}

// Symbol is one icon ready to be embedded.
type Symbol struct {
	ID      string
	ViewBox string
	Body    []byte
}

// Parse extracts the viewBox and inner markup of an SVG document.
func Parse(id string, data []byte) (*Symbol, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var root *xml.StartElement
	for root == nil {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no <svg> root element")
		}
		if err != nil {
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "svg" {
				return nil, fmt.Errorf("root element is <%s>, not <svg>", se.Name.Local)
			}
			root = &se
		}
	}

	sym := &Symbol{ID: id, ViewBox: viewBox(root.Attr)}

	var body bytes.Buffer
	enc := xml.NewEncoder(&body)
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("unterminated <svg>: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if err := enc.EncodeToken(clean(t)); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if depth == 0 {
				if err := enc.Flush(); err != nil {
					return nil, err
				}
				sym.Body = bytes.TrimSpace(body.Bytes())
				return sym, nil
			}
			depth--
			if err := enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: t.Name.Local}}); err != nil {
				return nil, err
			}
		case xml.CharData:
			if err := enc.EncodeToken(t.Copy()); err != nil {
				return nil, err
			}
		case xml.Comment, xml.ProcInst, xml.Directive:
			// dropped
		}
	}
}

func viewBox(attrs []xml.Attr) string {
	var w, h string
	for _, a := range attrs {
		switch a.Name.Local {
		case "viewBox":
			return a.Value
		case "width":
			w = strings.TrimSuffix(a.Value, "px")
		case "height":
			h = strings.TrimSuffix(a.Value, "px")
		}
	}
	if w != "" && h != "" {
		return "0 0 " + w + " " + h
	}
	return ""
}

// clean strips namespace bookkeeping so the encoder emits plain prefixed names.
// Attributes in foreign editor namespaces are dropped.
func clean(se xml.StartElement) xml.StartElement {
	out := xml.StartElement{Name: xml.Name{Local: se.Name.Local}}
	for _, a := range se.Attr {
		switch {
		case a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns"):
			continue
		case a.Name.Space == "", a.Name.Space == svgNS:
			out.Attr = append(out.Attr, xml.Attr{Name: xml.Name{Local: a.Name.Local}, Value: a.Value})
		case a.Name.Space == xlinkNS || a.Name.Space == "xlink":
			out.Attr = append(out.Attr, xml.Attr{Name: xml.Name{Local: "xlink:" + a.Name.Local}, Value: a.Value})
		case a.Name.Space == "xml":
			out.Attr = append(out.Attr, xml.Attr{Name: xml.Name{Local: "xml:" + a.Name.Local}, Value: a.Value})
		}
	}
	return out
}

// Render writes the sprite sheet for symbols in the given order.
func Render(symbols []*Symbol) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	buf.WriteString(`<svg xmlns="` + svgNS + `" xmlns:xlink="` + xlinkNS + `">`)
	for _, s := range symbols {
		buf.WriteString(`<symbol`)
		if s.ViewBox != "" {
			buf.WriteString(` viewBox="`)
			_ = xml.EscapeText(&buf, []byte(s.ViewBox))
			buf.WriteString(`"`)
		}
		buf.WriteString(` id="`)
		_ = xml.EscapeText(&buf, []byte(s.ID))
		buf.WriteString(`">`)
		buf.Write(s.Body)
		buf.WriteString(`</symbol>`)
	}
	buf.WriteString(`</svg>`)
	return buf.Bytes()
}

// Step replaces the batch with a single sprite sheet named file, each symbol
// minified. An empty batch produces no sheet.
func Step(name, file string) pipeline.Step {
	return pipeline.Step{Name: name, Fn: func(_ context.Context, in []*pipeline.Asset) ([]*pipeline.Asset, error) {
		if len(in) == 0 {
			return nil, nil
		}
		symbols := make([]*Symbol, 0, len(in))
		seen := make(map[string]string, len(in))
		var newest time.Time
		for _, a := range in {
			id := SymbolID(a.Path)
			if prev, dup := seen[id]; dup {
				return nil, ferrors.SourceError("duplicate sprite symbol id").
					WithPath(a.Source).WithContext("id", id).WithContext("other", prev).Build()
			}
			seen[id] = a.Source
			sym, err := Parse(id, a.Contents)
			if err == nil {
				err = sym.Minify()
			}
			if err != nil {
				return nil, ferrors.SourceError("invalid sprite source").WithCause(err).WithPath(a.Source).Build()
			}
			symbols = append(symbols, sym)
			if a.ModTime.After(newest) {
				newest = a.ModTime
			}
		}
		return []*pipeline.Asset{{Source: in[0].Source, Path: file, Contents: Render(symbols), ModTime: newest}}, nil
	}}
}
